package classroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/grading"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/settings"
)

// TestSheet is what a student sees while taking a session: never the key.
type TestSheet struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title"`
	PDFURL    string `json:"pdfUrl,omitempty"`
	Items     int    `json:"items"`
}

// ReviewResult is a stored submission next to its recomputed grading.
type ReviewResult struct {
	StudentID   string           `json:"studentId"`
	StudentName string           `json:"studentName"`
	SessionID   string           `json:"sessionId"`
	Title       string           `json:"title"`
	Submission  model.Submission `json:"submission"`
	// HasAnswers is false for submissions stored without raw answers.
	HasAnswers bool           `json:"hasAnswers"`
	Result     grading.Result `json:"result"`
}

// StartTest checks that the student has not submitted the session and that
// their class is open for it.
func (s *Service) StartTest(ctx context.Context, tenantID, studentID, sessionID string) (TestSheet, error) {
	st, sess, err := s.submittable(ctx, tenantID, studentID, sessionID)
	if err != nil {
		return TestSheet{}, err
	}
	slog.Debug("test started", "tenant", tenantID, "student", st.ID, "session", sess.ID)
	return TestSheet{SessionID: sess.ID, Title: sess.Title, PDFURL: sess.PDFURL, Items: len(sess.Answers)}, nil
}

// Submit grades answers and stores the submission on the student record.
// Concurrent submissions for the same pair are last-write-wins.
func (s *Service) Submit(ctx context.Context, tenantID, studentID, sessionID string, answers []string) (model.Submission, error) {
	if len(answers) != model.ItemsPerSession {
		return model.Submission{}, fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidInput, model.ItemsPerSession, len(answers))
	}
	st, sess, err := s.submittable(ctx, tenantID, studentID, sessionID)
	if err != nil {
		return model.Submission{}, err
	}
	sub := model.Submission{
		Score:       grading.Grade(answers, sess.Answers),
		SubmittedAt: grading.FormatSubmittedAt(s.now().In(s.loc)),
		Answers:     append([]string(nil), answers...),
	}
	err = s.store.Update(ctx, s.paths.Student(tenantID, st.ID), map[string]any{
		"scores." + sess.ID: sub,
	})
	if err != nil {
		return model.Submission{}, fmt.Errorf("save submission: %w", mapNotFound(err))
	}
	slog.Info("submission stored", "tenant", tenantID, "student", st.ID, "session", sess.ID, "score", sub.Score)
	return sub, nil
}

// ResetSubmission deletes a stored submission so the student can submit again.
func (s *Service) ResetSubmission(ctx context.Context, tenantID, studentID, sessionID string) error {
	if err := checkFieldKey(sessionID); err != nil {
		return err
	}
	err := s.store.Update(ctx, s.paths.Student(tenantID, studentID), map[string]any{
		"scores." + sessionID: docstore.DeleteField,
	})
	if err != nil {
		return fmt.Errorf("reset submission: %w", mapNotFound(err))
	}
	slog.Info("submission reset", "tenant", tenantID, "student", studentID, "session", sessionID)
	return nil
}

// Review recomputes a stored submission against the session's current key.
func (s *Service) Review(ctx context.Context, tenantID, studentID, sessionID string) (ReviewResult, error) {
	st, err := s.getStudent(ctx, tenantID, studentID)
	if err != nil {
		return ReviewResult{}, err
	}
	sub, ok := st.Submission(sessionID)
	if !ok {
		return ReviewResult{}, fmt.Errorf("submission %s/%s: %w", studentID, sessionID, ErrNotFound)
	}
	sess, err := s.getSession(ctx, tenantID, sessionID)
	if err != nil {
		return ReviewResult{}, err
	}
	res := ReviewResult{
		StudentID:   st.ID,
		StudentName: st.Name,
		SessionID:   sess.ID,
		Title:       sess.Title,
		Submission:  sub,
		HasAnswers:  len(sub.Answers) > 0,
	}
	if res.HasAnswers {
		res.Result = grading.Review(sub.Answers, sess.Answers)
	}
	return res, nil
}

// StudentDashboard lists every session with its state for one student.
// Answer keys and attachments are left out.
func (s *Service) StudentDashboard(ctx context.Context, tenantID, studentID string) (model.StudentDashboard, error) {
	st, err := s.getStudent(ctx, tenantID, studentID)
	if err != nil {
		return model.StudentDashboard{}, err
	}
	sessions, err := s.ListSessions(ctx, tenantID)
	if err != nil {
		return model.StudentDashboard{}, err
	}
	cur, err := s.LoadSettings(ctx, tenantID)
	if err != nil {
		return model.StudentDashboard{}, err
	}
	return buildDashboard(st, sessions, cur), nil
}

func buildDashboard(st model.Student, sessions []model.Session, cur settings.Settings) model.StudentDashboard {
	dash := model.StudentDashboard{
		Student:    st,
		TotalScore: st.TotalScore(),
		Entries:    make([]model.DashboardEntry, 0, len(sessions)),
	}
	for _, sess := range sessions {
		entry := model.DashboardEntry{
			Session: model.Session{ID: sess.ID, Title: sess.Title},
			State:   model.SessionClosed,
		}
		if sub, ok := st.Submission(sess.ID); ok {
			entry.State = model.SessionCompleted
			entry.Submission = &sub
		} else if settings.CanSubmit(cur, st.ClassGroup, sess.ID) {
			entry.State = model.SessionOpen
		}
		dash.Entries = append(dash.Entries, entry)
	}
	return dash
}

func (s *Service) submittable(ctx context.Context, tenantID, studentID, sessionID string) (model.Student, model.Session, error) {
	if err := checkFieldKey(sessionID); err != nil {
		return model.Student{}, model.Session{}, err
	}
	st, err := s.getStudent(ctx, tenantID, studentID)
	if err != nil {
		return model.Student{}, model.Session{}, err
	}
	sess, err := s.getSession(ctx, tenantID, sessionID)
	if err != nil {
		return model.Student{}, model.Session{}, err
	}
	if _, done := st.Submission(sessionID); done {
		return model.Student{}, model.Session{}, ErrAlreadySubmitted
	}
	cur, err := s.LoadSettings(ctx, tenantID)
	if err != nil {
		return model.Student{}, model.Session{}, err
	}
	if !settings.CanSubmit(cur, st.ClassGroup, sessionID) {
		return model.Student{}, model.Session{}, ErrSubmissionClosed
	}
	return st, sess, nil
}

// checkFieldKey rejects ids that would split a dotted field path.
func checkFieldKey(id string) error {
	if id == "" || strings.Contains(id, ".") {
		return fmt.Errorf("%w: bad session id %q", ErrInvalidInput, id)
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
