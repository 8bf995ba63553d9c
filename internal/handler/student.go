package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/classquiz/internal/i18n"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/view"
)

// studentOf returns the tenant and student of a Student or Test state.
func studentOf(s view.State) (tenantID, studentID string) {
	switch v := s.(type) {
	case view.Student:
		return v.TenantID, v.StudentID
	case view.Test:
		return v.TenantID, v.StudentID
	}
	return "", ""
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tenantID, studentID := studentOf(view.Decode(sessionFromContext(r.Context()).View))
	dash, err := h.svc.StudentDashboard(r.Context(), tenantID, studentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *Handler) handleStartTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")

	state := view.Decode(sess.View)
	if _, inTest := state.(view.Test); inTest {
		var err error
		if state, err = h.transition(ctx, sess, view.LeaveTest{}); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	tenantID, studentID := studentOf(state)
	sheet, err := h.svc.StartTest(ctx, tenantID, studentID, sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.transition(ctx, sess, view.StartTest{SessionID: sessionID}); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

type submitRequest struct {
	Answers []string `json:"answers" validate:"len=5,dive,max=200"`
}

type submitResponse struct {
	Submission model.Submission `json:"submission"`
	Message    string           `json:"message"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")

	t, ok := view.Decode(sess.View).(view.Test)
	if !ok || t.SessionID != sessionID {
		h.writeError(w, r, fmt.Errorf("%w: not taking session %s", view.ErrInvalidTransition, sessionID))
		return
	}
	var in submitRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	sub, err := h.svc.Submit(ctx, t.TenantID, t.StudentID, sessionID, in.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.transition(ctx, sess, view.FinishTest{}); err != nil {
		// The submission is stored; the next state poll returns to the dashboard.
		slog.Warn("failed to leave test screen", "error", err)
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Submission: sub,
		Message:    appI18n.Td(ctx, "SubmissionScore", map[string]any{"Score": sub.Score}),
	})
}

func (h *Handler) handleLeaveTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := h.transition(ctx, sessionFromContext(ctx), view.LeaveTest{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stateBody(ctx, state))
}

func (h *Handler) handleStudentReview(w http.ResponseWriter, r *http.Request) {
	tenantID, studentID := studentOf(view.Decode(sessionFromContext(r.Context()).View))
	res, err := h.svc.Review(r.Context(), tenantID, studentID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
