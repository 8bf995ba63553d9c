package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/model"
)

// NewSession is the input for CreateSession.
type NewSession struct {
	Title   string   `json:"title" validate:"required,max=200"`
	Answers []string `json:"answers" validate:"len=5,dive,max=200"`
	// PDF is the raw attachment, if any.
	PDF []byte `json:"-"`
}

// CreateSession validates the input and any attachment, then stores the
// session. A rejected attachment leaves nothing written.
func (s *Service) CreateSession(ctx context.Context, tenantID string, in NewSession) (model.Session, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	sess := model.Session{
		ID:      "s" + strconv.FormatInt(s.now().UnixMilli(), 10),
		Title:   in.Title,
		Answers: append([]string(nil), in.Answers...),
	}
	if len(in.PDF) > 0 {
		url, err := PDFDataURL(in.PDF)
		if err != nil {
			return model.Session{}, err
		}
		sess.PDFURL = url
	}

	path := s.paths.Session(tenantID, sess.ID)
	// Two sessions created within one millisecond must not collide.
	for {
		_, exists, err := s.store.Get(ctx, path)
		if err != nil {
			return model.Session{}, fmt.Errorf("create session: %w", err)
		}
		if !exists {
			break
		}
		sess.ID += "0"
		path = s.paths.Session(tenantID, sess.ID)
	}

	doc, err := docstore.Encode(sess)
	if err != nil {
		return model.Session{}, err
	}
	if err := s.store.Set(ctx, path, doc, false); err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	slog.Info("session created", "tenant", tenantID, "session", sess.ID, "pdf", sess.PDFURL != "")
	return sess, nil
}

// DeleteSession removes a session. Submissions that reference it stay on
// the student records.
func (s *Service) DeleteSession(ctx context.Context, tenantID, id string) error {
	if err := s.store.Delete(ctx, s.paths.Session(tenantID, id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	slog.Info("session deleted", "tenant", tenantID, "session", id)
	return nil
}
