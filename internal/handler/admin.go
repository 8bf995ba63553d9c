package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/classquiz/internal/classroom"
	appI18n "github.com/pavelanni/classquiz/internal/i18n"
	"github.com/pavelanni/classquiz/internal/model"
	"github.com/pavelanni/classquiz/internal/settings"
)

// maxMultipartMemory bounds an upload form: the PDF limit plus room for fields.
const maxMultipartMemory = classroom.MaxUploadBytes + 64<<10

// adminTenant returns the signed-in teacher's tenant, which is their uid.
func adminTenant(r *http.Request) string {
	if id := model.IdentityFromContext(r.Context()); id != nil {
		return id.UID
	}
	return ""
}

func parseScope(s string) settings.Scope {
	s = strings.TrimSpace(s)
	if s == "" || s == "default" {
		return settings.DefaultScope
	}
	return settings.SessionScope(s)
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.svc.ListStudents(r.Context(), adminTenant(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

type importRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *Handler) handleImportStudents(w http.ResponseWriter, r *http.Request) {
	var in importRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.ImportStudents(r.Context(), adminTenant(r), in.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":  res,
		"message": appI18n.Tp(r.Context(), "StudentsImported", len(res.Added)),
	})
}

func (h *Handler) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteStudent(r.Context(), adminTenant(r), chi.URLParam(r, "studentID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListSessions(r.Context(), adminTenant(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleCreateSession accepts JSON or a multipart form with title, five
// answers fields and an optional pdf file.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in classroom.NewSession
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		if in, err = readSessionForm(w, r); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), adminTenant(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func readSessionForm(w http.ResponseWriter, r *http.Request) (classroom.NewSession, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return classroom.NewSession{}, &classroom.UploadError{Reason: classroom.UploadTooLarge, Size: int(tooBig.Limit)}
		}
		return classroom.NewSession{}, fmt.Errorf("%w: parse form: %v", classroom.ErrInvalidInput, err)
	}
	in := classroom.NewSession{
		Title:   r.FormValue("title"),
		Answers: r.MultipartForm.Value["answers"],
	}

	file, _, err := r.FormFile("pdf")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, fmt.Errorf("%w: read pdf: %v", classroom.ErrInvalidInput, err)
	}
	defer file.Close()

	// One byte past the limit is enough to reject it as too large.
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, classroom.MaxUploadBytes+1)); err != nil {
		return in, fmt.Errorf("read pdf: %w", err)
	}
	in.PDF = buf.Bytes()
	return in, nil
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSession(r.Context(), adminTenant(r), chi.URLParam(r, "sessionID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSwitchBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.SwitchBoard(r.Context(), adminTenant(r), parseScope(r.URL.Query().Get("scope")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type toggleRequest struct {
	ClassGroup string `json:"classGroup" validate:"required"`
	Scope      string `json:"scope"`
}

func (h *Handler) handleToggleClass(w http.ResponseWriter, r *http.Request) {
	var in toggleRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := h.svc.ToggleClass(r.Context(), adminTenant(r), in.ClassGroup, parseScope(in.Scope))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type setAllRequest struct {
	Scope string `json:"scope"`
	Value *bool  `json:"value" validate:"required"`
}

func (h *Handler) handleSetAllClasses(w http.ResponseWriter, r *http.Request) {
	var in setAllRequest
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := h.svc.SetAllClasses(r.Context(), adminTenant(r), parseScope(in.Scope), *in.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.ScoreTable(r.Context(), adminTenant(r), r.URL.Query().Get("class"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (h *Handler) handleScoresCSV(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.ScoreTable(r.Context(), adminTenant(r), r.URL.Query().Get("class"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := classroom.WriteCSV(&buf, table); err != nil {
		h.writeError(w, r, err)
		return
	}
	name := classroom.CSVFilename(table.Class, h.now().In(h.svc.Location()))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("write csv", "error", err)
	}
}

func (h *Handler) handleAdminReview(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Review(r.Context(), adminTenant(r), chi.URLParam(r, "studentID"), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleResetSubmission(w http.ResponseWriter, r *http.Request) {
	tenantID := adminTenant(r)
	studentID, sessionID := chi.URLParam(r, "studentID"), chi.URLParam(r, "sessionID")
	if err := h.svc.ResetSubmission(r.Context(), tenantID, studentID, sessionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("admin reset submission", "tenant", tenantID, "student", studentID, "session", sessionID)
	w.WriteHeader(http.StatusNoContent)
}
