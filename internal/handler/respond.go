package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/classquiz/internal/classroom"
	appI18n "github.com/pavelanni/classquiz/internal/i18n"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Kind    classroom.Kind `json:"kind"`
	Message string         `json:"message"`
	Remedy  string         `json:"remedy,omitempty"`
	Fatal   bool           `json:"fatal,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps err to a status code and a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := classroom.KindOf(err)
	status := statusFor(err, kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	body := errorBody{
		Kind:    kind,
		Message: appI18n.T(r.Context(), messageID(err, kind)),
		Fatal:   kind.Fatal(),
	}
	if kind == classroom.KindNetworkBlocked {
		body.Remedy = appI18n.T(r.Context(), "NetworkBlockedRemedy")
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// writeStatus answers with a fixed localized message.
func writeStatus(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, map[string]errorBody{"error": {
		Message: appI18n.T(r.Context(), msgID),
	}})
}

func statusFor(err error, kind classroom.Kind) int {
	switch kind {
	case classroom.KindConfigMissing, classroom.KindNetworkBlocked:
		return http.StatusServiceUnavailable
	case classroom.KindAuthFailed:
		return http.StatusUnauthorized
	case classroom.KindLookupNotFound, classroom.KindNotFound:
		return http.StatusNotFound
	case classroom.KindUploadRejected:
		var uerr *classroom.UploadError
		if errors.As(err, &uerr) && uerr.Reason == classroom.UploadWrongType {
			return http.StatusUnsupportedMediaType
		}
		return http.StatusRequestEntityTooLarge
	case classroom.KindAlreadySubmitted, classroom.KindEmailTaken:
		return http.StatusConflict
	case classroom.KindSubmissionClosed:
		return http.StatusForbidden
	case classroom.KindInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func messageID(err error, kind classroom.Kind) string {
	switch kind {
	case classroom.KindConfigMissing:
		return "ErrConfigMissing"
	case classroom.KindNetworkBlocked:
		return "ErrNetworkBlocked"
	case classroom.KindAuthFailed:
		return "ErrAuthFailed"
	case classroom.KindLookupNotFound:
		return "ErrLookupNotFound"
	case classroom.KindUploadRejected:
		var uerr *classroom.UploadError
		if errors.As(err, &uerr) && uerr.Reason == classroom.UploadWrongType {
			return "ErrUploadWrongType"
		}
		return "ErrUploadTooLarge"
	case classroom.KindNotFound:
		return "ErrNotFound"
	case classroom.KindAlreadySubmitted:
		return "ErrAlreadySubmitted"
	case classroom.KindSubmissionClosed:
		return "ErrSubmissionClosed"
	case classroom.KindInvalidInput:
		return "ErrInvalidInput"
	case classroom.KindEmailTaken:
		return "ErrEmailTaken"
	}
	return "ErrInternal"
}

// decodeJSON reads a JSON request body into v and validates its tags.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", classroom.ErrInvalidInput, err)
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", classroom.ErrInvalidInput, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", classroom.ErrInvalidInput, err)
	}
	return nil
}
