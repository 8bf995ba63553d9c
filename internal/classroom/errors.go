package classroom

import (
	"errors"
	"fmt"

	"github.com/pavelanni/classquiz/internal/auth"
	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/view"
)

var (
	// ErrConfigMissing means the store is not configured. The app cannot start.
	ErrConfigMissing = errors.New("store configuration missing")
	// ErrAuthNetworkBlocked means the store could not be reached.
	ErrAuthNetworkBlocked = errors.New("store unreachable")
	// ErrAuthFailed is a bad email or password.
	ErrAuthFailed = auth.ErrAuthFailed
	// ErrLookupNotFound is any failed student login. It never says which
	// of the two codes was wrong.
	ErrLookupNotFound = errors.New("teacher code or student code not found")
	// ErrUploadRejected wraps every UploadError.
	ErrUploadRejected = errors.New("upload rejected")

	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrSubmissionClosed = errors.New("submission closed for this class")
	ErrInvalidInput     = errors.New("invalid input")
)

// UploadReason says why an upload was refused.
type UploadReason string

const (
	UploadTooLarge  UploadReason = "tooLarge"
	UploadWrongType UploadReason = "wrongType"
)

// UploadError describes a refused attachment.
type UploadError struct {
	Reason   UploadReason
	Size     int
	MIMEType string
}

func (e *UploadError) Error() string {
	switch e.Reason {
	case UploadTooLarge:
		return fmt.Sprintf("upload rejected: %d bytes exceeds %d", e.Size, MaxUploadBytes)
	case UploadWrongType:
		return fmt.Sprintf("upload rejected: type %s is not application/pdf", e.MIMEType)
	}
	return "upload rejected"
}

func (e *UploadError) Unwrap() error { return ErrUploadRejected }

// Kind classifies an error for presentation.
type Kind string

const (
	KindInternal         Kind = "Internal"
	KindConfigMissing    Kind = "ConfigMissing"
	KindNetworkBlocked   Kind = "NetworkBlocked"
	KindAuthFailed       Kind = "AuthFailed"
	KindLookupNotFound   Kind = "LookupNotFound"
	KindUploadRejected   Kind = "UploadRejected"
	KindNotFound         Kind = "NotFound"
	KindAlreadySubmitted Kind = "AlreadySubmitted"
	KindSubmissionClosed Kind = "SubmissionClosed"
	KindInvalidInput     Kind = "InvalidInput"
	KindEmailTaken       Kind = "EmailTaken"
)

// Fatal reports whether the error halts the whole application.
func (k Kind) Fatal() bool {
	return k == KindConfigMissing || k == KindNetworkBlocked
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigMissing), errors.Is(err, docstore.ErrNoPath):
		return KindConfigMissing
	case errors.Is(err, ErrAuthNetworkBlocked), errors.Is(err, docstore.ErrUnavailable):
		return KindNetworkBlocked
	case errors.Is(err, ErrAuthFailed):
		return KindAuthFailed
	case errors.Is(err, ErrLookupNotFound):
		return KindLookupNotFound
	case errors.Is(err, ErrUploadRejected):
		return KindUploadRejected
	case errors.Is(err, ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadySubmitted):
		return KindAlreadySubmitted
	case errors.Is(err, ErrSubmissionClosed):
		return KindSubmissionClosed
	case errors.Is(err, auth.ErrEmailTaken):
		return KindEmailTaken
	case errors.Is(err, ErrInvalidInput), errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, view.ErrInvalidTransition):
		return KindInvalidInput
	}
	return KindInternal
}
