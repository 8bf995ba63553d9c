package classroom

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pavelanni/classquiz/internal/auth"
	"github.com/pavelanni/classquiz/internal/docstore"
	"github.com/pavelanni/classquiz/internal/view"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err   error
		want  Kind
		fatal bool
	}{
		{nil, "", false},
		{ErrConfigMissing, KindConfigMissing, true},
		{fmt.Errorf("open: %w", docstore.ErrNoPath), KindConfigMissing, true},
		{fmt.Errorf("ping: %w", docstore.ErrUnavailable), KindNetworkBlocked, true},
		{ErrAuthNetworkBlocked, KindNetworkBlocked, true},
		{auth.ErrAuthFailed, KindAuthFailed, false},
		{ErrLookupNotFound, KindLookupNotFound, false},
		{&UploadError{Reason: UploadTooLarge}, KindUploadRejected, false},
		{fmt.Errorf("x: %w", docstore.ErrNotFound), KindNotFound, false},
		{ErrAlreadySubmitted, KindAlreadySubmitted, false},
		{ErrSubmissionClosed, KindSubmissionClosed, false},
		{auth.ErrEmailTaken, KindEmailTaken, false},
		{auth.ErrInvalidCredentials, KindInvalidInput, false},
		{view.ErrInvalidTransition, KindInvalidInput, false},
		{errors.New("boom"), KindInternal, false},
	}
	for _, tt := range tests {
		got := KindOf(tt.err)
		if got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
		if got.Fatal() != tt.fatal {
			t.Errorf("KindOf(%v).Fatal() = %v", tt.err, got.Fatal())
		}
	}
}

func TestUploadErrorMessage(t *testing.T) {
	err := &UploadError{Reason: UploadWrongType, MIMEType: "image/png"}
	if err.Error() != "upload rejected: type image/png is not application/pdf" {
		t.Fatalf("message = %q", err.Error())
	}
}
