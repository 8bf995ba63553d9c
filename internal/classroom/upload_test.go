package classroom

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func testPDF(size int) []byte {
	head := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	if size < len(head) {
		size = len(head)
	}
	return append(head, bytes.Repeat([]byte(" "), size-len(head))...)
}

func TestPDFDataURL(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		reason UploadReason
	}{
		{"small pdf", testPDF(1024), ""},
		{"exactly the limit", testPDF(MaxUploadBytes), ""},
		{"one byte over", testPDF(MaxUploadBytes + 1), UploadTooLarge},
		{"png", append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...), UploadWrongType},
		{"plain text", []byte("just some notes"), UploadWrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := PDFDataURL(tt.data)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.HasPrefix(url, "data:application/pdf;base64,") {
					t.Fatalf("url prefix = %.40s", url)
				}
				return
			}
			var uerr *UploadError
			if !errors.As(err, &uerr) || uerr.Reason != tt.reason {
				t.Fatalf("err = %v, want reason %s", err, tt.reason)
			}
			if !errors.Is(err, ErrUploadRejected) || KindOf(err) != KindUploadRejected {
				t.Fatalf("err %v does not classify as upload rejected", err)
			}
		})
	}
}

func TestCreateSessionUpload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	answers := []string{"1", "2", "3", "4", "5"}

	sess, err := svc.CreateSession(ctx, "t1", NewSession{Title: "PDF 차시", Answers: answers, PDF: testPDF(2048)})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.PDFURL == "" {
		t.Fatal("attachment not stored")
	}

	_, err = svc.CreateSession(ctx, "t1", NewSession{Title: "too big", Answers: answers, PDF: testPDF(MaxUploadBytes + 10)})
	if !errors.Is(err, ErrUploadRejected) {
		t.Fatalf("oversized upload: %v", err)
	}
	list, _ := svc.ListSessions(ctx, "t1")
	if len(list) != 1 {
		t.Fatalf("rejected upload left a write: %d sessions", len(list))
	}
}

func TestCreateSessionValidation(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name string
		in   NewSession
	}{
		{"blank title", NewSession{Title: "  ", Answers: []string{"1", "2", "3", "4", "5"}}},
		{"four answers", NewSession{Title: "x", Answers: []string{"1", "2", "3", "4"}}},
		{"no answers", NewSession{Title: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateSession(context.Background(), "t1", tt.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}
