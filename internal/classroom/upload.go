package classroom

import (
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadBytes is the largest accepted session attachment.
const MaxUploadBytes = 800 * 1024

const pdfMIME = "application/pdf"

// PDFDataURL validates an attachment and returns it inlined as a data URL.
// Only PDFs up to MaxUploadBytes are accepted; the type is sniffed from the
// content, not taken from the client.
func PDFDataURL(data []byte) (string, error) {
	if len(data) > MaxUploadBytes {
		return "", &UploadError{Reason: UploadTooLarge, Size: len(data)}
	}
	mt := mimetype.Detect(data)
	if !mt.Is(pdfMIME) {
		return "", &UploadError{Reason: UploadWrongType, Size: len(data), MIMEType: mt.String()}
	}
	return "data:" + pdfMIME + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
