// Package extract pulls plain text out of document content so the matching
// engine can classify on more than the filename. Extraction is best-effort:
// a failure leaves the document classifiable by metadata only.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxTextLen caps extracted text handed to the matcher. Rules operate on
// titles and phrases; a bounded prefix is enough and keeps memory flat.
const maxTextLen = 512 * 1024

// Text extracts plain text from content based on the filename's extension.
// Unsupported formats return "" without error; the caller matches on
// filename and title alone.
func Text(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return pdfText(content)
	case ".txt":
		return clamp(string(content)), nil
	case ".html", ".htm", ".eml":
		return HTMLToText(content)
	default:
		return "", nil
	}
}

func pdfText(content []byte) (text string, err error) {
	// The pdf package panics on some malformed files; treat that as an
	// extraction failure, not a crash.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var b bytes.Buffer
	if _, err := b.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return clamp(b.String()), nil
}

func clamp(s string) string {
	if len(s) > maxTextLen {
		return s[:maxTextLen]
	}
	return s
}
