package oracle

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor handles submissions that are already plain text.
// Binary formats (PDF, DOCX) belong to a separate extractor behind the
// same interface.
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates a plain-text extractor.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// ExtractText validates and normalizes a plain-text document.
func (e *PlainTextExtractor) ExtractText(ctx context.Context, doc RawDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if len(doc.Content) == 0 {
		return "", InvalidInput("extract_text", errors.New("document is empty"))
	}
	if !utf8.Valid(doc.Content) {
		return "", InvalidInput("extract_text", errors.New("document is not valid UTF-8 text"))
	}

	text := strings.TrimSpace(strings.ReplaceAll(string(doc.Content), "\r\n", "\n"))
	if text == "" {
		return "", InvalidInput("extract_text", errors.New("document contains no text"))
	}

	return text, nil
}

var _ TextExtractor = (*PlainTextExtractor)(nil)
