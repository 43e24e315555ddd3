package loader

import (
	"errors"
	"fmt"
	"strings"
)

// PageSeparator joins page segments in String.
const PageSeparator = "\n\n"

// Format is the detected document format.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatPDF     Format = "pdf"
	FormatText    Format = "text"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document has no extractable text")
)

// IngestionError reports a document that could not be turned into text.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Text is the ingested text of one document: its page segments in original order.
// A Text with a non-nil Err is an ingestion failure and carries no pages.
type Text struct {
	Source string
	Format Format
	Pages  []string
	Err    error
}

// FailedText returns the ingestion-failure value for source.
func FailedText(source string, err error) Text {
	var ierr *IngestionError
	if !errors.As(err, &ierr) {
		ierr = &IngestionError{Source: source, Err: err}
	}
	return Text{Source: source, Format: FormatUnknown, Err: ierr}
}

// String joins the non-blank pages with a blank line.
func (t Text) String() string {
	parts := make([]string, 0, len(t.Pages))
	for _, p := range t.Pages {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, PageSeparator)
}

// Failed reports whether ingestion failed.
func (t Text) Failed() bool {
	return t.Err != nil
}

// Usable reports whether the text can ground an answer.
func (t Text) Usable() bool {
	return t.Err == nil && strings.TrimSpace(t.String()) != ""
}
