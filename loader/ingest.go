package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"mwanga/loader/internal"
	"mwanga/logger"
	"mwanga/metrics"
)

var textExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
}

// Ingestor turns documents into Text. It holds no per-document state and is safe for concurrent use.
type Ingestor struct {
	logger *zap.Logger
}

func NewIngestor(l *zap.Logger) *Ingestor {
	return &Ingestor{logger: logger.OrNop(l)}
}

// IngestFile ingests the document stored at path.
// On failure the returned Text carries the same error, so callers can hand it to the resolver as is.
func (i *Ingestor) IngestFile(ctx context.Context, path string) (Text, error) {
	if path == "" {
		return i.fail(path, FormatUnknown, ErrNotFound)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return i.fail(path, FormatUnknown, ErrNotFound)
		}
		return i.fail(path, FormatUnknown, err)
	}
	defer f.Close()

	return i.IngestReader(ctx, path, f)
}

// IngestReader ingests a document stream. name is used as the Text source and as a format hint.
func (i *Ingestor) IngestReader(ctx context.Context, name string, rs io.ReadSeeker) (Text, error) {
	if err := ctx.Err(); err != nil {
		return i.fail(name, FormatUnknown, err)
	}

	format, err := detect(name, rs)
	if err != nil {
		return i.fail(name, format, err)
	}

	var pages []string
	switch format {
	case FormatPDF:
		pages, err = internal.PDFPages(rs)
	case FormatText:
		pages, err = textPages(rs)
	}
	if err != nil {
		return i.fail(name, format, err)
	}

	text := Text{Source: name, Format: format, Pages: pages}
	if !text.Usable() {
		return i.fail(name, format, ErrEmptyDocument)
	}

	metrics.IngestionsTotal.WithLabelValues(string(format), "ok").Inc()
	i.logger.Info("document ingested",
		zap.String("source", name),
		zap.String("format", string(format)),
		zap.Int("pages", len(pages)),
		zap.Int("chars", len([]rune(text.String()))),
	)
	return text, nil
}

func (i *Ingestor) fail(source string, format Format, err error) (Text, error) {
	metrics.IngestionsTotal.WithLabelValues(string(format), "failed").Inc()
	i.logger.Warn("document ingestion failed", zap.String("source", source), zap.Error(err))
	text := FailedText(source, err)
	return text, text.Err
}

// detect sniffs the stream and rewinds it. A .pdf name always selects the PDF path.
func detect(name string, rs io.ReadSeeker) (Format, error) {
	mtype, err := mimetype.DetectReader(rs)
	if err != nil {
		return FormatUnknown, fmt.Errorf("sniff format: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, fmt.Errorf("rewind: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".pdf" || mtype.Is("application/pdf"):
		return FormatPDF, nil
	case textExtensions[ext] || mtype.Is("text/plain"):
		return FormatText, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
}

// textPages splits plain text into pages on form feeds.
func textPages(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	raw := strings.Split(strings.ToValidUTF8(string(data), "�"), "\f")

	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		pages = append(pages, strings.TrimSpace(p))
	}
	return pages, nil
}
