package internal

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Ingestion reads only its input; keep pdfcpu from creating its config dir.
	api.DisableConfigDir()
}

// PDFPages reads a PDF and returns the text of every page in page order.
// pdfcpu validates the document; ledongthuc/pdf decodes the page text.
func PDFPages(rs io.ReadSeeker) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind pdf: %w", err)
	}
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return pageTexts(data, ctx.PageCount)
}

func pageTexts(data []byte, count int) (pages []string, err error) {
	// ledongthuc/pdf panics on some malformed objects instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("decode pdf text: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if n := r.NumPage(); n != count {
		return nil, fmt.Errorf("page count mismatch: %d vs %d", n, count)
	}

	pages = make([]string, 0, count)
	for nr := 1; nr <= count; nr++ {
		page := r.Page(nr)
		if page.V.IsNull() || !decodable(page) {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", nr, err)
		}
		pages = append(pages, Clean(text))
	}
	return pages, nil
}

// decodable reports whether every font on the page maps its codes to Unicode.
// A composite font without a ToUnicode CMap yields raw glyph ids.
func decodable(page pdf.Page) bool {
	for _, name := range page.Fonts() {
		font := page.Font(name)
		if font.V.Key("Subtype").Name() != "Type0" {
			continue
		}
		if font.V.Key("ToUnicode").Kind() != pdf.Stream {
			return false
		}
	}
	return true
}
