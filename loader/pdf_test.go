package loader

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// pdfPage describes one page of a generated test PDF.
type pdfPage struct {
	text string
	// flate compresses the content stream with FlateDecode.
	flate bool
	// composite shows the text through a Type0 Identity-H font as two-byte glyph ids.
	composite bool
	// toUnicode attaches a ToUnicode CMap to the composite font.
	toUnicode bool
}

// buildPDF renders a minimal uncompressed PDF with one Helvetica text line per page.
func buildPDF(pages ...string) []byte {
	specs := make([]pdfPage, len(pages))
	for i, text := range pages {
		specs[i] = pdfPage{text: text}
	}
	return buildPDFPages(specs...)
}

// glyph maps a rune to the glyph id the composite test font uses for it.
func glyph(r rune) uint16 { return uint16(r) - 29 }

// Object layout:
//
//	1 catalog, 2 page tree, 3 Helvetica,
//	4 Type0 with ToUnicode, 5 Type0 without, 6 descendant CIDFont,
//	7 font descriptor, 8 ToUnicode CMap, then a page and its content per page.
func buildPDFPages(pages ...pdfPage) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	stream := func(dict string, data []byte) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n<< %s/Length %d >>\nstream\n", len(offsets), dict, len(data))
		buf.Write(data)
		buf.WriteString("\nendstream\nendobj\n")
	}

	const firstPage = 9
	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	obj("<< /Type /Font /Subtype /Type0 /BaseFont /ArialMT /Encoding /Identity-H " +
		"/DescendantFonts [6 0 R] /ToUnicode 8 0 R >>")
	obj("<< /Type /Font /Subtype /Type0 /BaseFont /ArialMT /Encoding /Identity-H /DescendantFonts [6 0 R] >>")
	obj("<< /Type /Font /Subtype /CIDFontType2 /BaseFont /ArialMT " +
		"/CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> " +
		"/FontDescriptor 7 0 R /DW 500 >>")
	obj("<< /Type /FontDescriptor /FontName /ArialMT /Flags 32 /FontBBox [0 -212 1000 905] " +
		"/ItalicAngle 0 /Ascent 905 /Descent -212 /CapHeight 716 /StemV 80 >>")
	stream("", toUnicodeCMap(pages))

	esc := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	for i, p := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R /F2 4 0 R /F3 5 0 R >> >> /Contents %d 0 R >>", firstPage+1+2*i))

		var content string
		switch {
		case p.composite && p.toUnicode:
			content = fmt.Sprintf("BT /F2 12 Tf 72 720 Td <%s> Tj ET", glyphHex(p.text))
		case p.composite:
			content = fmt.Sprintf("BT /F3 12 Tf 72 720 Td <%s> Tj ET", glyphHex(p.text))
		default:
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", esc.Replace(p.text))
		}
		if p.flate {
			var z bytes.Buffer
			w := zlib.NewWriter(&z)
			_, _ = w.Write([]byte(content))
			_ = w.Close()
			stream("/Filter /FlateDecode ", z.Bytes())
			continue
		}
		stream("", []byte(content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func glyphHex(text string) string {
	var b strings.Builder
	for _, r := range text {
		fmt.Fprintf(&b, "%04X", glyph(r))
	}
	return b.String()
}

// toUnicodeCMap maps the glyph id of every rune used on a composite page back to the rune.
func toUnicodeCMap(pages []pdfPage) []byte {
	seen := map[rune]bool{}
	var chars []string
	for _, p := range pages {
		if !p.composite {
			continue
		}
		for _, r := range p.text {
			if seen[r] {
				continue
			}
			seen[r] = true
			chars = append(chars, fmt.Sprintf("<%04X> <%04X>", glyph(r), r))
		}
	}

	var b strings.Builder
	b.WriteString("/CIDInit /ProcSet findresource begin\n12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")
	if len(chars) > 0 {
		fmt.Fprintf(&b, "%d beginbfchar\n%s\nendbfchar\n", len(chars), strings.Join(chars, "\n"))
	}
	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return []byte(b.String())
}
