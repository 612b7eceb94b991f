// Package pdftest writes small uncompressed PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Page is one page of a generated document. Lines are drawn top to bottom in
// Helvetica, one Tm per line. Content, when set, is used verbatim as the
// page's content stream instead.
type Page struct {
	Lines   []string
	Content string
}

// Lines returns a page showing lines.
func Lines(lines ...string) Page { return Page{Lines: lines} }

// Blank returns a page that draws nothing.
func Blank() Page { return Page{Content: "q Q"} }

// Raw returns a page with the given content stream.
func Raw(content string) Page { return Page{Content: content} }

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func (p Page) stream() string {
	if p.Content != "" {
		return p.Content
	}
	var sb strings.Builder
	sb.WriteString("BT\n/F1 11 Tf\n")
	for i, l := range p.Lines {
		fmt.Fprintf(&sb, "1 0 0 1 72 %d Tm\n(%s) Tj\n", 740-14*i, escaper.Replace(l))
	}
	sb.WriteString("ET")
	return sb.String()
}

// Build renders pages into a PDF with a classic cross-reference table.
func Build(pages ...Page) []byte {
	// 1 catalog, 2 page tree, 3 font, then a page and its content per page.
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	kids := make([]string, len(pages))
	for i, p := range pages {
		pageNr, contentNr := 4+2*i, 5+2*i
		kids[i] = fmt.Sprintf("%d 0 R", pageNr)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentNr),
			streamObject(p.stream()),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// WriteFile builds a PDF from pages and writes it to path.
func WriteFile(path string, pages ...Page) error {
	return os.WriteFile(path, Build(pages...), 0o644)
}

func streamObject(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
}
