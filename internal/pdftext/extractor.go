// Package pdftext turns a catalog PDF into ordered per-page lines of text.
//
// Pages are read with ledongthuc/pdf first. Pages it cannot decode fall back to
// a content-stream decoder built on pdfcpu, and then to an optional OCR reader
// that receives the single page as its own PDF.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

// ErrExtractionFailed marks a page (or document) no source could read.
var ErrExtractionFailed = errors.New("text extraction failed")

// Source records which reader produced a page's text.
type Source int

const (
	SourceNone Source = iota
	SourcePrimary
	SourceSecondary
	SourceOCR
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceSecondary:
		return "secondary"
	case SourceOCR:
		return "ocr"
	default:
		return "none"
	}
}

// Page is the text of one physical PDF page.
type Page struct {
	Number int // 1-based physical page
	Lines  []string
	Source Source
	Err    error
}

// Text joins the page's lines.
func (p Page) Text() string { return strings.Join(p.Lines, "\n") }

// PageReader reads a single-page PDF, typically by OCR.
type PageReader interface {
	ReadPage(ctx context.Context, pagePDF []byte, pageNr int) (string, error)
}

// Options tune extraction.
type Options struct {
	// Workers bounds the number of goroutines reading pages. Values below 1
	// read sequentially.
	Workers int
	// OCR, when set, is consulted for pages neither text source could read.
	OCR    PageReader
	Logger *slog.Logger
}

// Document is an opened PDF with its pages extracted.
type Document struct {
	path  string
	pages []Page

	mu        sync.Mutex
	secondary *model.Context
	secErr    error
	secLines  map[int][]string
}

// Open extracts every page of the PDF at path. Individual unreadable pages do
// not fail the call; their Page.Err wraps ErrExtractionFailed.
func Open(ctx context.Context, path string, opts Options) (*Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logCtx := logger.With("file", filepath.Base(path))

	d := &Document{path: path, secLines: map[int][]string{}}

	numPages, primaryErr := primaryPageCount(path)
	if primaryErr != nil {
		logCtx.Warn("Primary reader could not open document, using content streams", "error", primaryErr)
		sec, err := d.secondaryContext()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrExtractionFailed, path, errors.Join(primaryErr, err))
		}
		numPages = sec.PageCount
	}

	d.pages = make([]Page, numPages)
	for i := range d.pages {
		d.pages[i].Number = i + 1
	}

	if primaryErr == nil {
		if err := d.readPrimary(ctx, opts.Workers); err != nil {
			return nil, err
		}
	}

	var splitDir string
	defer func() {
		if splitDir != "" {
			os.RemoveAll(splitDir)
		}
	}()

	for i := range d.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := &d.pages[i]
		if len(p.Lines) > 0 {
			continue
		}
		if lines, err := d.SecondaryLines(p.Number); err == nil && len(lines) > 0 {
			p.Lines, p.Source = lines, SourceSecondary
			continue
		}
		if opts.OCR != nil {
			if splitDir == "" {
				dir, err := splitPages(path)
				if err != nil {
					logCtx.Warn("Failed to split document for OCR", "error", err)
				} else {
					splitDir = dir
				}
			}
			if splitDir != "" {
				text, err := readSplitPage(ctx, opts.OCR, splitDir, path, p.Number)
				if err == nil && strings.TrimSpace(text) != "" {
					p.Lines, p.Source = splitLines(text), SourceOCR
					continue
				}
				if err != nil {
					logCtx.Warn("OCR failed for page", "page", p.Number, "error", err)
				}
			}
		}
		p.Err = fmt.Errorf("%w: page %d", ErrExtractionFailed, p.Number)
		logCtx.Warn("No text extracted from page", "page", p.Number)
	}

	return d, nil
}

// PageCount returns the number of physical pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Pages returns all pages in physical order.
func (d *Document) Pages() []Page { return d.pages }

// Page returns the 1-based page n.
func (d *Document) Page(n int) (Page, bool) {
	if n < 1 || n > len(d.pages) {
		return Page{}, false
	}
	return d.pages[n-1], true
}

// Lines returns the lines of page n, or nil when out of range or unreadable.
func (d *Document) Lines(n int) []string {
	p, _ := d.Page(n)
	return p.Lines
}

// Failed counts pages without text.
func (d *Document) Failed() int {
	n := 0
	for _, p := range d.pages {
		if p.Err != nil {
			n++
		}
	}
	return n
}

// SecondaryLines decodes page n directly from its content stream. Results are
// cached; the pdfcpu context is loaded on first use.
func (d *Document) SecondaryLines(n int) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if lines, ok := d.secLines[n]; ok {
		return lines, nil
	}
	sec, err := d.secondaryContextLocked()
	if err != nil {
		return nil, err
	}
	if n < 1 || n > sec.PageCount {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	lines, err := safeContentStreamLines(sec, n)
	if err != nil {
		return nil, err
	}
	d.secLines[n] = lines
	return lines, nil
}

func (d *Document) secondaryContext() (*model.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.secondaryContextLocked()
}

func (d *Document) secondaryContextLocked() (*model.Context, error) {
	if d.secondary != nil || d.secErr != nil {
		return d.secondary, d.secErr
	}
	f, err := os.Open(d.path)
	if err != nil {
		d.secErr = err
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		d.secErr = fmt.Errorf("pdfcpu read: %w", err)
		return nil, d.secErr
	}
	d.secondary = ctx
	return ctx, nil
}

// readPrimary fills page lines from ledongthuc/pdf. Pages are split into one
// contiguous chunk per worker and each worker holds its own reader.
func (d *Document) readPrimary(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	n := len(d.pages)
	if workers > n && n > 0 {
		workers = n
	}
	chunk := int(math.Ceil(float64(n) / float64(workers)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			f, r, err := pdf.Open(d.path)
			if err != nil {
				return fmt.Errorf("failed to open pdf: %w", err)
			}
			defer f.Close()
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				// Each index is written by exactly one worker.
				d.pages[i].Lines = primaryLines(r, i+1)
				if len(d.pages[i].Lines) > 0 {
					d.pages[i].Source = SourcePrimary
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func primaryPageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

// primaryLines reads one page row by row. The underlying reader panics on
// some malformed fonts, which is treated as an unreadable page.
func primaryLines(r *pdf.Reader, pageNr int) (lines []string) {
	defer func() {
		if rec := recover(); rec != nil {
			lines = nil
		}
	}()
	page := r.Page(pageNr)
	if page.V.IsNull() {
		return nil
	}
	rows, err := page.GetTextByRow()
	if err == nil {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })
		for _, row := range rows {
			if line := strings.TrimSpace(joinRow(row.Content)); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) > 0 {
		return lines
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil
	}
	return splitLines(text)
}

// joinRow concatenates the text runs of one row, inserting a space where the
// horizontal gap between runs is wider than a fraction of the font size.
func joinRow(texts []pdf.Text) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var sb strings.Builder
	var prevEnd float64
	for i, t := range sorted {
		if i > 0 && t.X-prevEnd > 0.2*t.FontSize && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(t.S, " ") {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return sb.String()
}

func safeContentStreamLines(ctx *model.Context, pageNr int) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream panic on page %d: %v", pageNr, r)
		}
	}()
	return contentStreamLines(ctx, pageNr)
}

// splitPages writes one PDF per page into a temp dir.
func splitPages(path string) (string, error) {
	dir, err := os.MkdirTemp("", "catalog-pages-")
	if err != nil {
		return "", fmt.Errorf("failed to create split dir: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.SplitFile(path, dir, 1, conf); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to split pdf: %w", err)
	}
	return dir, nil
}

func readSplitPage(ctx context.Context, ocr PageReader, dir, path string, pageNr int) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	b, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("%s_%d.pdf", base, pageNr)))
	if err != nil {
		return "", fmt.Errorf("failed to read split page %d: %w", pageNr, err)
	}
	return ocr.ReadPage(ctx, b, pageNr)
}

func splitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimRight(l, " \t\r"); strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
