package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
)

// Stats counts what a pipeline run skipped and produced.
type Stats struct {
	PagesScanned         int
	PagesWithoutText     int
	PageNumberUnresolved int
	Candidates           int
	Duplicates           int
	Programs             int
}

// LogValue renders Stats as a slog group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("pagesScanned", s.PagesScanned),
		slog.Int("pagesWithoutText", s.PagesWithoutText),
		slog.Int("pageNumberUnresolved", s.PageNumberUnresolved),
		slog.Int("candidates", s.Candidates),
		slog.Int("duplicates", s.Duplicates),
		slog.Int("programs", s.Programs),
	)
}

// Graduate extracts programs from a graduate catalog.
type Graduate struct {
	rules  config.GraduateRules
	titles *TitleDetector
	logger *slog.Logger
}

// NewGraduate builds the graduate pipeline. A nil logger uses slog.Default.
func NewGraduate(rules config.GraduateRules, logger *slog.Logger) (*Graduate, error) {
	titles, err := NewTitleDetector(rules)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Graduate{rules: rules, titles: titles, logger: logger}, nil
}

// Run detects titles with the configured strategy and builds one record per
// program. toc is only read by the "toc" strategy and may be nil otherwise.
func (g *Graduate) Run(ctx context.Context, catalog, toc PageSource) ([]models.ProgramRecord, Stats, error) {
	var (
		stats      Stats
		candidates []models.ProgramCandidate
		err        error
	)
	switch g.rules.Strategy {
	case config.StrategyTOC:
		if toc == nil {
			return nil, stats, fmt.Errorf("toc strategy requires a table-of-contents document")
		}
		candidates = g.titles.TOCEntries(allLines(toc))
	default:
		candidates, err = g.scanHeaders(ctx, catalog, &stats)
		if err != nil {
			return nil, stats, err
		}
	}
	stats.Candidates = len(candidates)

	records := make([]models.ProgramRecord, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		start := c.DocumentPage
		if start == 0 {
			start = c.PageNumber + g.rules.Offset
		}
		text := windowText(catalog, start, g.rules.LookaheadPages)
		if text == "" {
			g.logger.Warn("Profile window is empty", "program", c.RawTitle, "page", c.PageNumber, "documentPage", start)
		}
		records = append(records, BuildGraduateRecord(c, text, g.rules))
	}

	records, stats.Duplicates = dedupe(records, g.logger)
	stats.Programs = len(records)
	g.logger.Info("Graduate catalog extracted", "strategy", g.rules.Strategy, "stats", stats)
	return records, stats, nil
}

// scanHeaders walks every page past the front matter twice over: once for
// majors in their page range and once for certificates in theirs.
func (g *Graduate) scanHeaders(ctx context.Context, src PageSource, stats *Stats) ([]models.ProgramCandidate, error) {
	var majors, certs []models.ProgramCandidate
	for n := g.rules.Offset + 1; n <= src.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats.PagesScanned++
		lines := src.Lines(n)
		if len(lines) == 0 {
			stats.PagesWithoutText++
		}

		if page, err := g.titles.PrintedPageNumber(src, n, g.rules.MajorPages); err == nil {
			if title, err := g.titles.MajorTitle(lines); err == nil {
				majors = append(majors, models.ProgramCandidate{RawTitle: title, PageNumber: page, DocumentPage: n})
			}
		} else if page, cerr := g.titles.PrintedPageNumber(src, n, g.rules.CertificatePages); cerr == nil {
			if title, err := g.titles.CertificateTitle(lines); err == nil {
				certs = append(certs, models.ProgramCandidate{RawTitle: title, PageNumber: page, DocumentPage: n})
			}
		} else if errors.Is(err, ErrPageNumberUnresolvable) {
			stats.PageNumberUnresolved++
			g.logger.Debug("Skipping page without printed page number", "page", n)
		}
	}
	return append(majors, certs...), nil
}

// Undergraduate extracts programs from an undergraduate catalog.
type Undergraduate struct {
	rules  config.UndergraduateRules
	logger *slog.Logger
}

// NewUndergraduate builds the undergraduate pipeline. A nil logger uses
// slog.Default.
func NewUndergraduate(rules config.UndergraduateRules, logger *slog.Logger) *Undergraduate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Undergraduate{rules: rules, logger: logger}
}

// Run scans each page for a catalog header line and parses the program title
// printed under it. Only the first header line on a page is considered.
func (u *Undergraduate) Run(ctx context.Context, src PageSource) ([]models.ProgramRecord, Stats, error) {
	var (
		stats   Stats
		records []models.ProgramRecord
	)
	for n := 1; n <= src.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.PagesScanned++
		lines := trimmedLines(src.Lines(n))
		if len(lines) == 0 {
			stats.PagesWithoutText++
			continue
		}
		page, ok := UndergradPageNumber(lines)
		if !ok {
			stats.PageNumberUnresolved++
			continue
		}
		if page <= u.rules.MinPage {
			continue
		}
		for j, line := range lines {
			if !isHeaderLine(line, u.rules.HeaderMarkers) {
				continue
			}
			if r, ok := BuildUndergradRecord(lines, j, page, u.rules); ok {
				stats.Candidates++
				records = append(records, r)
			}
			break
		}
	}

	records, stats.Duplicates = dedupe(records, u.logger)
	stats.Programs = len(records)
	u.logger.Info("Undergraduate catalog extracted", "stats", stats)
	return records, stats, nil
}

// windowText joins pages start..start+lookahead, skipping pages out of range.
func windowText(src PageSource, start, lookahead int) string {
	var parts []string
	for n := start; n <= start+lookahead; n++ {
		if n < 1 || n > src.PageCount() {
			continue
		}
		parts = append(parts, strings.Join(src.Lines(n), "\n"))
	}
	return strings.Join(parts, "\n")
}

func allLines(src PageSource) []string {
	var out []string
	for n := 1; n <= src.PageCount(); n++ {
		out = append(out, src.Lines(n)...)
	}
	return out
}

func trimmedLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			out = append(out, s)
		}
	}
	return out
}
