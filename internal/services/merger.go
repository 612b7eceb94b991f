package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Lllllllleong/catalogreport/internal/catalog"
	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/pdftext"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

// Archive names of persisted uploads and the combined table.
const (
	GradCatalogUpload = "uploads/grad_catalog_upl.pdf"
	GradTOCUpload     = "uploads/grad_toc_upl.pdf"
	UGCatalogUpload   = "uploads/ug_catalog_upl.pdf"
	CombinedCatalog   = "reports/combined_catalog.xlsx"
)

// CatalogFiles are local paths of one run's catalog PDFs. GraduateTOC is only
// read by the toc strategy.
type CatalogFiles struct {
	Graduate      string
	GraduateTOC   string
	Undergraduate string
}

// MergeResult is the outcome of a successful merge.
type MergeResult struct {
	Programs      []models.ProgramRecord
	Graduate      catalog.Stats
	Undergraduate catalog.Stats
	OutputName    string
	Warnings      []string
}

// Merger runs both catalog pipelines and persists the combined table.
type Merger struct {
	rules   *config.Rules
	archive Archive
	extract pdftext.Options
	logger  *slog.Logger
}

// NewMerger builds a Merger. A nil logger uses slog.Default.
func NewMerger(rules *config.Rules, archive Archive, extract pdftext.Options, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	if extract.Logger == nil {
		extract.Logger = logger
	}
	return &Merger{rules: rules, archive: archive, extract: extract, logger: logger}
}

// ExtractGraduate runs the graduate pipeline over catalogPath, reading the
// table of contents from tocPath when the toc strategy is configured.
func (m *Merger) ExtractGraduate(ctx context.Context, catalogPath, tocPath string) ([]models.ProgramRecord, catalog.Stats, error) {
	pipeline, err := catalog.NewGraduate(m.rules.Graduate, m.logger.With("catalog", "graduate"))
	if err != nil {
		return nil, catalog.Stats{}, fmt.Errorf("failed to build graduate pipeline: %w", err)
	}
	doc, err := pdftext.Open(ctx, catalogPath, m.extract)
	if err != nil {
		return nil, catalog.Stats{}, fmt.Errorf("failed to open graduate catalog: %w", err)
	}

	var toc catalog.PageSource
	if m.rules.Graduate.Strategy == config.StrategyTOC {
		if tocPath == "" {
			return nil, catalog.Stats{}, fmt.Errorf("%w: graduate table of contents", ErrMissingUpload)
		}
		tocDoc, err := pdftext.Open(ctx, tocPath, m.extract)
		if err != nil {
			return nil, catalog.Stats{}, fmt.Errorf("failed to open graduate table of contents: %w", err)
		}
		toc = tocDoc
	}

	records, stats, err := pipeline.Run(ctx, doc, toc)
	if err != nil {
		return nil, stats, fmt.Errorf("graduate pipeline failed: %w", err)
	}
	stats.PagesWithoutText = max(stats.PagesWithoutText, doc.Failed())
	return records, stats, nil
}

// ExtractUndergraduate runs the undergraduate pipeline over path.
func (m *Merger) ExtractUndergraduate(ctx context.Context, path string) ([]models.ProgramRecord, catalog.Stats, error) {
	doc, err := pdftext.Open(ctx, path, m.extract)
	if err != nil {
		return nil, catalog.Stats{}, fmt.Errorf("failed to open undergraduate catalog: %w", err)
	}
	pipeline := catalog.NewUndergraduate(m.rules.Undergraduate, m.logger.With("catalog", "undergraduate"))
	records, stats, err := pipeline.Run(ctx, doc)
	if err != nil {
		return nil, stats, fmt.Errorf("undergraduate pipeline failed: %w", err)
	}
	return records, stats, nil
}

// Merge persists the uploads, extracts both catalogs and writes the combined
// table, graduate programs first. If either pipeline fails nothing is written
// for the combined table.
func (m *Merger) Merge(ctx context.Context, files CatalogFiles) (*MergeResult, error) {
	if files.Graduate == "" {
		return nil, fmt.Errorf("%w: graduate catalog", ErrMissingUpload)
	}
	if files.Undergraduate == "" {
		return nil, fmt.Errorf("%w: undergraduate catalog", ErrMissingUpload)
	}

	uploads := []struct{ local, name string }{
		{files.Graduate, GradCatalogUpload},
		{files.GraduateTOC, GradTOCUpload},
		{files.Undergraduate, UGCatalogUpload},
	}
	for _, u := range uploads {
		if u.local == "" {
			continue
		}
		if err := m.persist(ctx, u.local, u.name); err != nil {
			return nil, err
		}
	}

	grad, gradStats, err := m.ExtractGraduate(ctx, files.Graduate, files.GraduateTOC)
	if err != nil {
		return nil, err
	}
	ug, ugStats, err := m.ExtractUndergraduate(ctx, files.Undergraduate)
	if err != nil {
		return nil, err
	}

	res := &MergeResult{
		Programs:      append(grad, ug...),
		Graduate:      gradStats,
		Undergraduate: ugStats,
		OutputName:    CombinedCatalog,
	}
	if len(res.Programs) == 0 {
		msg := "no programs were extracted from either catalog"
		m.logger.Warn(msg)
		res.Warnings = append(res.Warnings, msg)
	}

	data, err := sheet.Encode(sheet.ProgramsTable(res.Programs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode combined table: %w", err)
	}
	if err := m.archive.Save(ctx, CombinedCatalog, data); err != nil {
		return nil, fmt.Errorf("failed to save combined table: %w", err)
	}
	m.logger.Info("Catalogs merged.",
		"programs", len(res.Programs), "graduate", gradStats, "undergraduate", ugStats,
		"output", m.archive.URI(CombinedCatalog))
	return res, nil
}

func (m *Merger) persist(ctx context.Context, local, name string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("failed to read upload %s: %w", local, err)
	}
	if err := m.archive.Save(ctx, name, data); err != nil {
		return fmt.Errorf("failed to persist upload %s: %w", name, err)
	}
	return nil
}
