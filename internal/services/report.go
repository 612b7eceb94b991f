package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/Lllllllleong/catalogreport/internal/catalog"
	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/reconcile"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

// ErrMissingUpload is returned when a required input file was not provided.
var ErrMissingUpload = errors.New("missing required upload")

// ErrInvalidAcademicYear is returned for years not written like 2024-2025.
var ErrInvalidAcademicYear = errors.New("invalid academic year")

var academicYear = regexp.MustCompile(`^\s*\d{2}(\d{2})\s*-\s*\d{2}(\d{2})\s*$`)

// YearSuffix shortens an academic year: "2024-2025" becomes "2425".
func YearSuffix(year string) (string, error) {
	m := academicYear.FindStringSubmatch(year)
	if m == nil {
		return "", fmt.Errorf("%w: %q is not of the form 2024-2025", ErrInvalidAcademicYear, year)
	}
	return m[1] + m[2], nil
}

// ReportName is the archive name of the report for an academic year.
func ReportName(year string) (string, error) {
	suffix, err := YearSuffix(year)
	if err != nil {
		return "", err
	}
	return "reports/" + suffix + "_Report.xlsx", nil
}

var reportFile = regexp.MustCompile(`^reports/(\d{4})_Report\.xlsx$`)

// ArchivedReport is a report saved by an earlier run.
type ArchivedReport struct {
	Name   string
	Suffix string
	URI    string
}

// ArchivedReports lists the reports in archive ordered by name. Other
// objects under reports/, such as the combined catalog table, are skipped.
func ArchivedReports(ctx context.Context, archive Archive) ([]ArchivedReport, error) {
	names, err := archive.List(ctx, "reports/")
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	sort.Strings(names)
	var out []ArchivedReport
	for _, n := range names {
		m := reportFile.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		out = append(out, ArchivedReport{Name: n, Suffix: m[1], URI: archive.URI(n)})
	}
	return out, nil
}

// ReportRequest describes one report run. LastYear is the path of last
// year's certified workbook; without it every program is New.
type ReportRequest struct {
	AcademicYear  string
	Files         CatalogFiles
	LastYear      string
	LastYearSheet string
	LastYearSkip  int
}

// ReportResult is a finished report.
type ReportResult struct {
	RunID      string
	OutputName string
	OutputURI  string
	Data       []byte
	Records    []models.ReconciledRecord
	// ProgramCount is the number of report rows, also set for reused runs.
	ProgramCount int
	Summary      reconcile.Summary
	Graduate     catalog.Stats
	Undergrad    catalog.Stats
	Warnings     []string
	// Reused is set when an identical earlier run's output was returned.
	Reused bool
}

// Reporter generates reconciled catalog reports.
type Reporter struct {
	rules   *config.Rules
	merger  *Merger
	engine  *reconcile.Engine
	archive Archive
	ledger  Ledger
	logger  *slog.Logger
}

// NewReporter wires a Reporter. A nil ledger records nothing.
func NewReporter(rules *config.Rules, merger *Merger, archive Archive, ledger Ledger, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &Reporter{
		rules:   rules,
		merger:  merger,
		engine:  reconcile.New(rules, logger),
		archive: archive,
		ledger:  ledger,
		logger:  logger,
	}
}

// Generate merges the catalogs, reconciles them against last year's report
// and saves the result as <suffix>_Report.xlsx.
func (r *Reporter) Generate(ctx context.Context, req ReportRequest) (*ReportResult, error) {
	outputName, err := ReportName(req.AcademicYear)
	if err != nil {
		return nil, err
	}
	if req.Files.Graduate == "" || req.Files.Undergraduate == "" {
		return nil, fmt.Errorf("%w: graduate and undergraduate catalogs are both required", ErrMissingUpload)
	}

	hashes, err := inputHashes(map[string]string{
		"graduate":      req.Files.Graduate,
		"graduateToc":   req.Files.GraduateTOC,
		"undergraduate": req.Files.Undergraduate,
		"lastYear":      req.LastYear,
	})
	if err != nil {
		return nil, err
	}
	if err := r.addSettings(hashes, req); err != nil {
		return nil, err
	}
	fileHash := HashInputs(hashes)
	logCtx := r.logger.With("academicYear", req.AcademicYear, "fileHash", fileHash)

	if prev, err := r.ledger.FindComplete(ctx, models.RunKindReport, fileHash); err != nil {
		logCtx.Warn("Failed to check for an identical earlier run", "error", err)
	} else if prev != nil && prev.OutputName == outputName {
		if data, err := r.archive.Load(ctx, outputName); err == nil && hashBytes(data) == prev.OutputHash {
			logCtx.Info("Identical inputs already reported. Reusing output.", "existingRunId", prev.RunID)
			return &ReportResult{
				RunID:        prev.RunID,
				OutputName:   outputName,
				OutputURI:    r.archive.URI(outputName),
				Data:         data,
				ProgramCount: prev.ProgramCount,
				Summary:      reconcile.SummaryFromCounts(prev.Summary),
				Reused:       true,
			}, nil
		}
		logCtx.Info("Earlier output is gone or was replaced, regenerating.", "existingRunId", prev.RunID)
	}

	doc := &models.RunDocument{
		Kind:        models.RunKindReport,
		Status:      models.RunExtracting,
		FileHash:    fileHash,
		InputHashes: hashes,
	}
	if err := r.ledger.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create run document: %w", err)
	}
	logCtx = logCtx.With("runId", doc.RunID)
	logCtx.Info("Report run started.")

	merged, err := r.merger.Merge(ctx, req.Files)
	if err != nil {
		return nil, handleError(ctx, logCtx, r.ledger, doc.RunID, "failed to extract catalogs", err)
	}

	if err := r.ledger.SetStatus(ctx, doc.RunID, models.RunReconciling, ""); err != nil {
		logCtx.Warn("Failed to update run status", "error", err)
	}
	var lastYear []models.ReconciledRecord
	if req.LastYear != "" {
		t, err := sheet.ReadFile(req.LastYear, req.LastYearSheet, req.LastYearSkip)
		if err != nil {
			return nil, handleError(ctx, logCtx, r.ledger, doc.RunID, "failed to read last year's report", err)
		}
		lastYear = sheet.ParseReport(t)
		logCtx.Info("Loaded last year's report.", "programs", len(lastYear))
	}

	records, summary := r.engine.Reconcile(reconcile.FromPrograms(merged.Programs), lastYear)
	data, err := sheet.Encode(sheet.ReportTable(records))
	if err != nil {
		return nil, handleError(ctx, logCtx, r.ledger, doc.RunID, "failed to encode report", err)
	}
	if err := r.archive.Save(ctx, outputName, data); err != nil {
		return nil, handleError(ctx, logCtx, r.ledger, doc.RunID, "failed to save report", err)
	}
	outcome := models.RunOutcome{
		OutputName:   outputName,
		OutputHash:   hashBytes(data),
		ProgramCount: len(records),
		Summary:      summary.Counts(),
	}
	if err := r.ledger.Complete(ctx, doc.RunID, outcome); err != nil {
		logCtx.Warn("Failed to mark run complete", "error", err)
	}

	logCtx.Info("Report generated.", "output", r.archive.URI(outputName), "rows", len(records))
	return &ReportResult{
		RunID:        doc.RunID,
		OutputName:   outputName,
		OutputURI:    r.archive.URI(outputName),
		Data:         data,
		Records:      records,
		ProgramCount: len(records),
		Summary:      summary,
		Graduate:     merged.Graduate,
		Undergrad:    merged.Undergraduate,
		Warnings:     merged.Warnings,
	}, nil
}

// addSettings records everything besides the input files that shapes the
// report, so a run is only reused when it would come out the same.
func (r *Reporter) addSettings(hashes map[string]string, req ReportRequest) error {
	digest, err := r.rules.Digest()
	if err != nil {
		return err
	}
	hashes["academicYear"] = req.AcademicYear
	hashes["rules"] = digest
	hashes["ocr"] = strconv.FormatBool(r.merger.extract.OCR != nil)
	if req.LastYear != "" {
		hashes["lastYearSheet"] = req.LastYearSheet
		hashes["lastYearSkip"] = strconv.Itoa(req.LastYearSkip)
	}
	return nil
}

// inputHashes hashes each non-empty path.
func inputHashes(paths map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for kind, p := range paths {
		if p == "" {
			continue
		}
		h, err := calculateFileHash(p)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate hash of %s: %w", kind, err)
		}
		out[kind] = h
	}
	return out, nil
}
