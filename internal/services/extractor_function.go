package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/catalogreport/internal/catalog"
	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/gcp"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/pdftext"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

// Object prefixes that select the pipeline for an uploaded catalog.
const (
	GraduatePrefix      = "graduate/"
	UndergraduatePrefix = "undergraduate/"
)

// ExtractorFunction extracts a catalog uploaded to GCS into a table in the
// reports bucket.
type ExtractorFunction struct {
	storageClient *storage.Client
	ledger        Ledger
	merger        *Merger
	closers       []func() error
	config        config.Config
}

// NewExtractor builds the function from the environment.
func NewExtractor(ctx context.Context) (*ExtractorFunction, error) {
	cfg := config.Load()
	if cfg.ReportsBucket == "" {
		return nil, fmt.Errorf("REPORTS_BUCKET environment variable must be set")
	}
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog rules: %w", err)
	}
	if rules.Graduate.Strategy == config.StrategyTOC {
		return nil, fmt.Errorf("the extractor handles single uploads and needs the header-scan strategy")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	ledger, err := NewLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f := &ExtractorFunction{
		storageClient: storageClient,
		ledger:        ledger,
		closers:       []func() error{storageClient.Close, ledger.Close},
		config:        cfg,
	}

	opts := pdftext.Options{Workers: cfg.PageWorkers}
	if cfg.OCREnabled {
		vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		opts.OCR = NewOCRReader(vertexClient.OCRModel, gcp.OCRUserPrompt, nil)
		f.closers = append(f.closers, vertexClient.Close)
	}
	// Uploads are already in GCS, the merger's archive is never written to.
	f.merger = NewMerger(rules, NewGCSArchive(storageClient, cfg.ReportsBucket, ""), opts, nil)

	slog.Info("Catalog extractor initialized.", "reportsBucket", cfg.ReportsBucket, "ledger", cfg.Ledger)
	return f, nil
}

// Process handles one object-finalized event.
func (f *ExtractorFunction) Process(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	kind := catalogKind(e.Name)
	if kind == "" {
		logCtx.Info("Object is not a catalog upload. Skipping.")
		return nil
	}
	logCtx = logCtx.With("catalog", kind)
	logCtx.Info("Processing new catalog upload.")

	tempDir, err := os.MkdirTemp("", "catalog-extractor-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := f.streamGCSObject(ctx, e.Bucket, e.Name, sourcePath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(sourcePath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	prev, err := f.ledger.FindComplete(ctx, models.RunKindExtract, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if prev != nil {
		logCtx.Info("Duplicate file detected. Skipping.", "existingRunId", prev.RunID)
		return nil
	}

	doc := &models.RunDocument{
		Kind:        models.RunKindExtract,
		Status:      models.RunExtracting,
		FileHash:    fileHash,
		InputHashes: map[string]string{kind: fileHash},
	}
	if err := f.ledger.Create(ctx, doc); err != nil {
		logCtx.Error("Failed to create run document", "error", err)
		return err
	}
	logCtx = logCtx.With("runId", doc.RunID)

	var (
		records []models.ProgramRecord
		stats   catalog.Stats
	)
	if kind == "graduate" {
		records, stats, err = f.merger.ExtractGraduate(ctx, sourcePath, "")
	} else {
		records, stats, err = f.merger.ExtractUndergraduate(ctx, sourcePath)
	}
	if err != nil {
		return handleError(ctx, logCtx, f.ledger, doc.RunID, "failed to extract catalog", err)
	}
	if len(records) == 0 {
		logCtx.Warn("No programs extracted from catalog.", "stats", stats)
	}

	data, err := sheet.Encode(sheet.ProgramsTable(records))
	if err != nil {
		return handleError(ctx, logCtx, f.ledger, doc.RunID, "failed to encode table", err)
	}
	outputName := fileHash + ".xlsx"
	err = gcp.WriteObject(ctx, f.storageClient.Bucket(f.config.ReportsBucket), outputName, data, true)
	if err != nil && !errors.Is(err, gcp.ErrObjectExists) {
		return handleError(ctx, logCtx, f.ledger, doc.RunID, "failed to save table", err)
	}
	if err := f.ledger.Complete(ctx, doc.RunID, models.RunOutcome{
		OutputName:   outputName,
		OutputHash:   hashBytes(data),
		ProgramCount: len(records),
	}); err != nil {
		return handleError(ctx, logCtx, f.ledger, doc.RunID, "failed to mark run complete", err)
	}
	logCtx.Info("Catalog extracted.", "programs", len(records), "output", fmt.Sprintf("gs://%s/%s", f.config.ReportsBucket, outputName))
	return nil
}

// Close releases the function's clients.
func (f *ExtractorFunction) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// catalogKind maps an object name to the pipeline that reads it, or "".
func catalogKind(name string) string {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return ""
	}
	switch {
	case strings.HasPrefix(name, GraduatePrefix):
		return "graduate"
	case strings.HasPrefix(name, UndergraduatePrefix):
		return "undergraduate"
	default:
		return ""
	}
}

func (f *ExtractorFunction) streamGCSObject(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := f.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}
