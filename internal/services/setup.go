package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/gcp"
	"github.com/Lllllllleong/catalogreport/internal/pdftext"
)

// Ledger backends.
const (
	LedgerSQLite    = "sqlite"
	LedgerFirestore = "firestore"
	LedgerNone      = "none"
)

// NewLedger opens the backend cfg.Ledger names.
func NewLedger(ctx context.Context, cfg config.Config) (Ledger, error) {
	switch cfg.Ledger {
	case LedgerFirestore:
		l, err := NewFirestoreLedger(ctx, cfg.ProjectID, cfg.CollectionName)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore ledger: %w", err)
		}
		return l, nil
	case LedgerSQLite, "":
		if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		return OpenSQLiteLedger(ctx, cfg.LedgerPath)
	case LedgerNone:
		return NopLedger{}, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger)
	}
}

// Services bundles the collaborators of a report run.
type Services struct {
	Config   config.Config
	Rules    *config.Rules
	Archive  Archive
	Ledger   Ledger
	Merger   *Merger
	Reporter *Reporter

	closers []func() error
}

// NewServices builds every collaborator from cfg. The archive is the GCS
// bucket when one is configured and cfg.WorkDir otherwise.
func NewServices(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog rules: %w", err)
	}
	s := &Services{Config: cfg, Rules: rules}

	var storageClient *storage.Client
	if cfg.ArchiveBucket != "" {
		storageClient, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		s.closers = append(s.closers, storageClient.Close)
		s.Archive = NewGCSArchive(storageClient, cfg.ArchiveBucket, "")
	} else {
		a, err := NewLocalArchive(cfg.WorkDir)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Archive = a
	}

	s.Ledger, err = NewLedger(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, s.Ledger.Close)

	opts := pdftext.Options{Workers: cfg.PageWorkers, Logger: logger}
	if cfg.OCREnabled {
		vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		s.closers = append(s.closers, vertexClient.Close)
		opts.OCR = NewOCRReader(vertexClient.OCRModel, gcp.OCRUserPrompt, logger)
	}

	s.Merger = NewMerger(rules, s.Archive, opts, logger)
	s.Reporter = NewReporter(rules, s.Merger, s.Archive, s.Ledger, logger)
	return s, nil
}

// Close releases clients in reverse order of creation.
func (s *Services) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
