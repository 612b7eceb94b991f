package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/catalogreport/internal/gcp"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Ledger records one document per run: its inputs, status and output.
type Ledger interface {
	// FindComplete returns the completed run of kind whose inputs hash to
	// fileHash, or nil.
	FindComplete(ctx context.Context, kind, fileHash string) (*models.RunDocument, error)
	// Create stores doc, assigning RunID and CreatedAt when unset.
	Create(ctx context.Context, doc *models.RunDocument) error
	SetStatus(ctx context.Context, runID, status, errDetails string) error
	Complete(ctx context.Context, runID string, out models.RunOutcome) error
	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// HashInputs digests a set of per-input hashes into one value that does not
// depend on map order.
func HashInputs(hashes map[string]string) string {
	keys := make([]string, 0, len(hashes))
	for k := range hashes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, hashes[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func prepareDoc(doc *models.RunDocument) {
	if doc.RunID == "" {
		doc.RunID = NewRunID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = models.RunValidating
	}
	if doc.FileHash == "" && len(doc.InputHashes) > 0 {
		doc.FileHash = HashInputs(doc.InputHashes)
	}
}

// FirestoreLedger keeps run documents in a Firestore collection keyed by run
// ID.
type FirestoreLedger struct {
	client *firestore.Client
	col    *firestore.CollectionRef
}

// NewFirestoreLedger connects to projectID and uses collection.
func NewFirestoreLedger(ctx context.Context, projectID, collection string) (*FirestoreLedger, error) {
	client, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &FirestoreLedger{client: client, col: client.Collection(collection)}, nil
}

func (l *FirestoreLedger) FindComplete(ctx context.Context, kind, fileHash string) (*models.RunDocument, error) {
	snap, err := gcp.FindOne(ctx, l.col, map[string]interface{}{
		"kind":     kind,
		"fileHash": fileHash,
		"status":   models.RunComplete,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if snap == nil {
		return nil, nil
	}
	var doc models.RunDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", snap.Ref.ID, err)
	}
	return &doc, nil
}

func (l *FirestoreLedger) Create(ctx context.Context, doc *models.RunDocument) error {
	prepareDoc(doc)
	if _, err := l.col.Doc(doc.RunID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to create run document: %w", err)
	}
	return nil
}

func (l *FirestoreLedger) SetStatus(ctx context.Context, runID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := l.col.Doc(runID).Update(ctx, updates)
	return err
}

func (l *FirestoreLedger) Complete(ctx context.Context, runID string, out models.RunOutcome) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.RunComplete},
		{Path: "outputName", Value: out.OutputName},
		{Path: "outputHash", Value: out.OutputHash},
		{Path: "programCount", Value: out.ProgramCount},
	}
	if len(out.Summary) > 0 {
		updates = append(updates, firestore.Update{Path: "summary", Value: out.Summary})
	}
	_, err := l.col.Doc(runID).Update(ctx, updates)
	return err
}

func (l *FirestoreLedger) Close() error { return l.client.Close() }

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL,
	file_hash     TEXT NOT NULL DEFAULT '',
	input_hashes  TEXT NOT NULL DEFAULT '{}',
	output_name   TEXT NOT NULL DEFAULT '',
	output_hash   TEXT NOT NULL DEFAULT '',
	program_count INTEGER NOT NULL DEFAULT 0,
	summary       TEXT NOT NULL DEFAULT '{}',
	error_details TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_by_hash ON runs (kind, file_hash, status);
`

// SQLiteLedger keeps run documents in a local SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLiteLedger opens or creates the database at path.
func OpenSQLiteLedger(ctx context.Context, path string) (*SQLiteLedger, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, runsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate ledger %s: %w", path, err)
	}
	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) FindComplete(ctx context.Context, kind, fileHash string) (*models.RunDocument, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT run_id, kind, status, file_hash, input_hashes, output_name, output_hash, program_count, summary, error_details, created_at
		FROM runs WHERE kind = ? AND file_hash = ? AND status = ?
		ORDER BY created_at LIMIT 1`, kind, fileHash, models.RunComplete)

	var (
		doc     models.RunDocument
		hashes  string
		summary string
		created string
	)
	err := row.Scan(&doc.RunID, &doc.Kind, &doc.Status, &doc.FileHash, &hashes,
		&doc.OutputName, &doc.OutputHash, &doc.ProgramCount, &summary, &doc.ErrorDetails, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if err := json.Unmarshal([]byte(hashes), &doc.InputHashes); err != nil {
		return nil, fmt.Errorf("failed to decode input hashes of run %s: %w", doc.RunID, err)
	}
	if err := json.Unmarshal([]byte(summary), &doc.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary of run %s: %w", doc.RunID, err)
	}
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("failed to decode creation time of run %s: %w", doc.RunID, err)
	}
	return &doc, nil
}

func (l *SQLiteLedger) Create(ctx context.Context, doc *models.RunDocument) error {
	prepareDoc(doc)
	hashes, err := json.Marshal(doc.InputHashes)
	if err != nil {
		return fmt.Errorf("failed to encode input hashes: %w", err)
	}
	if doc.InputHashes == nil {
		hashes = []byte("{}")
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, status, file_hash, input_hashes, output_name, program_count, error_details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.RunID, doc.Kind, doc.Status, doc.FileHash, string(hashes),
		doc.OutputName, doc.ProgramCount, doc.ErrorDetails, doc.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create run document: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) SetStatus(ctx context.Context, runID, status, errDetails string) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_details = CASE WHEN ? = '' THEN error_details ELSE ? END
		WHERE run_id = ?`, status, errDetails, errDetails, runID)
	if err != nil {
		return err
	}
	return expectOneRow(res, runID)
}

func (l *SQLiteLedger) Complete(ctx context.Context, runID string, out models.RunOutcome) error {
	summary := []byte("{}")
	if len(out.Summary) > 0 {
		var err error
		if summary, err = json.Marshal(out.Summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, output_name = ?, output_hash = ?, program_count = ?, summary = ?
		WHERE run_id = ?`,
		models.RunComplete, out.OutputName, out.OutputHash, out.ProgramCount, string(summary), runID)
	if err != nil {
		return err
	}
	return expectOneRow(res, runID)
}

func (l *SQLiteLedger) Close() error { return l.db.Close() }

func expectOneRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// NopLedger records nothing and never reports duplicates.
type NopLedger struct{}

func (NopLedger) FindComplete(context.Context, string, string) (*models.RunDocument, error) {
	return nil, nil
}

func (NopLedger) Create(_ context.Context, doc *models.RunDocument) error {
	prepareDoc(doc)
	return nil
}

func (NopLedger) SetStatus(context.Context, string, string, string) error { return nil }
func (NopLedger) Complete(context.Context, string, models.RunOutcome) error { return nil }
func (NopLedger) Close() error { return nil }

// handleError logs a processing failure, marks the run FAILED and returns an
// error carrying message.
func handleError(ctx context.Context, logCtx *slog.Logger, ledger Ledger, runID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := ledger.SetStatus(ctx, runID, models.RunFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update run status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
