package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds service settings read from the environment.
type Config struct {
	ProjectID string

	// WorkDir holds persisted uploads and generated reports when no archive
	// bucket is configured.
	WorkDir string
	// ArchiveBucket switches the archive to GCS when set.
	ArchiveBucket string
	// ReportsBucket receives tables written by the catalog-extractor function.
	ReportsBucket string

	// Ledger selects the run ledger backend: "sqlite", "firestore" or "none".
	Ledger         string
	LedgerPath     string
	CollectionName string

	RulesFile string

	OCREnabled     bool
	VertexAIRegion string

	PageWorkers int
}

// Load reads the configuration from the environment.
func Load() Config {
	workDir := GetEnv("WORK_DIR", "upl_file_bunker")
	return Config{
		ProjectID:      GetEnv("PROJECT_ID", ""),
		WorkDir:        workDir,
		ArchiveBucket:  GetEnv("ARCHIVE_BUCKET", ""),
		ReportsBucket:  GetEnv("REPORTS_BUCKET", ""),
		Ledger:         strings.ToLower(GetEnv("LEDGER", "sqlite")),
		LedgerPath:     GetEnv("LEDGER_PATH", filepath.Join(workDir, "ledger.db")),
		CollectionName: GetEnv("FIRESTORE_COLLECTION", "catalog_runs"),
		RulesFile:      GetEnv("RULES_FILE", ""),
		OCREnabled:     getenvBool("OCR_ENABLED", false),
		VertexAIRegion: GetEnv("VERTEX_AI_REGION", "us-central1"),
		PageWorkers:    getenvInt("PAGE_WORKERS", 1),
	}
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
