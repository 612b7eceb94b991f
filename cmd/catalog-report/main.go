package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/services"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

// maxUploadMemory bounds the multipart parts held in memory; larger parts
// spill to temporary files.
const maxUploadMemory = 32 << 20

var (
	svc     *services.Services
	once    sync.Once
	initErr error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("GenerateCatalogReport", generateCatalogReport)
}

// main is required by the Go Functions Framework.
func main() {}

// generateCatalogReport accepts the catalog uploads as multipart form data and
// returns the report workbook, or a JSON summary when the client accepts
// application/json.
func generateCatalogReport(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		svc, initErr = services.NewServices(context.Background(), config.Load(), slog.Default())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		slog.Error("Could not parse multipart form", "error", err)
		http.Error(w, "Bad Request: expected multipart/form-data", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	tempDir, err := os.MkdirTemp("", "catalog-report-*")
	if err != nil {
		slog.Error("Failed to create temp dir", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tempDir)

	files := map[string]string{}
	for _, field := range []string{"grad_catalog", "grad_toc", "ug_catalog", "last_year"} {
		p, err := saveUpload(r, field, tempDir)
		if err != nil {
			slog.Error("Failed to save upload", "field", field, "error", err)
			http.Error(w, fmt.Sprintf("Bad Request: could not read %s", field), http.StatusBadRequest)
			return
		}
		files[field] = p
	}
	if files["grad_catalog"] == "" || files["ug_catalog"] == "" {
		err := fmt.Errorf("%w: grad_catalog and ug_catalog are required", services.ErrMissingUpload)
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if files["grad_toc"] != "" {
		slog.Info("Table of contents uploaded; the configured graduate strategy decides whether it is read.",
			"strategy", svc.Rules.Graduate.Strategy)
	}

	skip := 0
	if n, err := strconv.Atoi(r.FormValue("first_row")); err == nil && n > 1 {
		skip = n - 1
	}
	req := services.ReportRequest{
		AcademicYear: r.FormValue("academic_year"),
		Files: services.CatalogFiles{
			Graduate:      files["grad_catalog"],
			GraduateTOC:   files["grad_toc"],
			Undergraduate: files["ug_catalog"],
		},
		LastYear:      files["last_year"],
		LastYearSheet: r.FormValue("sheet"),
		LastYearSkip:  skip,
	}

	res, err := svc.Reporter.Generate(r.Context(), req)
	switch {
	case errors.Is(err, services.ErrMissingUpload), errors.Is(err, services.ErrInvalidAcademicYear),
		errors.Is(err, sheet.ErrSheetRead):
		slog.Warn("Rejected report request", "error", err)
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.Error("Report generation failed", "error", err)
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		resp := models.ReportResponse{
			Status:       "success",
			RunID:        res.RunID,
			OutputName:   res.OutputName,
			OutputURI:    res.OutputURI,
			ProgramCount: res.ProgramCount,
			Reused:       res.Reused,
			Warnings:     res.Warnings,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("Failed to write response", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(res.OutputName)))
	if _, err := w.Write(res.Data); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// saveUpload copies the form file in field to dir and returns its path, or ""
// when the field is absent.
func saveUpload(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	return copyUpload(file, header, filepath.Join(dir, field+filepath.Ext(header.Filename)))
}

func copyUpload(file multipart.File, header *multipart.FileHeader, dest string) (string, error) {
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", fmt.Errorf("failed to copy %s: %w", header.Filename, err)
	}
	return dest, nil
}
