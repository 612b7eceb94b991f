package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/catalogreport/internal/services"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

const maxUploadMemory = 32 << 20

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("CompareReports", compareReports)
}

// main is required by the Go Functions Framework.
func main() {}

// compareReports diffs the "old" and "new" workbooks of a multipart request.
// Optional fields: sheet (default Sheet1) and first_row, the row holding the
// column headers (default 5).
func compareReports(w http.ResponseWriter, r *http.Request) {
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

	oldFile, _, err := r.FormFile("old")
	if err != nil {
		http.Error(w, "Bad Request: missing old report", http.StatusBadRequest)
		return
	}
	defer oldFile.Close()
	newFile, _, err := r.FormFile("new")
	if err != nil {
		http.Error(w, "Bad Request: missing new report", http.StatusBadRequest)
		return
	}
	defer newFile.Close()

	opts := services.CompareOptions{Sheet: r.FormValue("sheet"), FirstRow: 5}
	if v := r.FormValue("first_row"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Bad Request: first_row must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.FirstRow = n
	}

	logCtx := slog.With("sheet", opts.Sheet, "firstRow", opts.FirstRow)
	res, err := services.CompareWorkbooks(oldFile, newFile, opts, logCtx)
	if errors.Is(err, sheet.ErrSheetRead) {
		logCtx.Warn("Could not read reports", "error", err)
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logCtx.Error("Comparison failed", "error", err)
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(services.NewCompareResponse(res)); err != nil {
		logCtx.Error("Failed to write response", "error", err)
	}
}
