package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/pdftext/pdftest"
	"github.com/Lllllllleong/catalogreport/internal/services"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

// useServices points the handler at services backed by a temporary work
// directory.
func useServices(t *testing.T) {
	t.Helper()
	s, err := services.NewServices(context.Background(),
		config.Config{WorkDir: t.TempDir(), Ledger: services.LedgerNone},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	s.Rules.Graduate.Offset = 0
	once.Do(func() {})
	svc, initErr = s, nil
	t.Cleanup(func() { s.Close() })
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".bin")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGenerateCatalogReport(t *testing.T) {
	useServices(t)

	grad := pdftest.Build(pdftest.Lines("Biology, Ph.D.", "Total Minimum Hours: 72", "410"))
	ug := pdftest.Build(pdftest.Lines(
		"UNIVERSITY OF SOUTH FLORIDA UNDERGRADUATE CATALOG 2025-2026",
		"BIOLOGY B.S.", "Program Information", "Total Degree Hours: 120", "200"))

	tests := []struct {
		name     string
		fields   map[string]string
		files    map[string][]byte
		wantCode int
		wantBody string
	}{
		{
			name:     "missing undergraduate catalog",
			fields:   map[string]string{"academic_year": "2025-2026"},
			files:    map[string][]byte{"grad_catalog": grad},
			wantCode: http.StatusBadRequest,
			wantBody: "missing required upload",
		},
		{
			name:     "malformed academic year",
			fields:   map[string]string{"academic_year": "next year"},
			files:    map[string][]byte{"grad_catalog": grad, "ug_catalog": ug},
			wantCode: http.StatusBadRequest,
			wantBody: "invalid academic year",
		},
		{
			name:     "last year is not a workbook",
			fields:   map[string]string{"academic_year": "2025-2026"},
			files:    map[string][]byte{"grad_catalog": grad, "ug_catalog": ug, "last_year": []byte("not a workbook")},
			wantCode: http.StatusBadRequest,
			wantBody: "failed to read sheet",
		},
		{
			name:     "last year sheet missing",
			fields:   map[string]string{"academic_year": "2025-2026", "sheet": "Report"},
			files:    map[string][]byte{"grad_catalog": grad, "ug_catalog": ug, "last_year": emptyWorkbook(t)},
			wantCode: http.StatusBadRequest,
			wantBody: `sheet "Report" not found`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			generateCatalogReport(rec, multipartRequest(t, tt.fields, tt.files))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %q)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not mention %q", rec.Body.String(), tt.wantBody)
			}
		})
	}

	t.Run("json summary", func(t *testing.T) {
		req := multipartRequest(t,
			map[string]string{"academic_year": "2025-2026"},
			map[string][]byte{"grad_catalog": grad, "ug_catalog": ug})
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		generateCatalogReport(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
		}
		var resp models.ReportResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if resp.Status != "success" || resp.OutputName != "reports/2526_Report.xlsx" || resp.ProgramCount != 2 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		generateCatalogReport(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func emptyWorkbook(t *testing.T) []byte {
	t.Helper()
	data, err := sheet.Encode(models.Table{Columns: []string{sheet.ColProgramName}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}
