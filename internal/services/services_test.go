package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/pdftext"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestYearSuffix(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-2025", "2425", false},
		{"2025-2026", "2526", false},
		{" 2022 - 2023 ", "2223", false},
		{"2024", "", true},
		{"24-25", "", true},
	}
	for _, tt := range tests {
		got, err := YearSuffix(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want || (err != nil && !errors.Is(err, ErrInvalidAcademicYear)) {
			t.Errorf("YearSuffix(%q) = %q, %v; want %q (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
	if name, _ := ReportName("2025-2026"); name != "reports/2526_Report.xlsx" {
		t.Errorf("ReportName() = %q", name)
	}
}

func TestHashInputsIsOrderIndependent(t *testing.T) {
	a := HashInputs(map[string]string{"graduate": "aa", "undergraduate": "bb"})
	b := HashInputs(map[string]string{"undergraduate": "bb", "graduate": "aa"})
	if a != b {
		t.Error("hash depends on map order")
	}
	if a == HashInputs(map[string]string{"graduate": "bb", "undergraduate": "aa"}) {
		t.Error("hash ignores which input a value belongs to")
	}
}

func TestLocalArchive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, err := NewLocalArchive(filepath.Join(dir, "bunker"))
	if err != nil {
		t.Fatalf("NewLocalArchive: %v", err)
	}

	if err := a.Save(ctx, "reports/2526_Report.xlsx", []byte("v1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.Save(ctx, "reports/2526_Report.xlsx", []byte("v2")); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	if err := a.Save(ctx, "uploads/grad_catalog_upl.pdf", []byte("%PDF")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := a.Load(ctx, "reports/2526_Report.xlsx")
	if err != nil || string(got) != "v2" {
		t.Fatalf("Load() = %q, %v", got, err)
	}

	names, err := a.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "reports/2526_Report.xlsx" {
		t.Errorf("List() = %v", names)
	}

	if err := a.Save(ctx, "../escape.txt", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("archive wrote outside its directory")
	}
}

func TestSQLiteLedger(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLiteLedger(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteLedger: %v", err)
	}
	defer l.Close()

	hashes := map[string]string{"graduate": "abc"}
	doc := &models.RunDocument{Kind: models.RunKindExtract, InputHashes: hashes}
	if err := l.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.RunID == "" || doc.FileHash != HashInputs(hashes) || doc.Status != models.RunValidating {
		t.Fatalf("Create did not prepare the document: %+v", doc)
	}

	found, err := l.FindComplete(ctx, models.RunKindExtract, doc.FileHash)
	if err != nil || found != nil {
		t.Fatalf("incomplete run reported as duplicate: %+v, %v", found, err)
	}

	out := models.RunOutcome{OutputName: "abc.xlsx", ProgramCount: 12, Summary: map[string]int{"new": 3, "removed": 1}}
	if err := l.Complete(ctx, doc.RunID, out); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	found, err = l.FindComplete(ctx, models.RunKindExtract, doc.FileHash)
	if err != nil || found == nil {
		t.Fatalf("FindComplete() = %+v, %v", found, err)
	}
	if found.RunID != doc.RunID || found.OutputName != "abc.xlsx" || found.ProgramCount != 12 || found.InputHashes["graduate"] != "abc" {
		t.Errorf("unexpected run: %+v", found)
	}
	if found.Summary["new"] != 3 || found.Summary["removed"] != 1 {
		t.Errorf("summary = %v", found.Summary)
	}
	if found, _ := l.FindComplete(ctx, models.RunKindReport, doc.FileHash); found != nil {
		t.Error("runs of another kind must not match")
	}

	if err := l.SetStatus(ctx, "missing", models.RunFailed, "boom"); err == nil {
		t.Error("expected an error for an unknown run")
	}
}

func TestHandleErrorMarksRunFailed(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLiteLedger(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteLedger: %v", err)
	}
	defer l.Close()

	doc := &models.RunDocument{Kind: models.RunKindReport}
	if err := l.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	cause := errors.New("disk full")
	err = handleError(ctx, quietLogger(), l, doc.RunID, "failed to save report", cause)
	if !errors.Is(err, cause) {
		t.Errorf("handleError lost the cause: %v", err)
	}

	var status, details string
	row := l.db.QueryRowContext(ctx, `SELECT status, error_details FROM runs WHERE run_id = ?`, doc.RunID)
	if err := row.Scan(&status, &details); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if status != models.RunFailed || details != "failed to save report: disk full" {
		t.Errorf("status=%q details=%q", status, details)
	}
}

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error
	got  []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.got = parts
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestOCRReader(t *testing.T) {
	ctx := context.Background()

	gen := &fakeGenerator{resp: textResponse("```text\nBIOLOGY, M.S.\n", "412\n```")}
	r := &OCRReader{model: gen, prompt: "transcribe", logger: quietLogger()}
	got, err := r.ReadPage(ctx, []byte("%PDF-1.7"), 3)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got != "BIOLOGY, M.S.\n412" {
		t.Errorf("ReadPage() = %q", got)
	}
	blob, ok := gen.got[0].(genai.Blob)
	if !ok || blob.MIMEType != "application/pdf" || string(blob.Data) != "%PDF-1.7" {
		t.Errorf("page not sent as a PDF blob: %#v", gen.got[0])
	}

	r.model = &fakeGenerator{resp: textResponse("I am unable to read this document.")}
	if _, err := r.ReadPage(ctx, nil, 4); err == nil {
		t.Error("expected refusal to be an error")
	}

	r.model = &fakeGenerator{resp: &genai.GenerateContentResponse{}}
	if got, err := r.ReadPage(ctx, nil, 5); err != nil || got != "" {
		t.Errorf("empty response: %q, %v", got, err)
	}
}

func TestCompareWorkbooks(t *testing.T) {
	cols := []string{"Program Name", "Modality"}
	oldData, err := sheet.Encode(models.Table{Columns: cols, Rows: [][]string{
		{"Biology, Ph.D.", "Campus"},
		{"Philosophy, M.A.", "Campus"},
	}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	newData, err := sheet.Encode(models.Table{Columns: cols, Rows: [][]string{
		{"Biology, Ph.D.", "Online"},
		{"Data Science, M.S.", "Online"},
	}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	res, err := CompareWorkbooks(bytes.NewReader(oldData), bytes.NewReader(newData),
		CompareOptions{Sheet: sheet.DefaultSheet, FirstRow: 1}, quietLogger())
	if err != nil {
		t.Fatalf("CompareWorkbooks: %v", err)
	}
	resp := NewCompareResponse(res)
	if resp.Status != "success" || len(resp.Added) != 1 || resp.Added[0] != "Data Science, M.S." {
		t.Errorf("added: %+v", resp)
	}
	if len(resp.Removed) != 1 || resp.Removed[0] != "Philosophy, M.A." {
		t.Errorf("removed: %+v", resp)
	}
	if len(resp.Changed) != 1 || resp.Changed[0].Columns[0].New != "Online" {
		t.Errorf("changed: %+v", resp.Changed)
	}

	_, err = CompareWorkbooks(bytes.NewReader(oldData), bytes.NewReader(newData),
		CompareOptions{Sheet: "Report", FirstRow: 1}, quietLogger())
	if !errors.Is(err, sheet.ErrSheetRead) {
		t.Errorf("expected ErrSheetRead, got %v", err)
	}
}

func TestCompareOptionsSkipRows(t *testing.T) {
	for first, want := range map[int]int{0: 0, 1: 0, 5: 4} {
		if got := (CompareOptions{FirstRow: first}).skipRows(); got != want {
			t.Errorf("FirstRow %d: skipRows() = %d, want %d", first, got, want)
		}
	}
}

func TestCatalogKind(t *testing.T) {
	tests := map[string]string{
		"graduate/2025.pdf":      "graduate",
		"undergraduate/2025.PDF": "undergraduate",
		"graduate/notes.txt":     "",
		"other/2025.pdf":         "",
	}
	for in, want := range tests {
		if got := catalogKind(in); got != want {
			t.Errorf("catalogKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMergeRequiresBothCatalogs(t *testing.T) {
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	archive, err := NewLocalArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalArchive: %v", err)
	}
	m := NewMerger(rules, archive, pdftext.Options{}, quietLogger())
	if _, err := m.Merge(context.Background(), CatalogFiles{Graduate: "grad.pdf"}); !errors.Is(err, ErrMissingUpload) {
		t.Errorf("expected ErrMissingUpload, got %v", err)
	}
}

func TestMergeAbortsOnUnreadableCatalog(t *testing.T) {
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	dir := t.TempDir()
	archive, err := NewLocalArchive(filepath.Join(dir, "bunker"))
	if err != nil {
		t.Fatalf("NewLocalArchive: %v", err)
	}
	bogus := filepath.Join(dir, "bogus.pdf")
	if err := os.WriteFile(bogus, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := NewMerger(rules, archive, pdftext.Options{}, quietLogger())
	_, err = m.Merge(context.Background(), CatalogFiles{Graduate: bogus, Undergraduate: bogus})
	if err == nil {
		t.Fatal("expected merge to fail")
	}
	if _, err := archive.Load(context.Background(), CombinedCatalog); err == nil {
		t.Error("combined table written despite a failed pipeline")
	}
	if _, err := archive.Load(context.Background(), GradCatalogUpload); err != nil {
		t.Errorf("upload was not persisted: %v", err)
	}
}

func TestReporterRejectsBadInput(t *testing.T) {
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	archive, err := NewLocalArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalArchive: %v", err)
	}
	m := NewMerger(rules, archive, pdftext.Options{}, quietLogger())
	r := NewReporter(rules, m, archive, nil, quietLogger())

	if _, err := r.Generate(context.Background(), ReportRequest{AcademicYear: "next year"}); err == nil {
		t.Error("expected an error for a malformed academic year")
	}
	_, err = r.Generate(context.Background(), ReportRequest{AcademicYear: "2025-2026", Files: CatalogFiles{Graduate: "g.pdf"}})
	if !errors.Is(err, ErrMissingUpload) {
		t.Errorf("expected ErrMissingUpload, got %v", err)
	}
}
