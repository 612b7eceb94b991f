package services

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/pdftext"
	"github.com/Lllllllleong/catalogreport/internal/pdftext/pdftest"
	"github.com/Lllllllleong/catalogreport/internal/reconcile"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

const ugHeader = "UNIVERSITY OF SOUTH FLORIDA UNDERGRADUATE CATALOG 2025-2026"

// recordingArchive remembers the order objects were saved in.
type recordingArchive struct {
	*LocalArchive
	saved []string
}

func (a *recordingArchive) Save(ctx context.Context, name string, data []byte) error {
	a.saved = append(a.saved, name)
	return a.LocalArchive.Save(ctx, name, data)
}

// catalogFiles writes a two-program graduate catalog and a one-program
// undergraduate catalog.
func catalogFiles(t *testing.T) CatalogFiles {
	t.Helper()
	dir := t.TempDir()
	files := CatalogFiles{
		Graduate:      filepath.Join(dir, "grad.pdf"),
		Undergraduate: filepath.Join(dir, "ug.pdf"),
	}
	err := pdftest.WriteFile(files.Graduate,
		pdftest.Lines("Biology, Ph.D.", "Total Minimum Hours: 72", "410"),
		pdftest.Lines("Data Science, M.S.", "Total Minimum Hours: 30", "411"),
	)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err = pdftest.WriteFile(files.Undergraduate,
		pdftest.Lines(ugHeader, "BIOLOGY B.S.", "Program Information", "Total Degree Hours: 120", "200"),
	)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return files
}

func scanRules(t *testing.T) *config.Rules {
	t.Helper()
	rules, err := config.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules: %v", err)
	}
	rules.Graduate.Offset = 0
	return rules
}

func TestMergeGraduateFirst(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalArchive: %v", err)
	}
	archive := &recordingArchive{LocalArchive: local}
	m := NewMerger(scanRules(t), archive, pdftext.Options{}, quietLogger())

	res, err := m.Merge(ctx, catalogFiles(t))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	var names []string
	for _, p := range res.Programs {
		names = append(names, p.Name)
	}
	want := []string{"Biology, Ph.D.", "Data Science, M.S.", "Biology B.S."}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("programs = %q, want %q", names, want)
	}
	if res.Graduate.Programs != 2 || res.Undergraduate.Programs != 1 || len(res.Warnings) != 0 {
		t.Errorf("graduate=%+v undergraduate=%+v warnings=%q", res.Graduate, res.Undergraduate, res.Warnings)
	}

	wantSaved := []string{GradCatalogUpload, UGCatalogUpload, CombinedCatalog}
	if !reflect.DeepEqual(archive.saved, wantSaved) {
		t.Errorf("saved %q, want %q", archive.saved, wantSaved)
	}
	data, err := archive.Load(ctx, CombinedCatalog)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	table, err := sheet.Decode(bytes.NewReader(data), "", 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	name := table.ColumnIndex(sheet.ColProgramName)
	if len(table.Rows) != 3 || table.Cell(table.Rows[0], name) != "Biology, Ph.D." || table.Cell(table.Rows[2], name) != "Biology B.S." {
		t.Errorf("combined table rows = %q", table.Rows)
	}
}

// lastYearReport writes a certified report listing Biology, Ph.D. and a
// certificate that is gone from this year's catalogs.
func lastYearReport(t *testing.T) string {
	t.Helper()
	row := func(name, objective, hours, status string) []string {
		r := make([]string, len(sheet.ReportColumns))
		for i, c := range sheet.ReportColumns {
			switch c {
			case sheet.ColProgramName:
				r[i] = name
			case sheet.ColObjective:
				r[i] = objective
			case sheet.ColCreditHours:
				r[i] = hours
			case sheet.ColApprovalStatus:
				r[i] = status
			case sheet.ColEffectiveDate:
				r[i] = "Fall 2019"
			}
		}
		return r
	}
	path := filepath.Join(t.TempDir(), "2425_Report.xlsx")
	err := sheet.WriteFile(path, models.Table{
		Columns: append([]string(nil), sheet.ReportColumns...),
		Rows: [][]string{
			row("Biology, Ph.D.", "Doctoral", "72", "Still Approved"),
			row("Nursing Education Graduate Certificate", "Graduate Certificate", "15.0", "Still Approved"),
		},
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestGenerateReport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	archive, err := NewLocalArchive(filepath.Join(dir, "bunker"))
	if err != nil {
		t.Fatalf("NewLocalArchive: %v", err)
	}
	ledger, err := OpenSQLiteLedger(ctx, filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteLedger: %v", err)
	}
	defer ledger.Close()

	rules := scanRules(t)
	r := NewReporter(rules, NewMerger(rules, archive, pdftext.Options{}, quietLogger()), archive, ledger, quietLogger())
	req := ReportRequest{
		AcademicYear: "2025-2026",
		Files:        catalogFiles(t),
		LastYear:     lastYearReport(t),
	}

	first, err := r.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.Reused || first.OutputName != "reports/2526_Report.xlsx" {
		t.Fatalf("first run: reused=%v output=%q", first.Reused, first.OutputName)
	}
	wantSummary := reconcile.Summary{New: 2, StillApproved: 1, Removed: 1}
	if first.Summary != wantSummary || first.ProgramCount != 4 {
		t.Errorf("summary = %+v, programs = %d", first.Summary, first.ProgramCount)
	}

	hashes, err := inputHashes(map[string]string{
		"graduate":      req.Files.Graduate,
		"undergraduate": req.Files.Undergraduate,
		"lastYear":      req.LastYear,
	})
	if err != nil {
		t.Fatalf("inputHashes: %v", err)
	}
	if err := r.addSettings(hashes, req); err != nil {
		t.Fatalf("addSettings: %v", err)
	}
	doc, err := ledger.FindComplete(ctx, models.RunKindReport, HashInputs(hashes))
	if err != nil || doc == nil {
		t.Fatalf("FindComplete() = %+v, %v", doc, err)
	}
	if doc.RunID != first.RunID || doc.Status != models.RunComplete || doc.OutputHash != hashBytes(first.Data) {
		t.Errorf("ledger run = %+v", doc)
	}

	table, err := sheet.Decode(bytes.NewReader(first.Data), "", 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	name, objective, hours := table.ColumnIndex(sheet.ColProgramName), table.ColumnIndex(sheet.ColObjective), table.ColumnIndex(sheet.ColCreditHours)
	removed := table.Rows[len(table.Rows)-1]
	if table.Cell(removed, objective) != "Graduate Certificate" || table.Cell(removed, hours) != "15.0" {
		t.Errorf("removed row not kept as read: %q", removed)
	}
	if table.Cell(table.Rows[0], name) != "Biology, Ph.D." {
		t.Errorf("first row = %q", table.Rows[0])
	}

	again, err := r.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate again: %v", err)
	}
	if !again.Reused || again.RunID != first.RunID || !bytes.Equal(again.Data, first.Data) {
		t.Errorf("identical run not reused: reused=%v run=%q", again.Reused, again.RunID)
	}
	if again.Summary != first.Summary || again.ProgramCount != first.ProgramCount {
		t.Errorf("reused summary = %+v, programs = %d", again.Summary, again.ProgramCount)
	}

	skipped := req
	skipped.LastYearSkip = 1
	other, err := r.Generate(ctx, skipped)
	if err != nil {
		t.Fatalf("Generate with skip: %v", err)
	}
	if other.Reused || other.RunID == first.RunID {
		t.Errorf("run with another header row reused %q", other.RunID)
	}
	if other.Summary != (reconcile.Summary{New: 3}) {
		t.Errorf("summary without a readable header = %+v", other.Summary)
	}

	// The third run replaced the shared output, so the first run's workbook is
	// gone and must be rebuilt.
	rebuilt, err := r.Generate(ctx, req)
	if err != nil {
		t.Fatalf("Generate after overwrite: %v", err)
	}
	if rebuilt.Reused || rebuilt.Summary != wantSummary {
		t.Errorf("rebuilt: reused=%v summary=%+v", rebuilt.Reused, rebuilt.Summary)
	}
}

func TestArchivedReports(t *testing.T) {
	ctx := context.Background()
	archive, err := NewLocalArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalArchive: %v", err)
	}
	for _, name := range []string{"reports/2526_Report.xlsx", CombinedCatalog, "reports/2425_Report.xlsx", GradCatalogUpload} {
		if err := archive.Save(ctx, name, []byte("x")); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}

	got, err := ArchivedReports(ctx, archive)
	if err != nil {
		t.Fatalf("ArchivedReports: %v", err)
	}
	if len(got) != 2 || got[0].Suffix != "2425" || got[1].Suffix != "2526" {
		t.Fatalf("ArchivedReports() = %+v", got)
	}
	if got[1].URI != archive.URI("reports/2526_Report.xlsx") {
		t.Errorf("URI = %q", got[1].URI)
	}
}
