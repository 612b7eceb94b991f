package sheet

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []models.ReconciledRecord {
	return []models.ReconciledRecord{
		{
			ProgramRecord: models.ProgramRecord{
				Name:                 "Biology, Ph.D.",
				Credential:           "Ph.D.",
				EducationalObjective: models.ObjectiveDoctorate,
				ProgramType:          models.TypeMajor,
				CreditHours:          models.Hours(72),
				LengthUnit:           models.LengthUnitSemester,
				FullTimeEnrollment:   9,
				PageNumber:           120,
				Modality:             models.ModalityCampus,
				Accredited:           true,
			},
			ApprovalStatus: models.StatusStillApproved,
			EffectiveDate:  "Fall 2010",
			CatalogName:    "Graduate Catalog",
		},
		{
			ProgramRecord: models.ProgramRecord{
				Name:                 "Geology, M.S.",
				EducationalObjective: models.ObjectiveMasters,
				ProgramType:          models.TypeMajorWithConcentration,
				HasConcentration:     true,
				LengthUnit:           models.LengthUnitSemester,
				FullTimeEnrollment:   9,
				LicensePrep:          true,
				Modality:             models.ModalityOnline,
			},
			ApprovalStatus: models.StatusManualReview,
			EffectiveDate:  "Spring 2019",
			CatalogName:    "Graduate Catalog 2023",
			Flag:           "Manual Review",
			Comments:       "teach out",
		},
	}
}

func TestEncodeDecodeReport(t *testing.T) {
	in := ReportTable(sampleRecords())
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(bytes.NewReader(data), DefaultSheet, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Columns) != len(ReportColumns) {
		t.Fatalf("got %d columns, want %d", len(got.Columns), len(ReportColumns))
	}
	for i, c := range ReportColumns {
		if got.Columns[i] != c {
			t.Errorf("column %d = %q, want %q", i, got.Columns[i], c)
		}
	}
	if got.Len() != 2 {
		t.Fatalf("got %d rows, want 2", got.Len())
	}

	records := ParseReport(got)
	if len(records) != 2 {
		t.Fatalf("ParseReport returned %d records", len(records))
	}
	bio, geo := records[0], records[1]
	if bio.Name != "Biology, Ph.D." || bio.CreditHours == nil || *bio.CreditHours != 72 || bio.PageNumber != 120 {
		t.Errorf("biology: %+v", bio)
	}
	if bio.EducationalObjective != models.ObjectiveDoctorate || !bio.Accredited || bio.ApprovalStatus != models.StatusStillApproved {
		t.Errorf("biology: %+v", bio)
	}
	if geo.CreditHours != nil || geo.PageNumber != 0 || geo.Accredited {
		t.Errorf("geology optional fields: %+v", geo)
	}
	if geo.ProgramType != models.TypeMajorWithConcentration || !geo.HasConcentration || !geo.LicensePrep || geo.Modality != models.ModalityOnline {
		t.Errorf("geology: %+v", geo)
	}
	if geo.ApprovalStatus != models.StatusManualReview || geo.Comments != "teach out" || geo.EffectiveDate != "Spring 2019" {
		t.Errorf("geology reconciliation fields: %+v", geo)
	}
}

func TestEncodeHighlightsManualReview(t *testing.T) {
	data, err := Encode(ReportTable(sampleRecords()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	plain, err := f.GetCellStyle(DefaultSheet, "A2")
	if err != nil {
		t.Fatalf("GetCellStyle: %v", err)
	}
	flagged, err := f.GetCellStyle(DefaultSheet, "A3")
	if err != nil {
		t.Fatalf("GetCellStyle: %v", err)
	}
	if plain != 0 {
		t.Errorf("still approved row should be unstyled, got style %d", plain)
	}
	if flagged == 0 {
		t.Error("manual review row should be highlighted")
	}
}

func TestDecodeSkipsTitleRows(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Institution Report"},
		{},
		{"Program Name", "Effective Date"},
		{"Biology, Ph.D.", "Fall 2010"},
		{},
		{"Chemistry, M.S."},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(DefaultSheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "last_year.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	got, err := ReadFile(path, DefaultSheet, 2)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("got %d rows: %+v", got.Len(), got.Rows)
	}
	if got.Rows[1][0] != "Chemistry, M.S." || got.Rows[1][1] != "" {
		t.Errorf("short row not padded: %q", got.Rows[1])
	}

	records := ParseReport(got)
	if len(records) != 2 || records[0].EffectiveDate != "Fall 2010" || !records[0].Accredited {
		t.Errorf("ParseReport() = %+v", records)
	}
	if records[1].ApprovalStatus != models.StatusStillApproved {
		t.Errorf("missing status should default to Still Approved, got %v", records[1].ApprovalStatus)
	}
}

func TestDecodeErrors(t *testing.T) {
	data, err := Encode(ProgramsTable(nil))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	cases := []struct {
		name  string
		data  []byte
		sheet string
		skip  int
	}{
		{"unknown sheet", data, "Report", 0},
		{"short sheet", data, DefaultSheet, 4},
		{"not a workbook", []byte("plain text"), DefaultSheet, 0},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data), tt.sheet, tt.skip)
			if !errors.Is(err, ErrSheetRead) {
				t.Errorf("expected ErrSheetRead, got %v", err)
			}
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.xlsx"), DefaultSheet, 0)
	if !errors.Is(err, ErrSheetRead) {
		t.Errorf("expected ErrSheetRead, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2526_Report.xlsx")
	programs := []models.ProgramRecord{sampleRecords()[0].ProgramRecord}
	if err := WriteFile(path, ProgramsTable(programs)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path, DefaultSheet, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Len() != 1 || got.Rows[0][got.ColumnIndex(ColType)] != "Major" {
		t.Errorf("unexpected table: %+v", got)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestParseReportWithoutNameColumn(t *testing.T) {
	if got := ParseReport(models.Table{Columns: []string{"Title"}, Rows: [][]string{{"x"}}}); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestDecodeKeepsCellsPastHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Program Name", "Effective Date"},
		{"Biology, Ph.D.", "Fall 2010", "", "late note"},
		{"Chemistry, M.S.", "Fall 2012"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(DefaultSheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := Decode(bytes.NewReader(buf.Bytes()), DefaultSheet, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []string{"Program Name", "Effective Date", "Column C", "Column D"}
	if len(got.Columns) != len(want) {
		t.Fatalf("columns = %q, want %q", got.Columns, want)
	}
	for i := range want {
		if got.Columns[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got.Columns[i], want[i])
		}
	}
	if got.Rows[0][3] != "late note" {
		t.Errorf("cell past the header was dropped: %q", got.Rows[0])
	}
	if len(got.Rows[1]) != len(want) || got.Rows[1][3] != "" {
		t.Errorf("short row not padded to the widened header: %q", got.Rows[1])
	}
}

func TestReportTableKeepsReadCells(t *testing.T) {
	in := models.Table{
		Columns: []string{ColProgramName, ColObjective, ColCreditHours, ColPageNumber, ColEffectiveDate, ColApprovalStatus},
		Rows: [][]string{
			{"ACCOUNTING GRADUATE CERTIFICATE", "Graduate Certificate", "15.0", "", "Fall 2019", "Still Approved"},
		},
	}
	records := ParseReport(in)
	if len(records) != 1 {
		t.Fatalf("ParseReport returned %d records", len(records))
	}
	// As reconciliation leaves a program that disappeared this year.
	removed := records[0]
	removed.Name = "Accounting Graduate Certificate"
	removed.ApprovalStatus = models.StatusManualReview
	removed.Flag = "Manual Review"

	out := ReportTable([]models.ReconciledRecord{removed})
	row := out.Rows[0]
	checks := map[string]string{
		ColProgramName:    "Accounting Graduate Certificate",
		ColObjective:      "Graduate Certificate",
		ColCreditHours:    "15.0",
		ColPageNumber:     "",
		ColEffectiveDate:  "Fall 2019",
		ColApprovalStatus: "Manual Review",
		ColFlag:           "Manual Review",
	}
	for col, want := range checks {
		if got := out.Cell(row, out.ColumnIndex(col)); got != want {
			t.Errorf("%s = %q, want %q", col, got, want)
		}
	}

	fresh := ReportTable([]models.ReconciledRecord{{ProgramRecord: models.ProgramRecord{
		Name:                 "Data Science Graduate Certificate",
		EducationalObjective: models.ObjectiveGradCert,
	}}})
	if got := fresh.Cell(fresh.Rows[0], fresh.ColumnIndex(ColObjective)); got != models.ObjectiveGradCert.String() {
		t.Errorf("records without read cells render their fields, got %q", got)
	}
}
