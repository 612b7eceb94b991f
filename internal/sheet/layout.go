package sheet

import (
	"strconv"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/models"
)

// Column headers of the catalog and reconciliation reports.
const (
	ColProgramName   = "Program Name"
	ColAccredited    = "Accredited"
	ColObjective     = "Educational Objective"
	ColConcentration = "Concentrations? Yes or No"
	ColCreditHours   = "Total Credit Hours in Program"
	ColLengthUnit    = "Program Length Measurement"
	ColFullTime      = "Full-Time Enrollment"
	ColPageNumber    = "Page Number"
	ColLicensePrep   = "License Prep"
	ColModality      = "Modality"
	ColType          = "Type"

	ColApprovalStatus = "School Reported Approval Status"
	ColEffectiveDate  = "Effective Date"
	ColCatalogName    = "Catalog or Publication Name along with Number (if more than one is listed above)"
	ColFlag           = "Flag"
	ColComments       = "Comments"
)

// CatalogColumns is the layout of an extracted catalog table.
var CatalogColumns = []string{
	ColProgramName, ColAccredited, ColObjective, ColConcentration, ColCreditHours,
	ColLengthUnit, ColFullTime, ColPageNumber, ColLicensePrep, ColModality, ColType,
}

// ReportColumns is the layout of a reconciled report.
var ReportColumns = append(append([]string(nil), CatalogColumns...),
	ColApprovalStatus, ColEffectiveDate, ColCatalogName, ColFlag, ColComments)

// columnWidths are in excel character units. Unlisted columns use defaultWidth.
var columnWidths = map[string]float64{
	ColProgramName:    60,
	ColObjective:      20,
	ColConcentration:  24,
	ColCreditHours:    28,
	ColLengthUnit:     26,
	ColFullTime:       20,
	ColApprovalStatus: 30,
	ColEffectiveDate:  16,
	ColCatalogName:    40,
	ColComments:       40,
}

const defaultWidth = 14

// ProgramsTable renders records in CatalogColumns order.
func ProgramsTable(records []models.ProgramRecord) models.Table {
	t := models.Table{Columns: append([]string(nil), CatalogColumns...)}
	for _, r := range records {
		t.Rows = append(t.Rows, programRow(r))
	}
	return t
}

// ReportTable renders reconciled records in ReportColumns order. Records that
// still carry the cells they were read from keep those values, except for the
// name, status and flag the reconciliation decided.
func ReportTable(records []models.ReconciledRecord) models.Table {
	t := models.Table{Columns: append([]string(nil), ReportColumns...)}
	for _, r := range records {
		row := append(programRow(r.ProgramRecord),
			r.ApprovalStatus.String(), r.EffectiveDate, r.CatalogName, r.Flag, r.Comments)
		for i, c := range t.Columns {
			if v, ok := r.Cells[c]; ok && !decided[c] {
				row[i] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// decided columns are always rendered from the record's fields.
var decided = map[string]bool{ColProgramName: true, ColApprovalStatus: true, ColFlag: true}

func programRow(r models.ProgramRecord) []string {
	hours := ""
	if r.CreditHours != nil {
		hours = strconv.Itoa(*r.CreditHours)
	}
	page := ""
	if r.PageNumber > 0 {
		page = strconv.Itoa(r.PageNumber)
	}
	return []string{
		r.Name,
		yesNo(r.Accredited),
		r.EducationalObjective.String(),
		yesNo(r.HasConcentration),
		hours,
		r.LengthUnit,
		strconv.Itoa(r.FullTimeEnrollment),
		page,
		yesNo(r.LicensePrep),
		r.Modality.String(),
		r.ProgramType.String(),
	}
}

// ParseReport reads reconciled records from a table such as last year's
// certified report. Only the program name column is required; rows with a
// blank name are skipped and missing columns leave their fields at zero
// values.
func ParseReport(t models.Table) []models.ReconciledRecord {
	col := func(name string) int { return t.ColumnIndex(name) }
	name := col(ColProgramName)
	if name < 0 {
		return nil
	}
	var (
		accredited    = col(ColAccredited)
		objective     = col(ColObjective)
		concentration = col(ColConcentration)
		hours         = col(ColCreditHours)
		length        = col(ColLengthUnit)
		fullTime      = col(ColFullTime)
		page          = col(ColPageNumber)
		license       = col(ColLicensePrep)
		modality      = col(ColModality)
		typ           = col(ColType)
		status        = col(ColApprovalStatus)
		effective     = col(ColEffectiveDate)
		catalogName   = col(ColCatalogName)
		flag          = col(ColFlag)
		comments      = col(ColComments)
	)

	var out []models.ReconciledRecord
	for _, row := range t.Rows {
		get := func(i int) string { return strings.TrimSpace(t.Cell(row, i)) }
		if get(name) == "" {
			continue
		}
		r := models.ReconciledRecord{
			ProgramRecord: models.ProgramRecord{
				Name:                 get(name),
				Accredited:           accredited < 0 || parseYes(get(accredited)),
				EducationalObjective: models.ParseObjective(get(objective)),
				HasConcentration:     parseYes(get(concentration)),
				LengthUnit:           get(length),
				LicensePrep:          parseYes(get(license)),
				Modality:             models.ParseModality(get(modality)),
				ProgramType:          models.ParseProgramType(get(typ)),
			},
			EffectiveDate: get(effective),
			CatalogName:   get(catalogName),
			Flag:          get(flag),
			Comments:      get(comments),
			Cells:         make(map[string]string, len(ReportColumns)),
		}
		for _, c := range ReportColumns {
			if i := col(c); i >= 0 {
				r.Cells[c] = t.Cell(row, i)
			}
		}
		if n, ok := parseInt(get(hours)); ok {
			r.CreditHours = models.Hours(n)
		}
		if n, ok := parseInt(get(fullTime)); ok {
			r.FullTimeEnrollment = n
		}
		if n, ok := parseInt(get(page)); ok {
			r.PageNumber = n
		}
		if s, ok := models.ParseApprovalStatus(get(status)); ok {
			r.ApprovalStatus = s
		} else {
			r.ApprovalStatus = models.StatusStillApproved
		}
		out = append(out, r)
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func parseYes(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "x", "1":
		return true
	}
	return false
}

// parseInt accepts integer cells, including ones a spreadsheet stored as
// floats such as "36.0".
func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}
