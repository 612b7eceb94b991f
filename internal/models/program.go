package models

import "strings"

// EducationalObjective classifies the credential a program awards.
type EducationalObjective int

const (
	ObjectiveOther EducationalObjective = iota
	ObjectiveMasters
	ObjectiveDoctorate
	ObjectiveGradCert
	ObjectiveBachelors
	ObjectiveCertificate
)

func (o EducationalObjective) String() string {
	switch o {
	case ObjectiveMasters:
		return "Masters"
	case ObjectiveDoctorate:
		return "Doctorate"
	case ObjectiveGradCert:
		return "Grad Cert"
	case ObjectiveBachelors:
		return "Bachelor's"
	case ObjectiveCertificate:
		return "Certificate"
	default:
		return "Other"
	}
}

// ParseObjective maps a spreadsheet cell back to an objective. Unrecognised
// values become ObjectiveOther.
func ParseObjective(s string) EducationalObjective {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "grad cert" || strings.Contains(v, "graduate certificate"):
		return ObjectiveGradCert
	case v == "certificate":
		return ObjectiveCertificate
	case strings.HasPrefix(v, "master"):
		return ObjectiveMasters
	case strings.HasPrefix(v, "doctor"):
		return ObjectiveDoctorate
	case strings.HasPrefix(v, "bachelor"):
		return ObjectiveBachelors
	default:
		return ObjectiveOther
	}
}

// ProgramType is the row-level "Type" column.
type ProgramType int

const (
	TypeUnknown ProgramType = iota
	TypeMajor
	TypeMajorWithConcentration
	TypeConcentration
	TypeMinor
	TypeGradCert
	TypeCertificate
	TypeOther
)

func (t ProgramType) String() string {
	switch t {
	case TypeMajor:
		return "Major"
	case TypeMajorWithConcentration:
		return "Major with Concentration"
	case TypeConcentration:
		return "Concentration"
	case TypeMinor:
		return "Minor"
	case TypeGradCert:
		return "Grad Cert"
	case TypeCertificate:
		return "Certificate"
	case TypeOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// ParseProgramType is the inverse of ProgramType.String.
func ParseProgramType(s string) ProgramType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "major":
		return TypeMajor
	case "major with concentration":
		return TypeMajorWithConcentration
	case "concentration":
		return TypeConcentration
	case "minor":
		return TypeMinor
	case "grad cert", "graduate certificate":
		return TypeGradCert
	case "certificate":
		return TypeCertificate
	case "other":
		return TypeOther
	default:
		return TypeUnknown
	}
}

// Modality is the delivery mode of a program.
type Modality int

const (
	ModalityCampus Modality = iota
	ModalityHybrid
	ModalityOnline
)

func (m Modality) String() string {
	switch m {
	case ModalityOnline:
		return "Online"
	case ModalityHybrid:
		return "Hybrid"
	default:
		return "Campus"
	}
}

// ParseModality defaults to ModalityCampus.
func ParseModality(s string) Modality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online":
		return ModalityOnline
	case "hybrid":
		return ModalityHybrid
	default:
		return ModalityCampus
	}
}

// ApprovalStatus is the reconciliation outcome reported to the regulator.
type ApprovalStatus int

const (
	StatusNew ApprovalStatus = iota
	StatusStillApproved
	StatusManualReview
	StatusNameChange
	StatusTeachOutPhase
)

func (s ApprovalStatus) String() string {
	switch s {
	case StatusStillApproved:
		return "Still Approved"
	case StatusManualReview:
		return "Manual Review"
	case StatusNameChange:
		return "Name Change"
	case StatusTeachOutPhase:
		return "Teach Out Phase"
	default:
		return "New"
	}
}

// ParseApprovalStatus reads a status cell. The second return is false when the
// cell is empty or unrecognised.
func ParseApprovalStatus(s string) (ApprovalStatus, bool) {
	v := strings.ToLower(strings.Join(strings.Fields(s), " "))
	switch v {
	case "new":
		return StatusNew, true
	case "still approved":
		return StatusStillApproved, true
	case "manual review":
		return StatusManualReview, true
	case "name change":
		return StatusNameChange, true
	case "teach out phase", "teach-out phase", "teach out":
		return StatusTeachOutPhase, true
	default:
		return StatusNew, false
	}
}

// LengthUnitSemester is the only program length measurement catalogs use.
const LengthUnitSemester = "Semester"

// ProgramCandidate is a detected title before its profile is read.
type ProgramCandidate struct {
	RawTitle string
	// PageNumber is the printed catalog page.
	PageNumber int
	// DocumentPage is the 1-based PDF page the title was found on, 0 if unknown.
	DocumentPage int
}

// ProgramRecord is one row of a catalog report.
type ProgramRecord struct {
	Name                 string
	Credential           string
	EducationalObjective EducationalObjective
	ProgramType          ProgramType
	HasConcentration     bool
	CreditHours          *int
	LengthUnit           string
	FullTimeEnrollment   int
	PageNumber           int
	LicensePrep          bool
	Modality             Modality
	Accredited           bool
}

// ReconciledRecord is a ProgramRecord after year-over-year reconciliation.
type ReconciledRecord struct {
	ProgramRecord
	ApprovalStatus ApprovalStatus
	EffectiveDate  string
	CatalogName    string
	Flag           string
	Comments       string
	// Cells are the values the record was read from, keyed by column header.
	// Only records parsed from an existing report have them.
	Cells map[string]string
}

// NormalizeName is the matching key for program names: trimmed, case-folded,
// with internal whitespace collapsed.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Hours returns a pointer to n, for building records.
func Hours(n int) *int { return &n }
