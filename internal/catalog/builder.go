package catalog

import (
	"log/slog"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
)

// GradCertCredential is the credential recorded for graduate certificates,
// whose titles carry no degree suffix.
const GradCertCredential = "Graduate Certificate"

// BuildGraduateRecord combines a detected title with the text of its profile
// window (the program page plus lookahead pages).
func BuildGraduateRecord(c models.ProgramCandidate, text string, rules config.GraduateRules) models.ProgramRecord {
	name := strings.TrimSpace(c.RawTitle)
	credential := name
	if i := strings.LastIndex(name, ","); i >= 0 {
		credential = strings.TrimSpace(name[i+1:])
	}
	isCert := strings.Contains(strings.ToUpper(credential), "CERT")

	objective := models.ObjectiveGradCert
	if isCert {
		credential = GradCertCredential
	} else {
		objective = ClassifyCredential(credential, rules.CertificateIndicators, rules.DoctorateIndicators)
	}
	concentration := !isCert && DetectConcentration(text, rules.ConcentrationAnchor)

	return models.ProgramRecord{
		Name:                 name,
		Credential:           credential,
		EducationalObjective: objective,
		ProgramType:          graduateType(concentration, isCert, objective),
		HasConcentration:     concentration,
		CreditHours:          FindCreditHours(text),
		LengthUnit:           models.LengthUnitSemester,
		FullTimeEnrollment:   rules.FullTimeEnrollment,
		PageNumber:           c.PageNumber,
		LicensePrep:          ContainsAny(text, rules.LicenseKeywords),
		Modality:             GraduateModality(text),
		Accredited:           !ContainsAny(text, rules.NotAccreditedKeywords),
	}
}

// graduateType applies the decision table: a concentration wins, then
// certificates, then master's and doctoral degrees are majors.
func graduateType(concentration, isCert bool, objective models.EducationalObjective) models.ProgramType {
	switch {
	case concentration:
		return models.TypeMajorWithConcentration
	case isCert:
		return models.TypeGradCert
	case objective == models.ObjectiveMasters || objective == models.ObjectiveDoctorate:
		return models.TypeMajor
	default:
		return models.TypeOther
	}
}

// dedupe keeps the first record for each normalized name.
func dedupe(records []models.ProgramRecord, logger *slog.Logger) ([]models.ProgramRecord, int) {
	seen := make(map[string]int, len(records))
	out := make([]models.ProgramRecord, 0, len(records))
	dropped := 0
	for _, r := range records {
		key := models.NormalizeName(r.Name)
		if first, ok := seen[key]; ok {
			logger.Warn("Duplicate program name, keeping first occurrence",
				"program", r.Name, "firstPage", out[first].PageNumber, "duplicatePage", r.PageNumber)
			dropped++
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out, dropped
}
