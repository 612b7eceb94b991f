package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
)

type correction struct {
	re   *regexp.Regexp
	repl string
}

// undergradTitleCorrections restore tokens that title casing mangles.
var undergradTitleCorrections = []correction{
	{regexp.MustCompile(`(?i)\bB\.A\.`), "B.A."},
	{regexp.MustCompile(`(?i)\bB\.S\.`), "B.S."},
	{regexp.MustCompile(`(?i)\bPh\.D\.`), "Ph.D."},
	{regexp.MustCompile(`(?i)\bwith\b`), "with"},
	{regexp.MustCompile(`(?i)\brotc\b`), "ROTC"},
	{regexp.MustCompile(`(?i)\besol\b`), "ESOL"},
	{regexp.MustCompile(`(?i)\band\b`), "and"},
	{regexp.MustCompile(`(?i)'s\b`), "'s"},
	{regexp.MustCompile(`(?i)\bgpa\b`), "GPA"},
}

// undergradNameCleanup strips fragments that bleed into all-caps titles.
var undergradNameCleanup = []correction{
	{regexp.MustCompile(`^\d+\s+`), ""},
	{regexp.MustCompile(`(?i)\s*Total\s+(?:Minor|Major|Certificate)?\s*Hours:\s*\d+`), ""},
	{regexp.MustCompile(`(?i)\s*Minor Requirements$`), ""},
	{regexp.MustCompile(`(?i)\(\s*\d+\s+Credit\s+Hours\s*\)`), ""},
	{regexp.MustCompile(`\s*-\s*\d+\s*$`), ""},
}

var (
	hasLowercase = regexp.MustCompile(`[a-z]`)

	majorHourPatterns = []*regexp.Regexp{
		regexp.MustCompile(`TOTAL\s+(?:DEGREE|MAJOR|CERTIFICATE)\s+HOURS\s*:\s*(\d+)`),
		regexp.MustCompile(`TOTAL\s+HOURS\s*:\s*(\d+)`),
	}
	certificateHourPatterns = []*regexp.Regexp{
		regexp.MustCompile(`TOTAL\s+CERTIFICATE\s+HOURS\s*[:\-]?\s*(\d+)`),
		regexp.MustCompile(`CERTIFICATE\s+CORE\s*\((\d+)\s+CREDIT\s+HOURS\)`),
		regexp.MustCompile(`CERTIFICATE\s+CORE\s+COURSES\s*\((\d+)\s+CREDIT\s+HOURS\)`),
		regexp.MustCompile(`CERTIFICATE\s+REQUIREMENTS\s*[:\-]?\s*(\d+)\s+CREDIT\s+HOURS`),
		regexp.MustCompile(`(\d+)\s+CREDIT\s+HOURS\s+REQUIRED`),
	}
	minorTotalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`TOTAL\s+MINOR\s+(?:CREDIT\s+)?HOURS\s*[:\-]?\s*(\d+)`),
		regexp.MustCompile(`REQUIRES\s+A\s+TOTAL\s+OF\s+(\d+)\s+CREDIT\s+HOURS`),
		regexp.MustCompile(`COMPLETION\s+OF\s+THE\s+MINOR\s+REQUIRES\s+(\d+)\s+CREDIT\s+HOURS`),
		regexp.MustCompile(`CONSISTS\s+OF\s+A\s+MINIMUM\s+OF\s+(\d+)\s+CREDIT\s+HOURS`),
		regexp.MustCompile(`MINOR\s+(?:CORE|REQUIRED|ELECTIVE)?\s*(?:COURSES)?\s*\((\d+)\s+CREDIT\s+HOURS\)`),
	}
	minorComponentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`MINOR\s+CORE\s+CREDIT\s+HOURS\s*[:\-]?\s*(\d+)`),
		regexp.MustCompile(`MINOR\s+ELECTIVE\s+CREDIT\s+HOURS\s*[:\-]?\s*(\d+)`),
	}
)

// FormatUndergradTitle title-cases an all-caps catalog heading and restores
// credentials and small words.
func FormatUndergradTitle(title string) string {
	s := cases.Title(language.English).String(strings.ToLower(title))
	for _, c := range undergradTitleCorrections {
		s = c.re.ReplaceAllString(s, c.repl)
	}
	return s
}

// CleanUndergradName removes page numbers, hour totals and trailing counters
// from a formatted title.
func CleanUndergradName(name string) string {
	for _, c := range undergradNameCleanup {
		name = c.re.ReplaceAllString(name, c.repl)
	}
	return strings.Join(strings.Fields(name), " ")
}

// UndergradType classifies by keyword in the title.
func UndergradType(name string) models.ProgramType {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "MINOR"):
		return models.TypeMinor
	case strings.Contains(upper, "CERTIFICATE"):
		return models.TypeCertificate
	case strings.Contains(upper, "CONCENTRATION"):
		return models.TypeConcentration
	case strings.Contains(upper, "B.A.") || strings.Contains(upper, "B.S."):
		return models.TypeMajor
	default:
		return models.TypeUnknown
	}
}

// UndergradCreditHours applies the cascade for the program's type to the
// lines below its heading.
func UndergradCreditHours(t models.ProgramType, block []string) *int {
	switch t {
	case models.TypeMajor, models.TypeConcentration:
		for _, line := range block {
			upper := strings.ToUpper(line)
			for _, re := range majorHourPatterns {
				if n := firstInt(re, upper); n > 0 {
					return models.Hours(n)
				}
			}
		}
	case models.TypeCertificate:
		for _, line := range block {
			upper := strings.ToUpper(line)
			for _, re := range certificateHourPatterns {
				if m := re.FindStringSubmatch(upper); m != nil {
					n, _ := strconv.Atoi(m[1])
					return models.Hours(n)
				}
			}
		}
	case models.TypeMinor:
		return minorCreditHours(block)
	}
	return nil
}

// minorCreditHours takes the largest explicit total; without one it sums the
// distinct core and elective component lines.
func minorCreditHours(block []string) *int {
	best := -1
	for _, line := range block {
		upper := strings.ToUpper(line)
		for _, re := range minorTotalPatterns {
			if m := re.FindStringSubmatch(upper); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > best {
					best = n
				}
			}
		}
	}
	if best >= 0 {
		return models.Hours(best)
	}

	type component struct {
		line  string
		value int
	}
	seen := map[component]bool{}
	total := 0
	for _, line := range block {
		upper := strings.ToUpper(line)
		for _, re := range minorComponentPatterns {
			n := firstInt(re, upper)
			if n <= 0 {
				continue
			}
			if c := (component{line, n}); !seen[c] {
				seen[c] = true
				total += n
			}
		}
	}
	if total == 0 {
		return nil
	}
	return models.Hours(total)
}

// UndergradPageNumber is the last all-digit line of three or more digits.
func UndergradPageNumber(lines []string) (int, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		s := strings.TrimSpace(lines[i])
		if len(s) < 3 || strings.TrimLeft(s, "0123456789") != "" {
			continue
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
	}
	return 0, false
}

// undergradHeading reads the all-caps title lines that follow a catalog
// header line, stopping at the first line with lowercase text or the stop
// marker.
func undergradHeading(lines []string, stopMarker string) string {
	var title []string
	for _, line := range lines {
		if line == "" || hasLowercase.MatchString(line) {
			break
		}
		if stopMarker != "" && strings.Contains(strings.ToUpper(line), stopMarker) {
			break
		}
		title = append(title, line)
	}
	return strings.Join(title, " ")
}

func isHeaderLine(line string, markers []string) bool {
	upper := strings.ToUpper(line)
	for _, m := range markers {
		if !strings.Contains(upper, strings.ToUpper(m)) {
			return false
		}
	}
	return true
}

func validUndergradTitle(title string, rules config.UndergraduateRules) bool {
	upper := strings.ToUpper(title)
	for _, p := range rules.InvalidPrefixes {
		if strings.HasPrefix(upper, strings.ToUpper(p)) {
			return false
		}
	}
	for _, s := range rules.ValidSuffixes {
		if strings.Contains(upper, strings.ToUpper(s)) {
			return true
		}
	}
	return false
}

// BuildUndergradRecord parses the program whose header line is lines[j]. It
// returns false when the heading is not a program title or is denylisted.
func BuildUndergradRecord(lines []string, j, page int, rules config.UndergraduateRules) (models.ProgramRecord, bool) {
	title := undergradHeading(lines[j+1:], strings.ToUpper(rules.TitleStopMarker))
	if title == "" || !validUndergradTitle(title, rules) {
		return models.ProgramRecord{}, false
	}
	name := CleanUndergradName(FormatUndergradTitle(title))
	if name == "" || ContainsAny(name, rules.Denylist) {
		return models.ProgramRecord{}, false
	}

	block := window(lines, j+1, j+rules.BlockLines)
	blockText := strings.Join(block, " ")
	t := UndergradType(name)

	objective := models.ObjectiveOther
	switch t {
	case models.TypeMajor, models.TypeMinor, models.TypeConcentration:
		objective = models.ObjectiveBachelors
	case models.TypeCertificate:
		objective = models.ObjectiveCertificate
	}

	return models.ProgramRecord{
		Name:                 name,
		Credential:           undergradCredential(name, t),
		EducationalObjective: objective,
		ProgramType:          t,
		HasConcentration:     t == models.TypeConcentration,
		CreditHours:          UndergradCreditHours(t, block),
		LengthUnit:           models.LengthUnitSemester,
		FullTimeEnrollment:   rules.FullTimeEnrollment,
		PageNumber:           page,
		LicensePrep:          ContainsAny(blockText, rules.LicenseKeywords),
		Modality:             UndergraduateModality(strings.Join(window(lines, j+1, j+rules.ModalityLines), " ")),
		Accredited:           !ContainsAny(blockText, rules.NotAccreditedKeywords),
	}, true
}

func undergradCredential(name string, t models.ProgramType) string {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "B.S."):
		return "B.S."
	case strings.Contains(upper, "B.A."):
		return "B.A."
	case t == models.TypeMinor:
		return "Minor"
	case t == models.TypeCertificate:
		return "Certificate"
	case t == models.TypeConcentration:
		return "Concentration"
	}
	return ""
}

// window returns lines[from:to] clipped to the slice bounds.
func window(lines []string, from, to int) []string {
	from = max(0, min(from, len(lines)))
	to = max(from, min(to, len(lines)))
	return lines[from:to]
}

func firstInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
