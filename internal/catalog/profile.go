package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/models"
)

// hourPattern is one step of the credit-hour cascade.
type hourPattern struct {
	name string
	re   *regexp.Regexp
}

// creditHourCascade is evaluated in order against lower-cased text and the
// first match wins. Order is part of the contract: the specific phrasings must
// be tried before the generic "N credit hours" and "N credits" fallbacks.
var creditHourCascade = []hourPattern{
	{"post-bachelor", regexp.MustCompile(`(\d{2,3})\s+(?:credit|hours|minimum)?\s*\(post[-\s]?bachelor`)},
	{"hours beyond", regexp.MustCompile(`total\s+minimum\s+required\s+hours\s*[:\-–]\s*(\d{1,3})\s+hours\s+beyond`)},
	{"total minimum hours", regexp.MustCompile(`total\s+minimum\s+hours\s*[:\-–]?\s*(\d{1,3})`)},
	{"program minimum credit hours", regexp.MustCompile(`program\s+minimum\s+credit\s+hours\s*[:\-–]?\s*(\d{1,3})`)},
	{"minimum program hours", regexp.MustCompile(`minimum\s+program\s+hours\s*[:\-–]?\s*(\d{1,3})`)},
	{"total minimum credit hours", regexp.MustCompile(`total\s+minimum[^0-9]*(\d{1,3})\s*(?:credit|cr)\s*hours?`)},
	{"minimum hours", regexp.MustCompile(`minimum\s+hours\s*[:\-–]?\s*(\d{1,3})`)},
	{"curriculum requirements", regexp.MustCompile(`curriculum\s+requirements\s*\(\s*(\d{1,3})\s*credit\s+hours\s*\)`)},
	{"curriculum requirements loose", regexp.MustCompile(`curriculum\s+requirements[^0-9]*(\d{1,3})\s*credit\s+hours?`)},
	{"credit hours", regexp.MustCompile(`\b(\d{1,3})\s*credit\s+hours?\b`)},
	{"credits", regexp.MustCompile(`\b(\d{1,3})\s*credits?\b`)},
}

// FindCreditHours returns the program's total credit hours, or nil when no
// pattern matches.
func FindCreditHours(text string) *int {
	h, _ := findCreditHours(text)
	return h
}

// findCreditHours also reports which cascade step matched.
func findCreditHours(text string) (*int, string) {
	lower := strings.ToLower(text)
	for _, p := range creditHourCascade {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return models.Hours(n), p.name
		}
	}
	return nil, ""
}

var nonWord = regexp.MustCompile(`\W`)

// ClassifyCredential maps a credential suffix onto an educational objective.
// Certificate indicators are checked before doctorate indicators, then
// anything starting with M (but not MD) is a master's degree.
func ClassifyCredential(abbrev string, certIndicators, doctorateIndicators []string) models.EducationalObjective {
	ab := strings.ToUpper(nonWord.ReplaceAllString(abbrev, ""))
	switch {
	case containsAnyUpper(ab, certIndicators):
		return models.ObjectiveGradCert
	case containsAnyUpper(ab, doctorateIndicators):
		return models.ObjectiveDoctorate
	case strings.HasPrefix(ab, "M") && !strings.HasPrefix(ab, "MD"):
		return models.ObjectiveMasters
	default:
		return models.ObjectiveOther
	}
}

// DetectConcentration reports whether "concentration" appears after the anchor
// phrase. Mentions before the anchor do not count.
func DetectConcentration(text, anchor string) bool {
	if anchor == "" {
		return false
	}
	lower := strings.ToLower(text)
	i := strings.Index(lower, strings.ToLower(anchor))
	if i < 0 {
		return false
	}
	return strings.Contains(lower[i+1:], "concentration")
}

// GraduateModality prefers Online, then Hybrid, else Campus.
func GraduateModality(text string) models.Modality {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "online"):
		return models.ModalityOnline
	case strings.Contains(lower, "hybrid"):
		return models.ModalityHybrid
	default:
		return models.ModalityCampus
	}
}

var fullyOnline = regexp.MustCompile(`(fully|100%)\s+online`)

// UndergraduateModality recognizes the undergraduate catalog's delivery
// phrasings. Explicit online phrasings beat hybrid, hybrid beats an explicit
// campus-only statement, and a bare "online" mention comes last.
func UndergraduateModality(text string) models.Modality {
	lower := strings.ToLower(text)
	switch {
	case fullyOnline.MatchString(lower),
		ContainsAny(lower, []string{"offered online", "delivered online", "available online", "online format"}):
		return models.ModalityOnline
	case ContainsAny(lower, []string{"hybrid", "blended", "online and on campus"}):
		return models.ModalityHybrid
	case ContainsAny(lower, []string{"on campus only", "in-person only", "campus-based"}):
		return models.ModalityCampus
	case strings.Contains(lower, "online"):
		return models.ModalityOnline
	default:
		return models.ModalityCampus
	}
}

// ContainsAny reports whether text contains any keyword, ignoring case.
func ContainsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func containsAnyUpper(s string, keys []string) bool {
	for _, k := range keys {
		if k != "" && strings.Contains(s, strings.ToUpper(k)) {
			return true
		}
	}
	return false
}
