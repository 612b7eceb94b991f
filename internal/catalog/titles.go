package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/models"
)

// PageSource is the per-page text a detector scans. Page numbers are 1-based
// physical PDF pages.
type PageSource interface {
	PageCount() int
	Lines(n int) []string
	// SecondaryLines is an independent extraction of the same page, used when
	// the primary text lacks a printed page number.
	SecondaryLines(n int) ([]string, error)
}

var (
	exactPageNumber = regexp.MustCompile(`^\d{3,4}$`)
	bullet          = strings.NewReplacer("•", "")
)

// TitleDetector finds program titles in a graduate catalog, either by scanning
// page headers or by reading a table of contents.
type TitleDetector struct {
	rules config.GraduateRules
	stop  []string

	major    *regexp.Regexp
	tocMajor *regexp.Regexp
	tocCert  *regexp.Regexp
}

// NewTitleDetector compiles the credential suffix list into the title
// patterns.
func NewTitleDetector(rules config.GraduateRules) (*TitleDetector, error) {
	suffixes := SuffixPattern(rules.DegreeSuffixes)
	if suffixes == "" {
		return nil, fmt.Errorf("no degree suffixes configured")
	}
	major, err := regexp.Compile(`^([A-Z].*?),\s*(` + suffixes + `)\.?$`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile title pattern: %w", err)
	}
	tocMajor, err := regexp.Compile(`^([A-Z].*?),\s*(` + suffixes + `)\.?\s*\.{3,}\s*(\d{3,4})$`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile toc pattern: %w", err)
	}
	stop := make([]string, 0, len(rules.StopPhrases))
	for _, p := range rules.StopPhrases {
		stop = append(stop, strings.ToLower(p))
	}
	return &TitleDetector{
		rules:    rules,
		stop:     stop,
		major:    major,
		tocMajor: tocMajor,
		tocCert:  regexp.MustCompile(`([\w:()&’'/,\-.\s]*?Graduate Certificate)\s*\.{3,}\s*(\d{3,4})`),
	}, nil
}

// SuffixPattern turns abbreviations such as "Ph.D." into an alternation that
// tolerates missing periods ("Ph.D", "PhD"). Longer abbreviations come first.
func SuffixPattern(abbrevs []string) string {
	seen := map[string]bool{}
	var alts []string
	for _, a := range abbrevs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		parts := strings.Split(a, ".")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		alt := strings.Join(parts, `\.?`)
		if !seen[alt] {
			seen[alt] = true
			alts = append(alts, alt)
		}
	}
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	return strings.Join(alts, "|")
}

// PrintedPageNumber returns the printed page number of physical page n. The
// last tail lines of the primary text are scanned bottom-up for a bare 3-4
// digit number in rng; failing that, the last fallback lines of the secondary
// text are tried.
func (d *TitleDetector) PrintedPageNumber(src PageSource, n int, rng config.PageRange) (int, error) {
	lines := tail(src.Lines(n), d.rules.PageNumberTailLines)
	for i := len(lines) - 1; i >= 0; i-- {
		s := strings.TrimSpace(lines[i])
		if !exactPageNumber.MatchString(s) {
			continue
		}
		if num, _ := strconv.Atoi(s); rng.Contains(num) {
			return num, nil
		}
	}

	secondary, err := src.SecondaryLines(n)
	if err == nil {
		secondary = tail(secondary, d.rules.FallbackTailLines)
		for i := len(secondary) - 1; i >= 0; i-- {
			num, err := strconv.Atoi(strings.TrimSpace(secondary[i]))
			if err == nil && rng.Contains(num) {
				return num, nil
			}
		}
	}
	return 0, fmt.Errorf("page %d: %w", n, ErrPageNumberUnresolvable)
}

// MajorTitle scans the page header for "<Title>, <Credential>". The header is
// the first non-blank lines up to the college marker; 1..MaxTitleSpan line
// joins are tried at each offset and the first accepted join wins.
func (d *TitleDetector) MajorTitle(lines []string) (string, error) {
	var header []string
	for _, line := range head(lines, d.rules.HeaderLines) {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if d.rules.CollegeMarker != "" && strings.HasPrefix(strings.ToLower(s), d.rules.CollegeMarker) {
			break
		}
		header = append(header, s)
	}

	for j := range header {
		for span := 1; span <= d.rules.MaxTitleSpan; span++ {
			combo := strings.TrimSpace(bullet.Replace(strings.Join(header[j:min(j+span, len(header))], " ")))
			if d.stopped(combo) {
				continue
			}
			if m := d.major.FindStringSubmatch(combo); m != nil {
				return strings.TrimSpace(m[1]) + ", " + strings.TrimSpace(m[2]), nil
			}
		}
	}
	return "", ErrNoTitleFound
}

// CertificateTitle scans the top of a page for a graduate certificate title:
// a join that mentions "graduate certificate", starts with a letter and runs
// 3 to 22 words.
func (d *TitleDetector) CertificateTitle(lines []string) (string, error) {
	top := head(lines, d.rules.CertificateHeaderLines)
	for j := range top {
		for span := 1; span <= d.rules.MaxTitleSpan; span++ {
			parts := top[j:min(j+span, len(top))]
			trimmed := make([]string, len(parts))
			for i, p := range parts {
				trimmed[i] = strings.TrimSpace(p)
			}
			combo := strings.TrimSpace(bullet.Replace(strings.Join(trimmed, " ")))
			if d.stopped(combo) {
				continue
			}
			lower := strings.ToLower(combo)
			words := len(strings.Fields(combo))
			if strings.Contains(lower, "graduate certificate") && startsWithLetter(lower) && words >= 3 && words <= 22 {
				return combo, nil
			}
		}
	}
	return "", ErrNoTitleFound
}

// TOCEntries reads program titles and printed pages from table-of-contents
// lines. Configured manual entries are appended when the TOC lacks them.
func (d *TitleDetector) TOCEntries(lines []string) []models.ProgramCandidate {
	var out []models.ProgramCandidate
	seen := map[string]bool{}
	add := func(name string, page int) {
		key := models.NormalizeName(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, models.ProgramCandidate{RawTitle: name, PageNumber: page})
	}

	for _, entry := range MergeWrappedLines(lines) {
		if m := d.tocMajor.FindStringSubmatch(entry); m != nil {
			page, _ := strconv.Atoi(m[3])
			add(strings.TrimSpace(m[1])+", "+strings.TrimSpace(m[2]), page)
			continue
		}
		if m := d.tocCert.FindStringSubmatch(entry); m != nil {
			page, _ := strconv.Atoi(m[2])
			add(strings.Trim(m[1], " ."), page)
		}
	}
	for _, e := range d.rules.ManualOverrides {
		add(strings.TrimSpace(e.Name), e.Page)
	}
	return out
}

func (d *TitleDetector) stopped(combo string) bool {
	lower := strings.ToLower(combo)
	for _, p := range d.stop {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func startsWithLetter(s string) bool {
	for _, r := range s {
		return r < unicode.MaxASCII && unicode.IsLetter(r)
	}
	return false
}

func head(lines []string, n int) []string {
	if n > 0 && len(lines) > n {
		return lines[:n]
	}
	return lines
}

func tail(lines []string, n int) []string {
	if n > 0 && len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
