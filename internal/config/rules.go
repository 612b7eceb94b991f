package config

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Graduate title-detection strategies.
const (
	StrategyHeaderScan = "header-scan"
	StrategyTOC        = "toc"
)

// PageRange is an inclusive range of printed page numbers.
type PageRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Contains reports whether n lies in the range.
func (r PageRange) Contains(n int) bool { return n >= r.Min && n <= r.Max }

// ManualEntry is a TOC entry the catalog's formatting hides from the parser.
type ManualEntry struct {
	Name string `yaml:"name"`
	Page int    `yaml:"page"`
}

// CatalogLabels name the publications programs are attributed to.
type CatalogLabels struct {
	Graduate      string `yaml:"graduate"`
	Undergraduate string `yaml:"undergraduate"`
}

// GraduateRules drive the graduate catalog pipeline.
type GraduateRules struct {
	Strategy               string        `yaml:"strategy"`
	Offset                 int           `yaml:"offset"`
	FullTimeEnrollment     int           `yaml:"full_time_enrollment"`
	MajorPages             PageRange     `yaml:"major_pages"`
	CertificatePages       PageRange     `yaml:"certificate_pages"`
	PageNumberTailLines    int           `yaml:"page_number_tail_lines"`
	FallbackTailLines      int           `yaml:"fallback_tail_lines"`
	HeaderLines            int           `yaml:"header_lines"`
	CertificateHeaderLines int           `yaml:"certificate_header_lines"`
	MaxTitleSpan           int           `yaml:"max_title_span"`
	CollegeMarker          string        `yaml:"college_marker"`
	LookaheadPages         int           `yaml:"lookahead_pages"`
	ConcentrationAnchor    string        `yaml:"concentration_anchor"`
	DegreeSuffixes         []string      `yaml:"degree_suffixes"`
	StopPhrases            []string      `yaml:"stop_phrases"`
	CertificateIndicators  []string      `yaml:"certificate_indicators"`
	DoctorateIndicators    []string      `yaml:"doctorate_indicators"`
	LicenseKeywords        []string      `yaml:"license_keywords"`
	NotAccreditedKeywords  []string      `yaml:"not_accredited_keywords"`
	ManualOverrides        []ManualEntry `yaml:"toc_manual_overrides"`
}

// UndergraduateRules drive the undergraduate catalog pipeline.
type UndergraduateRules struct {
	FullTimeEnrollment    int      `yaml:"full_time_enrollment"`
	MinPage               int      `yaml:"min_page"`
	HeaderMarkers         []string `yaml:"header_markers"`
	TitleStopMarker       string   `yaml:"title_stop_marker"`
	BlockLines            int      `yaml:"block_lines"`
	ModalityLines         int      `yaml:"modality_lines"`
	ValidSuffixes         []string `yaml:"valid_suffixes"`
	InvalidPrefixes       []string `yaml:"invalid_prefixes"`
	Denylist              []string `yaml:"denylist"`
	LicenseKeywords       []string `yaml:"license_keywords"`
	NotAccreditedKeywords []string `yaml:"not_accredited_keywords"`
}

// Rules is the full set of catalog heuristics for one catalog year.
type Rules struct {
	CurrentTerm   string             `yaml:"current_term"`
	FlagText      string             `yaml:"flag_text"`
	CatalogLabels CatalogLabels      `yaml:"catalog_labels"`
	Graduate      GraduateRules      `yaml:"graduate"`
	Undergraduate UndergraduateRules `yaml:"undergraduate"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(defaultRules, &r); err != nil {
		return nil, fmt.Errorf("failed to parse embedded rules: %w", err)
	}
	return &r, nil
}

// LoadRules returns the embedded rules with the YAML file at path layered on
// top. Keys absent from the file keep their defaults; lists present in the file
// replace the default list entirely. An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	r, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return r, r.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return r, r.Validate()
}

// Digest identifies the rule set. Two rule sets with equal values share a
// digest however they were loaded.
func (r *Rules) Digest() (string, error) {
	b, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rules: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Validate rejects rule sets the pipelines cannot run with.
func (r *Rules) Validate() error {
	g := r.Graduate
	switch g.Strategy {
	case StrategyHeaderScan, StrategyTOC:
	default:
		return fmt.Errorf("unknown graduate strategy %q", g.Strategy)
	}
	if g.Offset < 0 {
		return fmt.Errorf("graduate offset must not be negative, got %d", g.Offset)
	}
	if len(g.DegreeSuffixes) == 0 {
		return fmt.Errorf("graduate degree_suffixes must not be empty")
	}
	if g.MajorPages.Min > g.MajorPages.Max || g.CertificatePages.Min > g.CertificatePages.Max {
		return fmt.Errorf("graduate page ranges must have min <= max")
	}
	if g.MaxTitleSpan < 1 {
		return fmt.Errorf("graduate max_title_span must be at least 1")
	}
	if len(r.Undergraduate.HeaderMarkers) == 0 {
		return fmt.Errorf("undergraduate header_markers must not be empty")
	}
	if r.CurrentTerm == "" {
		return fmt.Errorf("current_term must be set")
	}
	return nil
}
