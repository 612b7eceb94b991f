package reconcile

import (
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type correction struct {
	re   *regexp.Regexp
	repl string
}

// nameCorrections fix credential abbreviations and words that title casing
// gets wrong. Order matters where patterns overlap (M.S.B. before M.S.B.E.).
var nameCorrections = []correction{
	{regexp.MustCompile(`(?i)\bph\.d\.`), "Ph.D."},
	{regexp.MustCompile(`(?i)ed\.s\.`), "Ed.S."},
	{regexp.MustCompile(`(?i)ed\.d\.`), "Ed.D."},
	{regexp.MustCompile(`(?i)au\.d\.`), "Au.D."},
	{regexp.MustCompile(`(?i)m\.arch\.`), "M.Arch."},
	{regexp.MustCompile(`(?i)m\.ed\.`), "M.Ed."},
	{regexp.MustCompile(`(?i)m\.a\.t\.`), "M.A.T."},
	{regexp.MustCompile(`(?i)m\.s\.n`), "MSN"},
	{regexp.MustCompile(`(?i)b\.s\.n`), "BSN"},
	{regexp.MustCompile(`(?i)\bb\.a\.`), "B.A."},
	{regexp.MustCompile(`(?i)\bb\.s\.`), "B.S."},
	{regexp.MustCompile(`(?i)pharm\.d\.`), "Pharm.D."},
	{regexp.MustCompile(`(?i)dr\.p\.h\.`), "Dr.P.H."},
	{regexp.MustCompile(`(?i)m\.s\.a\.a\.`), "M.S.A.A."},
	{regexp.MustCompile(`(?i)m\.s\.b\.`), "M.S.B."},
	{regexp.MustCompile(`(?i)m\.s\.b\.e\.`), "M.S.B.E."},
	{regexp.MustCompile(`(?i)m\.s\.b\.c\.b\.`), "M.S.B.C.B."},
	{regexp.MustCompile(`(?i)m\.s\.c\.e\.`), "M.S.C.E."},
	{regexp.MustCompile(`(?i)m\.s\.c\.h\.`), "M.S.C.H."},
	{regexp.MustCompile(`(?i)\besol\b`), "ESOL"},
	{regexp.MustCompile(`(?i)\brotc\b`), "ROTC"},
	{regexp.MustCompile(`(?i)\btesla\b`), "TESLA"},
	{regexp.MustCompile(`(?i)\bwoment['’]s\b`), "Women's"},
	{regexp.MustCompile(`(?i)\bwomen['’]s\b`), "Women's"},
	{regexp.MustCompile(`(?i)\bwith\b`), "with"},
	{regexp.MustCompile(`(?i)\bof\b`), "of"},
	{regexp.MustCompile(`(?i)\bcaribbean\b`), "Caribbean"},
}

// capsAfterComma finds multi-word all-caps phrases following a comma, such as
// ", ONLINE DELIVERY". Single tokens are left alone so credentials like "MPH"
// keep their case.
var capsAfterComma = regexp.MustCompile(`,\s*([A-Z][A-Z\-]*(?:\s+[A-Z][A-Z\-]*)+)`)

var quotes = strings.NewReplacer("’S", "'s", "’", "'")

// Formatter renders program names for display. It is safe for concurrent use.
type Formatter struct {
	logger *slog.Logger
}

// NewFormatter returns a Formatter that reports each rewrite at debug level.
func NewFormatter(logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{logger: logger}
}

// FormatName title-cases the part before the first comma and normalizes the
// credential and remainder after it.
func (f *Formatter) FormatName(name string) string {
	raw := name
	name = f.normalize(name)

	var formatted string
	if base, after, ok := strings.Cut(name, ","); ok {
		base = f.normalize(titleCase(base))
		after = strings.TrimSpace(after)
		credential, rest, _ := strings.Cut(after, " ")
		formatted = base + ", " + f.normalize(credential)
		if rest = f.normalize(rest); rest != "" {
			formatted += " " + rest
		}
	} else {
		formatted = f.normalize(titleCase(name))
	}

	if formatted != raw {
		f.logger.Debug("Formatted program name", "raw", raw, "formatted", formatted)
	}
	return formatted
}

// normalize applies the case corrections to s.
func (f *Formatter) normalize(s string) string {
	for _, c := range nameCorrections {
		s = c.re.ReplaceAllString(s, c.repl)
	}
	s = quotes.Replace(s)
	s = capsAfterComma.ReplaceAllStringFunc(s, func(m string) string {
		sub := capsAfterComma.FindStringSubmatch(m)
		return ", " + titleCase(sub[1])
	})
	return strings.TrimSpace(s)
}

// titleCase upper-cases the first letter of each word and lowers the rest.
// Casers carry state, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
