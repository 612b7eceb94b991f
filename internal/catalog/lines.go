package catalog

import (
	"regexp"
	"strings"
)

// tocTerminator matches a dotted leader followed by a printed page number.
var tocTerminator = regexp.MustCompile(`\.{3,}\s*\d{3,4}$`)

// MergeWrappedLines joins soft-wrapped table-of-contents lines. Lines
// accumulate until one ends in a dotted leader and page number, then the
// buffer is emitted as a single entry. A trailing unterminated buffer is
// emitted as-is.
func MergeWrappedLines(lines []string) []string {
	var (
		out []string
		buf []string
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		buf = append(buf, line)
		if tocTerminator.MatchString(line) {
			out = append(out, strings.Join(buf, " "))
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		out = append(out, strings.Join(buf, " "))
	}
	return out
}
