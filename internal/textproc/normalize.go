package textproc

import (
	"regexp"
	"strings"
)

// reBlank matches any run of whitespace, unicode separators (which include the
// non-breaking spaces U+00A0, U+2007, U+202F), control characters and BOMs.
var reBlank = regexp.MustCompile(`[\s\p{Z}\p{Cc}\x{FEFF}]+`)

// Normalize collapses raw PDF text into a single line with single spaces.
// Whitespace-only input yields "", which callers treat as "no extractable text".
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reBlank.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
