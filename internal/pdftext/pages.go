package pdftext

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/tender-extractor/internal/textproc"
)

// SplitPages splits pdftotext output on form feeds. The empty page that
// follows the final form feed is dropped.
func SplitPages(raw string) []string {
	pages := strings.Split(raw, "\f")
	if n := len(pages); n > 1 && textproc.Normalize(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages
}

// PageMarked prefixes each non-blank page with "[Page N]" so the model can
// cite page numbers. Blank pages keep their number but emit nothing; a page
// is blank when Normalize reduces it to "" (BOMs and control bytes included).
func PageMarked(pages []string) string {
	var b strings.Builder
	for i, p := range pages {
		if textproc.Normalize(p) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[Page %d]\n", i+1)
		b.WriteString(p)
	}
	return b.String()
}
