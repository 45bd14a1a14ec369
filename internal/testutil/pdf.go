package testutil

import (
	"context"
	"os"
	"sync"

	"github.com/joseph-ayodele/tender-extractor/internal/pdftext"
)

// MinimalPDF carries the PDF signature; its content is never parsed in tests.
var MinimalPDF = []byte("%PDF-1.4\n1 0 obj <<>> endobj\ntrailer <<>>\n%%EOF\n")

// StubExtractor returns fixed pages and records which paths it was given
// and whether each file existed at call time.
type StubExtractor struct {
	Pages []string
	Err   error

	mu      sync.Mutex
	paths   []string
	existed []bool
}

var _ pdftext.TextExtractor = (*StubExtractor)(nil)

func (s *StubExtractor) Extract(_ context.Context, path string) (pdftext.Result, error) {
	_, statErr := os.Stat(path)
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.existed = append(s.existed, statErr == nil)
	s.mu.Unlock()
	if s.Err != nil {
		return pdftext.Result{}, s.Err
	}
	return pdftext.Result{Pages: s.Pages, PageCount: len(s.Pages)}, nil
}

// Paths returns the paths passed to Extract.
func (s *StubExtractor) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// AllExisted reports whether every path existed when Extract ran.
func (s *StubExtractor) AllExisted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ok := range s.existed {
		if !ok {
			return false
		}
	}
	return true
}
