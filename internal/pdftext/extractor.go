package pdftext

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// TextExtractor turns a PDF on disk into per-page text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
}

// Result is the raw (un-normalized) text layer of a PDF.
type Result struct {
	Pages     []string
	PageCount int
	Duration  time.Duration
}

// Text joins the pages with form feeds, the way pdftotext prints them.
func (r Result) Text() string {
	return strings.Join(r.Pages, "\f")
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner swaps the command runner (tests).
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	e := &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract runs pdftotext and splits its output into pages. The page count
// comes from pdfcpu when it can read the file, else from the form feeds.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return Result{}, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}

	pages := SplitPages(string(out))
	count := len(pages)
	if n, perr := api.PageCountFile(path); perr == nil && n > 0 {
		count = n
	} else if perr != nil {
		e.logger.Warn("pdftext.page_count.fallback", "path", path, "error", perr, "pages", count)
	}

	res := Result{Pages: pages, PageCount: count, Duration: time.Since(start)}
	e.logger.Info("pdftext.extract.ok",
		"pages", res.PageCount,
		"chars", len(res.Text()),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
