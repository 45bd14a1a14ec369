package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/pdftext"
	"github.com/joseph-ayodele/tender-extractor/internal/textproc"
)

// Text is the normalized, page-marked text of an uploaded PDF.
type Text struct {
	Content   string
	PageCount int
}

// TextStage turns a PDF on disk into normalized prompt text.
type TextStage struct {
	Extractor pdftext.TextExtractor
	Logger    *slog.Logger
}

func NewTextStage(ex pdftext.TextExtractor, logger *slog.Logger) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStage{Extractor: ex, Logger: logger}
}

// Run returns common.ErrEmptyExtractedText when the PDF has no text layer.
func (s *TextStage) Run(ctx context.Context, path string) (Text, error) {
	start := time.Now()
	res, err := s.Extractor.Extract(ctx, path)
	if err != nil {
		s.Logger.Error("pipeline.text.failed", append(common.LogAttrs(ctx), "error", err)...)
		return Text{}, err
	}

	content := textproc.Normalize(pdftext.PageMarked(res.Pages))
	if content == "" {
		s.Logger.Warn("pipeline.text.empty", append(common.LogAttrs(ctx), "pages", res.PageCount)...)
		return Text{}, common.ErrEmptyExtractedText
	}

	s.Logger.Info("pipeline.text.ok", append(common.LogAttrs(ctx),
		"pages", res.PageCount,
		"chars", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return Text{Content: content, PageCount: res.PageCount}, nil
}
