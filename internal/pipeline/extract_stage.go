package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
	"github.com/joseph-ayodele/tender-extractor/internal/llm"
	"github.com/joseph-ayodele/tender-extractor/internal/textproc"
)

// Extraction is the combined result of the field and submittal calls.
type Extraction struct {
	Fields     entity.Fields
	Submittals []entity.Submittal
}

// ExtractStage runs the provider calls for one document, strictly one at a
// time, waiting on the shared limiter before each call.
type ExtractStage struct {
	Extractor  llm.FieldExtractor
	Chunker    textproc.Chunker
	Limiter    *rate.Limiter
	FieldNames []string
	Logger     *slog.Logger
}

// NewLimiter paces provider calls to rpm requests per minute; rpm <= 0 disables pacing.
func NewLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

func NewExtractStage(fe llm.FieldExtractor, chunker textproc.Chunker, limiter *rate.Limiter, fieldNames []string, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &ExtractStage{
		Extractor:  fe,
		Chunker:    chunker,
		Limiter:    limiter,
		FieldNames: fieldNames,
		Logger:     logger,
	}
}

// Run extracts fields, then submittals.
func (s *ExtractStage) Run(ctx context.Context, text string) (Extraction, error) {
	start := time.Now()
	fields, err := s.Fields(ctx, text)
	if err != nil {
		return Extraction{}, err
	}
	subs, err := s.Submittals(ctx, text)
	if err != nil {
		return Extraction{}, err
	}
	s.Logger.Info("pipeline.extract.ok", append(common.LogAttrs(ctx),
		"submittals", len(subs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return Extraction{Fields: fields, Submittals: subs}, nil
}

// Fields merges per-chunk results; the first non-null value for a key wins.
func (s *ExtractStage) Fields(ctx context.Context, text string) (entity.Fields, error) {
	merged := entity.NewFields(s.FieldNames)
	chunks := 0
	for chunk := range s.Chunker.Chunks(text) {
		chunks++
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		got, err := s.Extractor.ExtractFields(ctx, chunk)
		if err != nil {
			s.Logger.Error("pipeline.fields.failed", append(common.LogAttrs(ctx), "chunk", chunks, "error", err)...)
			return nil, err
		}
		for k, v := range got {
			if v != nil && merged[k] == nil {
				val := *v
				merged[k] = &val
			}
		}
	}
	s.Logger.Info("pipeline.fields.ok", append(common.LogAttrs(ctx), "chunks", chunks)...)
	return merged, nil
}

// Submittals concatenates per-chunk results in chunk order, dropping repeated (item, page) pairs.
func (s *ExtractStage) Submittals(ctx context.Context, text string) ([]entity.Submittal, error) {
	out := []entity.Submittal{}
	seen := make(map[submittalKey]struct{})
	chunks := 0
	for chunk := range s.Chunker.Chunks(text) {
		chunks++
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		got, err := s.Extractor.ExtractSubmittals(ctx, chunk)
		if err != nil {
			s.Logger.Error("pipeline.submittals.failed", append(common.LogAttrs(ctx), "chunk", chunks, "error", err)...)
			return nil, err
		}
		for _, sub := range got {
			k := keyOf(sub)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, sub)
		}
	}
	s.Logger.Info("pipeline.submittals.ok", append(common.LogAttrs(ctx), "chunks", chunks, "count", len(out))...)
	return out, nil
}

func (s *ExtractStage) wait(ctx context.Context) error {
	start := time.Now()
	if err := s.Limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		s.Logger.Info("pipeline.ratelimit.waited", append(common.LogAttrs(ctx), "wait_ms", waited.Milliseconds())...)
	}
	return nil
}

type submittalKey struct {
	item string
	page int // 0 when unknown
}

func keyOf(s entity.Submittal) submittalKey {
	k := submittalKey{item: s.Item}
	if s.Page != nil {
		k.page = *s.Page
	}
	return k
}
