package llm

import (
	"context"

	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// GenerateRequest is one prompt sent to a provider.
type GenerateRequest struct {
	System          string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int
	JSONMode        bool // ask the provider for a JSON-only response
}

// Provider is a text generation backend (OpenAI, Gemini).
// Errors should be *common.ProviderError where the failure is the provider's.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// FieldExtractor is the interface the pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (entity.Fields, error)
	ExtractSubmittals(ctx context.Context, text string) ([]entity.Submittal, error)
}
