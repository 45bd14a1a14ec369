// Package providers selects the configured LLM provider.
package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/llm"
	"github.com/joseph-ayodele/tender-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/tender-extractor/internal/llm/openai"
)

// New builds the provider named by cfg.Provider. The returned close func is
// never nil.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Provider, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case common.ProviderOpenAI:
		c := openai.NewClient(openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}, logger)
		return c, noop, nil
	case common.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			ProjectID: cfg.VertexProject,
			Region:    cfg.VertexRegion,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// NewClient wraps the configured provider in an extraction client.
func NewClient(ctx context.Context, cfg common.LLMConfig, fieldNames []string, logger *slog.Logger) (*llm.Client, func() error, error) {
	p, closeFn, err := New(ctx, cfg, logger)
	if err != nil {
		return nil, closeFn, err
	}
	client, err := llm.NewClient(p, llm.ClientConfig{
		FieldNames:      fieldNames,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, logger)
	if err != nil {
		_ = closeFn()
		return nil, func() error { return nil }, err
	}
	return client, closeFn, nil
}
