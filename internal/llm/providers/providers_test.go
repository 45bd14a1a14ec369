package providers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tender-extractor/constants"
	"github.com/joseph-ayodele/tender-extractor/internal/common"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewOpenAI(t *testing.T) {
	p, closeFn, err := New(context.Background(), common.LLMConfig{
		Provider: common.ProviderOpenAI,
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	}, discard)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4o-mini", p.Model())
	assert.NoError(t, closeFn())
}

func TestNewUnknownProvider(t *testing.T) {
	_, closeFn, err := New(context.Background(), common.LLMConfig{Provider: "claude"}, discard)
	assert.ErrorContains(t, err, `unknown LLM provider "claude"`)
	assert.NotNil(t, closeFn)
}

func TestNewGeminiRequiresProject(t *testing.T) {
	_, _, err := New(context.Background(), common.LLMConfig{Provider: common.ProviderGemini, VertexRegion: "us-central1"}, discard)
	assert.Error(t, err)
}

func TestNewClient(t *testing.T) {
	c, _, err := NewClient(context.Background(), common.LLMConfig{Provider: common.ProviderOpenAI, APIKey: "sk-test"},
		constants.AsStringSlice(), discard)
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Provider().Name())

	_, _, err = NewClient(context.Background(), common.LLMConfig{Provider: common.ProviderOpenAI, APIKey: "sk-test"}, nil, discard)
	assert.Error(t, err)
}
