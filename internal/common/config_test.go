package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tender-extractor/constants"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DB_URL", "postgres://localhost/tenders")

	cfg := LoadConfig()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(25<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, constants.ModeAsync, cfg.Server.ProcessingMode)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, 10*time.Minute, cfg.Queue.JobTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "GEMINI")
	t.Setenv("VERTEX_PROJECT", "tenders-prod")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("LLM_REQUESTS_PER_MINUTE", "0")
	t.Setenv("PROCESSING_MODE", "sync")

	cfg := LoadConfig()
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(5<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 0, cfg.LLM.RequestsPerMinute)
	assert.Equal(t, constants.ModeSync, cfg.Server.ProcessingMode)
	require.NoError(t, cfg.Validate())
}

func TestValidateMissingRequired(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DB_URL", "")

	err := LoadConfig().Validate()
	require.Error(t, err)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "OPENAI_API_KEY is required")
	assert.Contains(t, appErr.Message, "DB_URL is required")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("LLM_CHUNK_SIZE", "500")
	t.Setenv("LLM_CHUNK_OVERLAP", "800")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER must be one of")
	assert.Contains(t, err.Error(), "LLM_CHUNK_OVERLAP")
}

func TestProviderErrorChain(t *testing.T) {
	err := WrapError(&ProviderError{
		Provider:   "openai",
		Kind:       ErrProviderRateLimited,
		StatusCode: 429,
		RetryAfter: 20 * time.Second,
		Message:    "slow down",
	}, "extract fields")

	assert.ErrorIs(t, err, ErrProviderRateLimited)
	assert.Equal(t, 20*time.Second, RetryAfterHint(err))
	assert.Contains(t, err.Error(), "openai: provider rate limited (status 429): slow down")
	assert.Zero(t, RetryAfterHint(errors.New("plain")))
}

func TestStoreWriteError(t *testing.T) {
	cause := errors.New("disk full")
	err := StoreWriteError("update document", cause)
	assert.ErrorIs(t, err, ErrStoreWrite)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, StoreWriteError("noop", nil))
}
