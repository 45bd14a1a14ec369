package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/llm"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(Config{
		APIKey:         "sk-test",
		BaseURL:        url + "/v1/",
		Model:          "gpt-4o-mini",
		MaxRetries:     retries,
		RetryBaseDelay: time.Millisecond,
	}, nil)
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

func TestGenerateSendsChatCompletion(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = io.WriteString(w, completion("  {\"ClientName\":\"Acme\"}\n"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	out, err := c.Generate(context.Background(), llm.GenerateRequest{
		System:          "sys",
		Prompt:          "extract",
		Temperature:     0.1,
		MaxOutputTokens: 2048,
		JSONMode:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ClientName":"Acme"}`, out)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.1, got["temperature"], 1e-6)
	assert.Equal(t, float64(2048), got["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]any{"role": "system", "content": "sys"}, msgs[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "extract"}, msgs[1])
}

func TestGenerateOmitsOptionalParams(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = io.WriteString(w, completion("ok"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.NotContains(t, got, "max_tokens")
	assert.NotContains(t, got, "response_format")
	assert.Len(t, got["messages"], 1)
}

func TestGenerateErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		header  map[string]string
		wantErr error
		retry   time.Duration
	}{
		{
			name:    "quota",
			status:  429,
			body:    `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantErr: common.ErrProviderQuotaExceeded,
		},
		{
			name:    "rate limited with hint",
			status:  429,
			body:    `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			header:  map[string]string{"Retry-After": "17"},
			wantErr: common.ErrProviderRateLimited,
			retry:   17 * time.Second,
		},
		{
			name:    "auth",
			status:  401,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantErr: common.ErrProviderAuth,
		},
		{
			name:    "bad request",
			status:  400,
			body:    `{"error":{"message":"context_length_exceeded"}}`,
			wantErr: common.ErrProviderFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL, 0).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.retry, common.RetryAfterHint(err))
			assert.Equal(t, int32(1), calls.Load())

			var perr *common.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.NotEmpty(t, perr.Message)
		})
	}
}

func TestGenerateRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`)
			return
		}
		_, _ = io.WriteString(w, completion("{}"))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, 2).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateQuotaIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"type":"insufficient_quota","message":"quota"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	assert.ErrorIs(t, err, common.ErrProviderQuotaExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateServerErrorsExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream unavailable")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	assert.ErrorIs(t, err, common.ErrProviderFailure)
	assert.Contains(t, err.Error(), "upstream unavailable")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	assert.ErrorIs(t, err, common.ErrProviderFailure)
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Zero(t, parseRetryAfter(h))
	h.Set("x-ratelimit-reset-requests", "6m0s")
	assert.Equal(t, 6*time.Minute, parseRetryAfter(h))
	h.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, parseRetryAfter(h))
}
