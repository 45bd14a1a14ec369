package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/llm"
)

const providerName = "openai"

var _ llm.Provider = (*Client)(nil)

func (c *Client) Name() string  { return providerName }
func (c *Client) Model() string { return c.cfg.Model }

// Generate implements llm.Provider using chat/completions.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.openai.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", req.Temperature,
		"max_tokens", req.MaxOutputTokens,
		"prompt_len", len(req.Prompt),
	)

	messages := make([]map[string]any, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": req.Temperature,
		"messages":    messages,
	}
	if req.MaxOutputTokens > 0 {
		body["max_tokens"] = req.MaxOutputTokens
	}
	if req.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.postWithRetry(ctx, rid, endpoint, body)
	if err != nil {
		c.logger.Error("llm.openai.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.openai.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", &common.ProviderError{Provider: providerName, Kind: common.ErrProviderFailure, Message: "decode response: " + err.Error()}
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.openai.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", &common.ProviderError{Provider: providerName, Kind: common.ErrProviderFailure, Message: "no choices in response"}
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("llm.openai.ok",
		"req_id", rid,
		"finish_reason", cc.Choices[0].FinishReason,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// postWithRetry retries transport errors, plain rate limits and 5xx up to
// MaxRetries times. Quota and auth failures return immediately.
func (c *Client) postWithRetry(ctx context.Context, rid, url string, body map[string]any) ([]byte, error) {
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := llm.SendJSON(ctx, c.http, url, body, headers, c.logger)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &common.ProviderError{Provider: providerName, Kind: common.ErrProviderFailure, Message: err.Error()}
		case res.OK():
			return res.Body, nil
		default:
			perr := classify(res)
			if !retryable(perr) {
				return nil, perr
			}
			lastErr = perr
			wait = perr.RetryAfter
		}

		if attempt >= c.cfg.MaxRetries {
			return nil, lastErr
		}
		if wait <= 0 {
			wait = c.cfg.RetryBaseDelay << attempt
		}
		if wait > c.cfg.MaxRetryDelay {
			wait = c.cfg.MaxRetryDelay
		}
		c.logger.Warn("llm.openai.retry", "req_id", rid, "attempt", attempt+1, "wait_ms", wait.Milliseconds(), "error", lastErr)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// classify maps a non-2xx response onto the provider error taxonomy.
func classify(res *llm.HTTPResult) *common.ProviderError {
	var ae apiError
	_ = json.Unmarshal(res.Body, &ae)
	msg := ae.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(res.Body))
		if len(msg) > 300 {
			msg = msg[:300]
		}
	}

	perr := &common.ProviderError{
		Provider:   providerName,
		Kind:       common.ErrProviderFailure,
		StatusCode: res.StatusCode,
		RetryAfter: parseRetryAfter(res.Header),
		Message:    msg,
	}
	code := fmt.Sprint(ae.Error.Code)
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		perr.Kind = common.ErrProviderAuth
	case res.StatusCode == http.StatusTooManyRequests && (ae.Error.Type == "insufficient_quota" || code == "insufficient_quota"):
		perr.Kind = common.ErrProviderQuotaExceeded
	case res.StatusCode == http.StatusTooManyRequests:
		perr.Kind = common.ErrProviderRateLimited
	}
	return perr
}

func retryable(perr *common.ProviderError) bool {
	if errors.Is(perr, common.ErrProviderRateLimited) {
		return true
	}
	return errors.Is(perr, common.ErrProviderFailure) && perr.StatusCode >= 500
}

// parseRetryAfter reads Retry-After (seconds or HTTP date), then OpenAI's
// x-ratelimit-reset-requests duration ("1s", "6m0s").
func parseRetryAfter(h http.Header) time.Duration {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if v := strings.TrimSpace(h.Get("x-ratelimit-reset-requests")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 0
}
