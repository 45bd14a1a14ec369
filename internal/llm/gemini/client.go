// Package gemini implements llm.Provider on Vertex AI Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/llm"
)

const providerName = "gemini"

// Config for the Vertex AI client.
type Config struct {
	ProjectID string
	Region    string // e.g., "us-central1"
	Model     string // e.g., "gemini-2.0-flash"
	Timeout   time.Duration
}

type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

var _ llm.Provider = (*Client)(nil)

// NewClient dials Vertex AI using application default credentials.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("gemini: project and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger}, nil
}

func (c *Client) Name() string  { return providerName }
func (c *Client) Model() string { return c.cfg.Model }

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// Generate implements llm.Provider. A model handle is built per call so
// concurrent requests never share generation settings.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	model := c.base.GenerativeModel(c.cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		model.MaxOutputTokens = genai.Ptr(int32(req.MaxOutputTokens))
	}
	if req.JSONMode {
		model.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	c.logger.Info("llm.gemini.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", req.Temperature,
		"max_tokens", req.MaxOutputTokens,
		"prompt_len", len(req.Prompt),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := model.GenerateContent(callCtx, genai.Text(req.Prompt))
	if err != nil {
		perr := classifyError(err)
		c.logger.Error("llm.gemini.error",
			"req_id", rid, "kind", perr.Kind, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", perr
	}

	text, finish, err := responseText(resp)
	if err != nil {
		c.logger.Error("llm.gemini.empty_response", "req_id", rid, "error", err)
		return "", err
	}
	c.logger.Info("llm.gemini.ok",
		"req_id", rid,
		"finish_reason", finish,
		"content_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", "", &common.ProviderError{Provider: providerName, Kind: common.ErrProviderFailure, Message: "no candidates in response"}
	}
	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String()), cand.FinishReason.String(), nil
}

// classifyError maps gRPC status codes from Vertex AI onto the provider taxonomy.
func classifyError(err error) *common.ProviderError {
	perr := &common.ProviderError{Provider: providerName, Kind: common.ErrProviderFailure, Message: err.Error()}
	if errors.Is(err, context.DeadlineExceeded) {
		perr.Message = "request timed out"
		return perr
	}
	st, ok := status.FromError(err)
	if !ok {
		return perr
	}
	perr.Message = st.Message()
	switch st.Code() {
	case codes.ResourceExhausted:
		if strings.Contains(strings.ToLower(st.Message()), "quota") {
			perr.Kind = common.ErrProviderQuotaExceeded
		} else {
			perr.Kind = common.ErrProviderRateLimited
		}
		perr.StatusCode = 429
	case codes.Unauthenticated:
		perr.Kind = common.ErrProviderAuth
		perr.StatusCode = 401
	case codes.PermissionDenied:
		perr.Kind = common.ErrProviderAuth
		perr.StatusCode = 403
	}
	return perr
}
