package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// ClientConfig holds the generation parameters for extraction calls.
type ClientConfig struct {
	FieldNames      []string
	Temperature     float32
	MaxOutputTokens int
}

// Client is the extraction client: prompt -> provider -> JSON -> post-processing.
type Client struct {
	provider   Provider
	cfg        ClientConfig
	fieldsVal  *SchemaValidator
	submittVal *SchemaValidator
	log        *slog.Logger
}

var _ FieldExtractor = (*Client)(nil)

func NewClient(p Provider, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if p == nil {
		return nil, fmt.Errorf("llm: provider is required")
	}
	if len(cfg.FieldNames) == 0 {
		return nil, fmt.Errorf("llm: field names are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	fv, err := NewSchemaValidator("fields.json", BuildFieldsJSONSchema(cfg.FieldNames))
	if err != nil {
		return nil, err
	}
	sv, err := NewSchemaValidator("submittals.json", BuildSubmittalsJSONSchema())
	if err != nil {
		return nil, err
	}
	return &Client{provider: p, cfg: cfg, fieldsVal: fv, submittVal: sv, log: logger}, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider { return c.provider }

// ExtractFields returns every fixed field, null where the document is silent.
func (c *Client) ExtractFields(ctx context.Context, text string) (entity.Fields, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.fields.start", append(common.LogAttrs(ctx),
		"call_id", rid,
		"provider", c.provider.Name(),
		"model", c.provider.Model(),
		"text_len", len(text),
	)...)

	parsed, err := c.generateJSON(ctx, rid, BuildFieldsPrompt(c.cfg.FieldNames, text))
	if err != nil {
		return nil, err
	}
	fields, dropped, err := BackfillFields(parsed, c.cfg.FieldNames)
	if err != nil {
		c.log.Error("llm.fields.shape_error", "call_id", rid, "error", err)
		return nil, err
	}
	if len(dropped) > 0 {
		c.log.Warn("llm.fields.unknown_keys_dropped", "call_id", rid, "dropped", dropped)
	}
	if err := c.fieldsVal.ValidateValue(fields); err != nil {
		c.log.Error("llm.fields.schema_validation_failed", "call_id", rid, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidResponseFormat, err)
	}

	found := 0
	for _, v := range fields {
		if v != nil {
			found++
		}
	}
	c.log.Info("llm.fields.ok",
		"call_id", rid,
		"found", found,
		"total", len(fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, nil
}

// ExtractSubmittals returns the normalized submittal list (never nil).
func (c *Client) ExtractSubmittals(ctx context.Context, text string) ([]entity.Submittal, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.submittals.start", append(common.LogAttrs(ctx),
		"call_id", rid,
		"provider", c.provider.Name(),
		"model", c.provider.Model(),
		"text_len", len(text),
	)...)

	parsed, err := c.generateJSON(ctx, rid, BuildSubmittalsPrompt(text))
	if err != nil {
		return nil, err
	}
	subs, err := NormalizeSubmittals(parsed)
	if err != nil {
		c.log.Error("llm.submittals.shape_error", "call_id", rid, "error", err)
		return nil, err
	}
	if err := c.submittVal.ValidateValue(subs); err != nil {
		c.log.Error("llm.submittals.schema_validation_failed", "call_id", rid, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidResponseFormat, err)
	}

	c.log.Info("llm.submittals.ok",
		"call_id", rid,
		"count", len(subs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return subs, nil
}

func (c *Client) generateJSON(ctx context.Context, rid, prompt string) (any, error) {
	start := time.Now()
	reply, err := c.provider.Generate(ctx, GenerateRequest{
		System:          SystemPrompt,
		Prompt:          prompt,
		Temperature:     c.cfg.Temperature,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
		JSONMode:        true,
	})
	if err != nil {
		c.log.Error("llm.generate.error",
			"call_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	parsed, err := ExtractJSON(reply)
	if err != nil {
		c.log.Error("llm.generate.invalid_json",
			"call_id", rid, "error", err,
			"reply", truncate(reply, 2000),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	return parsed, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
