// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/joseph-ayodele/tender-extractor/internal/llm"
)

// Reply is one scripted provider outcome.
type Reply struct {
	Text string
	Err  error
}

// ScriptedProvider returns its replies in order and records every request.
type ScriptedProvider struct {
	// Gate, when set, blocks each Generate until a value is received or the channel is closed.
	Gate chan struct{}

	mu       sync.Mutex
	replies  []Reply
	requests []llm.GenerateRequest
}

var _ llm.Provider = (*ScriptedProvider)(nil)

func NewScriptedProvider(replies ...Reply) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

func (p *ScriptedProvider) Name() string  { return "scripted" }
func (p *ScriptedProvider) Model() string { return "scripted-1" }

func (p *ScriptedProvider) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.replies) == 0 {
		return "", errors.New("scripted provider: no replies left")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r.Text, r.Err
}

// Requests returns a copy of the requests received so far.
func (p *ScriptedProvider) Requests() []llm.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.GenerateRequest(nil), p.requests...)
}

func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// FieldsReply encodes values as a provider fields answer. Keys not given are omitted.
func FieldsReply(values map[string]any) Reply {
	b, _ := json.Marshal(values)
	return Reply{Text: string(b)}
}

// SubmittalsReply encodes items as {"submittals":[...]}.
func SubmittalsReply(items ...map[string]any) Reply {
	if items == nil {
		items = []map[string]any{}
	}
	b, _ := json.Marshal(map[string]any{"submittals": items})
	return Reply{Text: string(b)}
}
