// Package testutil provides common test helpers and the scripted model
// provider used to exercise agents without network access.
package testutil

import (
	"context"
	"sync"

	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/pkg/llm"
)

// ScriptedProvider plays back a fixed sequence of model responses, one
// per Complete call, and records every request it receives.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	requests  []*llm.Request
	err       error
}

// NewScriptedProvider creates a provider that returns the given
// responses in order. Calls past the end return an empty response.
func NewScriptedProvider(responses ...*llm.Response) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Failing makes every Complete call return err.
func (p *ScriptedProvider) Failing(err error) *ScriptedProvider {
	p.err = err
	return p
}

func (p *ScriptedProvider) ID() string { return "scripted" }

func (p *ScriptedProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}

	idx := len(p.requests) - 1
	if idx < len(p.responses) {
		return p.responses[idx], nil
	}
	return &llm.Response{StopReason: "end_turn"}, nil
}

// CallCount returns how many Complete calls were made.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Request returns the i-th recorded request.
func (p *ScriptedProvider) Request(i int) *llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

var _ llm.Provider = (*ScriptedProvider)(nil)

// TextResponse builds a text-only model turn.
func TextResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []domain.Part{domain.TextPart{Text: text}},
		StopReason: "end_turn",
	}
}

// ToolUseResponse builds a model turn containing one tool invocation.
func ToolUseResponse(id, name string, input map[string]any) *llm.Response {
	return &llm.Response{
		Content:    []domain.Part{domain.ToolUsePart{ID: id, Name: name, Input: input}},
		StopReason: "tool_use",
	}
}

// MixedResponse builds a model turn from arbitrary parts.
func MixedResponse(parts ...domain.Part) *llm.Response {
	return &llm.Response{Content: parts, StopReason: "tool_use"}
}
