// Package llm defines the model service contract consumed by the
// orchestration core. The service is an opaque request/response
// dependency; one production implementation (HTTP) and one scripted
// test double exist.
package llm

import (
	"context"
	"errors"

	"github.com/postpilot/postpilot/internal/domain"
)

// ErrNoCredential indicates the model service credential is absent.
// Callers with a deterministic fallback recover; others surface it.
var ErrNoCredential = errors.New("model service credential missing")

// Provider is the interface all model clients must implement.
type Provider interface {
	ID() string

	// Complete sends one conversation and returns the model's turn.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// ToolDef describes one entry of the tool catalogue sent to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request represents one call to the model service.
type Request struct {
	Model       string
	System      string
	Messages    []domain.Message
	Tools       []ToolDef
	MaxTokens   int
	Temperature float64
}

// Response is the model's turn: ordered content blocks, text and/or
// tool-use parts.
type Response struct {
	Content    []domain.Part
	StopReason string
}

// Text concatenates the text blocks of a response, joined by newlines.
func (r *Response) Text() string {
	var out string
	for _, p := range r.Content {
		if tp, ok := p.(domain.TextPart); ok {
			if out != "" {
				out += "\n"
			}
			out += tp.Text
		}
	}
	return out
}

// ToolUses returns the tool-use blocks in response order.
func (r *Response) ToolUses() []domain.ToolUsePart {
	var calls []domain.ToolUsePart
	for _, p := range r.Content {
		if tu, ok := p.(domain.ToolUsePart); ok {
			calls = append(calls, tu)
		}
	}
	return calls
}
