// Package tool declares the closed catalogue of actions the model may
// invoke during a conversation, each with a validated input shape.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/postpilot/postpilot/internal/schema"
	"github.com/postpilot/postpilot/pkg/llm"
)

// ErrUnknownTool indicates a tool name outside the registry.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is one registered action. Invoke receives input already
// validated and normalized against Schema.
type Tool interface {
	Name() string
	Description() string
	Schema() schema.Shape
	Invoke(ctx context.Context, input map[string]any) (any, error)
}

// Registry is the fixed tool catalogue for a conversation. Populate it
// at construction; it is read-only afterwards.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools. Duplicate names
// are a programming error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool %q", t.Name())
		}
		r.tools[t.Name()] = t
	}
	return r, nil
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defs renders the catalogue for the model service request.
func (r *Registry) Defs() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema().JSONSchema(),
		})
	}
	return defs
}
