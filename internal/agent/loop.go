// Package agent hosts the model-facing orchestration pieces: the
// bounded tool-use conversation loop, the planning agent with its
// deterministic fallback, and the sandboxed file-emitting generators.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/logging"
	"github.com/postpilot/postpilot/internal/tool"
	"github.com/postpilot/postpilot/pkg/llm"
)

const loopSystemPrompt = `You are PostPilot, an assistant that manages social media campaigns.
Only call the tools declared in this conversation. Never fabricate project,
account or post identifiers: create or look up records first. Prefer additive
operations; do not replace or remove existing data unless the goal explicitly
asks for it. When the goal is satisfied, reply with a short text summary and
no further tool calls.`

// Result is the terminal outcome of one loop run. Done is false when
// the turn budget ran out before a text-only model turn; that is a
// reported outcome, not an error.
type Result struct {
	Done  bool
	Text  string
	Turns int
}

// Loop drives a bounded tool-use conversation against the model.
type Loop struct {
	provider llm.Provider
	tools    *tool.Registry
	model    string
	maxSteps int
	log      *logging.Logger
}

// NewLoop builds a loop with the given turn budget. maxSteps values
// below 1 are clamped to 1.
func NewLoop(provider llm.Provider, tools *tool.Registry, model string, maxSteps int) *Loop {
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &Loop{
		provider: provider,
		tools:    tools,
		model:    model,
		maxSteps: maxSteps,
		log:      logging.New("agent.loop"),
	}
}

// Run executes the conversation for a goal. scope is extra context
// appended to the opening user turn (an owning project, constraints);
// it may be empty. The model is called at most maxSteps times.
func (l *Loop) Run(ctx context.Context, goal, scope string) (*Result, error) {
	opening := "Goal: " + goal
	if scope != "" {
		opening += "\nContext: " + scope
	}
	messages := []domain.Message{domain.TextMessage(domain.RoleUser, opening)}

	var lastText string
	for turn := 0; turn < l.maxSteps; turn++ {
		resp, err := l.provider.Complete(ctx, &llm.Request{
			Model:    l.model,
			System:   loopSystemPrompt,
			Messages: messages,
			Tools:    l.tools.Defs(),
		})
		if err != nil {
			return nil, fmt.Errorf("model call on turn %d: %w", turn+1, err)
		}

		lastText = resp.Text()
		invocations := resp.ToolUses()
		if len(invocations) == 0 {
			l.log.Info("loop_done", map[string]any{"turns": turn + 1})
			return &Result{Done: true, Text: lastText, Turns: turn + 1}, nil
		}

		messages = append(messages, domain.Message{Role: domain.RoleAssistant, Parts: resp.Content})

		results := make([]domain.Part, 0, len(invocations))
		for _, inv := range invocations {
			results = append(results, domain.ToolResultPart{
				ToolUseID: inv.ID,
				Content:   l.execute(ctx, inv),
			})
		}
		messages = append(messages, domain.Message{Role: domain.RoleUser, Parts: results})
	}

	l.log.Info("loop_exhausted", map[string]any{"turns": l.maxSteps})
	return &Result{Done: false, Text: lastText, Turns: l.maxSteps}, nil
}

// execute runs one tool invocation and renders its outcome as the JSON
// payload fed back to the model. Failures never propagate: one bad
// invocation must not abort its siblings or the turn.
func (l *Loop) execute(ctx context.Context, inv domain.ToolUsePart) string {
	t, err := l.tools.Get(inv.Name)
	if err != nil {
		return errorPayload(fmt.Sprintf("Unknown tool: %s", inv.Name))
	}

	input, err := t.Schema().Validate(inv.Input)
	if err != nil {
		return errorPayload(err.Error())
	}

	result, err := t.Invoke(ctx, input)
	if err != nil {
		l.log.Warn("tool_failed", map[string]any{"tool": inv.Name}, err)
		return errorPayload(err.Error())
	}

	payload, err := json.Marshal(map[string]any{"ok": true, "result": result})
	if err != nil {
		return errorPayload("unencodable tool result")
	}
	return string(payload)
}

func errorPayload(msg string) string {
	payload, _ := json.Marshal(map[string]any{"ok": false, "error": msg})
	return string(payload)
}
