// Package render provides output formatting for terminal consumption.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/postpilot/postpilot/internal/agent"
	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/queue"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a new renderer. pretty false yields plain JSON, suitable
// for piping.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Plan formats a step plan.
func (r *Renderer) Plan(p *domain.Plan) string {
	if !r.pretty {
		return jsonString(p)
	}

	var sb strings.Builder
	sb.WriteString(color.CyanString("Plan: %d steps\n", len(p.Steps)))
	sb.WriteString(strings.Repeat("─", 60) + "\n")
	for i, step := range p.Steps {
		sb.WriteString(fmt.Sprintf("  %d. %s %s\n", i+1, stepBadge(step.Type), step.Description))
		if len(step.Inputs) > 0 {
			sb.WriteString("       inputs: " + jsonString(step.Inputs) + "\n")
		}
	}
	return sb.String()
}

func stepBadge(t domain.StepType) string {
	badge := fmt.Sprintf("[%s]", t)
	switch t {
	case domain.StepPublish:
		return color.MagentaString(badge)
	case domain.StepContent:
		return color.YellowString(badge)
	default:
		return color.BlueString(badge)
	}
}

// Job formats a queue job's state, result and failure reason.
func (r *Renderer) Job(j *queue.Job) string {
	if !r.pretty {
		return jsonString(j)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("JOB %s\n", j.ID))
	sb.WriteString(fmt.Sprintf("  Type:     %s\n", j.Type))
	sb.WriteString(fmt.Sprintf("  State:    %s\n", stateBadge(j.State)))
	sb.WriteString(fmt.Sprintf("  Attempts: %d/%d\n", j.Attempts, j.MaxAttempts))
	if j.LastError != "" {
		sb.WriteString("  Error:    " + color.RedString(j.LastError) + "\n")
	}
	if len(j.Result) > 0 {
		sb.WriteString("  Result:   " + string(j.Result) + "\n")
	}
	return sb.String()
}

func stateBadge(s queue.JobState) string {
	switch s {
	case queue.StateCompleted:
		return color.GreenString(string(s))
	case queue.StateFailed:
		return color.RedString(string(s))
	case queue.StateRunning:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

// LoopResult formats a tool-use loop outcome.
func (r *Renderer) LoopResult(res *agent.Result) string {
	if !r.pretty {
		return jsonString(map[string]any{"done": res.Done, "text": res.Text, "turns": res.Turns})
	}

	var sb strings.Builder
	if res.Done {
		sb.WriteString(color.GreenString("✓ done") + fmt.Sprintf(" (%d turns)\n", res.Turns))
	} else {
		sb.WriteString(color.YellowString("○ max iterations reached") + fmt.Sprintf(" (%d turns)\n", res.Turns))
	}
	if res.Text != "" {
		sb.WriteString(res.Text + "\n")
	}
	return sb.String()
}

// GenerateResult formats written paths or a content payload.
func (r *Renderer) GenerateResult(res *agent.GenerateResult) string {
	if !r.pretty {
		return jsonString(res)
	}

	var sb strings.Builder
	if len(res.Paths) > 0 {
		sb.WriteString(color.CyanString("Files written: %d\n", len(res.Paths)))
		for _, p := range res.Paths {
			sb.WriteString("  " + color.GreenString("✓") + " " + p + "\n")
		}
	}
	if res.Content != nil {
		sb.WriteString(color.CyanString("Content:\n"))
		sb.WriteString("  " + jsonString(res.Content) + "\n")
	}
	return sb.String()
}

// ToolCatalogue formats the registered tool names and descriptions.
func (r *Renderer) ToolCatalogue(names []string, describe func(string) string) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Tools: %d\n", len(names)))
	}
	for _, name := range names {
		if r.pretty {
			sb.WriteString("  " + color.BlueString(name) + ": " + describe(name) + "\n")
		} else {
			sb.WriteString(name + "\n")
		}
	}
	return sb.String()
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
