package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/logging"
	"github.com/postpilot/postpilot/pkg/llm"
)

const plannerSystemPrompt = `You turn a campaign goal into an ordered work plan.
Reply with only a JSON object of the form {"steps": [...]} and nothing else.
Each step has: "id" (unique string), "type" (one of "code", "frontend",
"integration", "content"), "description" (what the step accomplishes), and an
optional "inputs" object. Keep the plan short: three to five steps.`

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

// Planner turns a free-text goal into a typed step plan. Plan is total:
// when the model is unreachable or its output is unusable the planner
// returns the fixed fallback plan instead of an error.
type Planner struct {
	provider llm.Provider
	model    string
	mock     bool
	log      *logging.Logger
}

// NewPlanner builds a planner. mock forces the fallback plan without
// touching the network.
func NewPlanner(provider llm.Provider, model string, mock bool) *Planner {
	return &Planner{provider: provider, model: model, mock: mock, log: logging.New("agent.planner")}
}

// Plan produces a non-empty ordered step list for the goal. The model
// gets one chance; any parse or validation failure falls back to the
// deterministic plan.
func (p *Planner) Plan(ctx context.Context, goal string) *domain.Plan {
	if p.mock {
		return FallbackPlan(goal)
	}

	resp, err := p.provider.Complete(ctx, &llm.Request{
		Model:    p.model,
		System:   plannerSystemPrompt,
		Messages: []domain.Message{domain.TextMessage(domain.RoleUser, "Goal: "+goal)},
	})
	if err != nil {
		p.log.Warn("plan_fallback", map[string]any{"goal": goal}, err)
		return FallbackPlan(goal)
	}

	plan, err := parsePlan(resp.Text())
	if err != nil {
		p.log.Warn("plan_fallback", map[string]any{"goal": goal}, err)
		return FallbackPlan(goal)
	}

	p.log.Info("plan_created", map[string]any{"goal": goal, "steps": len(plan.Steps)})
	return plan
}

// parsePlan extracts and validates the step list from raw model text.
func parsePlan(text string) (*domain.Plan, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var plan domain.Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}

	seen := make(map[string]bool, len(plan.Steps))
	for i, step := range plan.Steps {
		if step.ID == "" {
			return nil, fmt.Errorf("step %d: missing id", i)
		}
		if seen[step.ID] {
			return nil, fmt.Errorf("step %d: duplicate id %q", i, step.ID)
		}
		seen[step.ID] = true
		if !validPlanStepType(step.Type) {
			return nil, fmt.Errorf("step %d: invalid type %q", i, step.Type)
		}
		if strings.TrimSpace(step.Description) == "" {
			return nil, fmt.Errorf("step %d: missing description", i)
		}
	}
	return &plan, nil
}

// validPlanStepType restricts planner output to generation step types;
// publish steps enter the system through schedule_post, never a plan.
func validPlanStepType(t domain.StepType) bool {
	switch t {
	case domain.StepCode, domain.StepFrontend, domain.StepIntegration, domain.StepContent:
		return true
	}
	return false
}

// ExtractJSON pulls a JSON payload out of raw model text: a fenced
// block when present, otherwise the substring from the first "{" to
// the last "}".
func ExtractJSON(text string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return text[start : end+1], nil
}

// FallbackPlan is the fixed three-step plan used when model planning is
// unavailable: bootstrap the backend capability, update the front-end
// surface, wire the external integration.
func FallbackPlan(goal string) *domain.Plan {
	return &domain.Plan{Steps: []domain.Step{
		{
			ID:          NewStepID(),
			Type:        domain.StepCode,
			Description: fmt.Sprintf("Bootstrap the backend capability for %q", goal),
		},
		{
			ID:          NewStepID(),
			Type:        domain.StepFrontend,
			Description: fmt.Sprintf("Update the front-end surface for %q", goal),
		},
		{
			ID:          NewStepID(),
			Type:        domain.StepIntegration,
			Description: fmt.Sprintf("Wire the external integration for %q", goal),
		},
	}}
}

// NewStepID mints a sortable unique step identifier.
func NewStepID() string {
	return ulid.Make().String()
}
