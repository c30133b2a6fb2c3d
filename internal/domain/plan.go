package domain

// StepType is the closed set of work step kinds the planner may emit.
type StepType string

const (
	StepCode        StepType = "code"
	StepFrontend    StepType = "frontend"
	StepIntegration StepType = "integration"
	StepContent     StepType = "content"
	StepPublish     StepType = "publish"
)

// StepTypes lists every valid step type.
func StepTypes() []StepType {
	return []StepType{StepCode, StepFrontend, StepIntegration, StepContent, StepPublish}
}

// ValidStepType reports whether s names a known step type.
func ValidStepType(s string) bool {
	for _, t := range StepTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Step is one typed unit of work, destined for exactly one queue job.
// Steps are immutable once produced by the planner.
type Step struct {
	ID          string         `json:"id"`
	Type        StepType       `json:"type"`
	Description string         `json:"description"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// Plan is a non-empty ordered list of steps.
type Plan struct {
	Steps []Step `json:"steps"`
}
