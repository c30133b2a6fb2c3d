package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/postpilot/postpilot/internal/domain"
	"github.com/postpilot/postpilot/internal/logging"
	"github.com/postpilot/postpilot/pkg/llm"
)

// Variant configures one generation agent: its prompt and the subtree
// it may write into.
type Variant struct {
	Kind      domain.StepType
	System    string
	AllowList []string
	Marker    string
	// EmitsFiles is false for variants that return a structured
	// payload instead of writing to disk.
	EmitsFiles bool
}

// Variants returns the configured generation agents keyed by step type.
func Variants() map[domain.StepType]Variant {
	return map[domain.StepType]Variant{
		domain.StepCode: {
			Kind: domain.StepCode,
			System: codegenPreamble + `Write backend source files only, under the app/source/
subtree. Use paths like app/source/tools/example.ts.`,
			AllowList:  []string{"app/source/**"},
			Marker:     "//",
			EmitsFiles: true,
		},
		domain.StepFrontend: {
			Kind: domain.StepFrontend,
			System: codegenPreamble + `Write UI source files only, under the ui/src/ subtree.
Use paths like ui/src/components/Example.tsx.`,
			AllowList:  []string{"ui/src/**"},
			Marker:     "//",
			EmitsFiles: true,
		},
		domain.StepIntegration: {
			Kind: domain.StepIntegration,
			System: codegenPreamble + `You may write exactly two files: the payment
integration route at app/source/routes/payments.ts and the top-level README.md.`,
			AllowList:  []string{"app/source/routes/payments.ts", "README.md"},
			Marker:     "//",
			EmitsFiles: true,
		},
		domain.StepContent: {
			Kind: domain.StepContent,
			System: `You produce social media content. Reply with only a JSON object
{"title": ..., "body": ..., "metadata": {...}} and nothing else.`,
			EmitsFiles: false,
		},
	}
}

const codegenPreamble = `You generate complete source files. Respond with a single fenced
code block. Inside it, precede every file with a header line of the exact form
"// FILE: relative/path". Emit complete files, never diffs or fragments.
`

// GenerateResult is the outcome of one generation request: written
// paths for file-emitting variants, a content payload otherwise.
type GenerateResult struct {
	Paths   []string       `json:"paths,omitempty"`
	Content map[string]any `json:"content,omitempty"`
}

// Generator runs the generation agent variants.
type Generator struct {
	provider llm.Provider
	root     string
	model    string
	mock     bool
	log      *logging.Logger
}

// NewGenerator builds a generator writing under root.
func NewGenerator(provider llm.Provider, root, model string, mock bool) *Generator {
	return &Generator{
		provider: provider,
		root:     root,
		model:    model,
		mock:     mock,
		log:      logging.New("agent.generate"),
	}
}

// Generate asks the model for the variant's output and persists it.
// Any extraction or path failure fails the whole request; no partial
// batch is reported as success.
func (g *Generator) Generate(ctx context.Context, kind domain.StepType, description string, inputs map[string]any) (*GenerateResult, error) {
	variant, ok := Variants()[kind]
	if !ok {
		return nil, fmt.Errorf("no generation agent for step type %q", kind)
	}

	if g.mock {
		return g.mockResult(variant, description)
	}

	prompt := "Task: " + description
	if len(inputs) > 0 {
		encoded, err := json.Marshal(inputs)
		if err != nil {
			return nil, fmt.Errorf("encode inputs: %w", err)
		}
		prompt += "\nInputs: " + string(encoded)
	}

	resp, err := g.provider.Complete(ctx, &llm.Request{
		Model:     g.model,
		System:    variant.System,
		Messages:  []domain.Message{domain.TextMessage(domain.RoleUser, prompt)},
		MaxTokens: 4096,
	})
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	if !variant.EmitsFiles {
		return parseContentPayload(resp.Text())
	}

	emitter := &Emitter{Root: g.root, AllowList: variant.AllowList, Marker: variant.Marker}
	paths, err := emitter.Emit(resp.Text())
	if err != nil {
		return nil, err
	}

	g.log.Info("files_written", map[string]any{"kind": string(kind), "count": len(paths)})
	return &GenerateResult{Paths: paths}, nil
}

func parseContentPayload(text string) (*GenerateResult, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, &UntrustedOutputError{Reason: "no content payload in model output"}
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(payload), &content); err != nil {
		return nil, &UntrustedOutputError{Reason: "content payload is not valid JSON"}
	}
	if _, ok := content["title"]; !ok {
		return nil, &UntrustedOutputError{Reason: "content payload missing title"}
	}
	if _, ok := content["body"]; !ok {
		return nil, &UntrustedOutputError{Reason: "content payload missing body"}
	}
	return &GenerateResult{Content: content}, nil
}

// mockResult synthesizes a deterministic placeholder per request,
// bypassing the model and the extractor entirely.
func (g *Generator) mockResult(variant Variant, description string) (*GenerateResult, error) {
	slug := Slug(description)

	if !variant.EmitsFiles {
		return &GenerateResult{Content: map[string]any{
			"title":    slug,
			"body":     "Placeholder content for: " + description,
			"metadata": map[string]any{"mock": true},
		}}, nil
	}

	rel := variant.AllowList[0]
	if strings.Contains(rel, "*") {
		rel = strings.Replace(rel, "**", "generated/"+slug+".ts", 1)
	}

	emitter := &Emitter{Root: g.root, AllowList: variant.AllowList, Marker: variant.Marker}
	return g.writeMock(emitter, rel, slug)
}

func (g *Generator) writeMock(emitter *Emitter, rel, slug string) (*GenerateResult, error) {
	paths, err := emitter.WriteFiles([]domain.GeneratedFile{{
		Path:     rel,
		Contents: fmt.Sprintf("// placeholder: %s\n", slug),
	}})
	if err != nil {
		return nil, err
	}
	return &GenerateResult{Paths: paths}, nil
}

// Slug derives a deterministic identifier from free text: lowercase,
// hyphen-separated, at most 40 characters.
func Slug(text string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= 40 {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "placeholder"
	}
	return out
}
