package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/postpilot/postpilot/internal/domain"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Verify http.Client implements HTTPClient
var _ HTTPClient = (*http.Client)(nil)

// Anthropic is the production model client, speaking the Messages API
// without streaming.
type Anthropic struct {
	apiKey  string
	baseURL string
	client  HTTPClient
}

// NewAnthropic creates a client with the default HTTP transport.
func NewAnthropic(apiKey, baseURL string) *Anthropic {
	return NewAnthropicWithClient(apiKey, baseURL, &http.Client{})
}

// NewAnthropicWithClient creates a client with an injected transport.
func NewAnthropicWithClient(apiKey, baseURL string, client HTTPClient) *Anthropic {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Anthropic{apiKey: apiKey, baseURL: baseURL, client: client}
}

func (a *Anthropic) ID() string { return "anthropic" }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content    []json.RawMessage `json:"content"`
	StopReason string            `json:"stop_reason"`
}

// Complete sends the conversation and decodes the model's content blocks.
func (a *Anthropic) Complete(ctx context.Context, req *Request) (*Response, error) {
	if a.apiKey == "" {
		return nil, ErrNoCredential
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, string(data))
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	parts, err := decodeContent(decoded.Content)
	if err != nil {
		return nil, err
	}
	return &Response{Content: parts, StopReason: decoded.StopReason}, nil
}

func convertMessages(messages []domain.Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		var content []contentPart
		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				content = append(content, contentPart{Type: "text", Text: part.Text})
			case domain.ToolUsePart:
				content = append(content, contentPart{
					Type:  "tool_use",
					ID:    part.ID,
					Name:  part.Name,
					Input: part.Input,
				})
			case domain.ToolResultPart:
				content = append(content, contentPart{
					Type:      "tool_result",
					ToolUseID: part.ToolUseID,
					Content:   part.Content,
				})
			}
		}
		if len(content) > 0 {
			out = append(out, anthropicMessage{Role: string(m.Role), Content: content})
		}
	}
	return out
}

func decodeContent(blocks []json.RawMessage) ([]domain.Part, error) {
	var parts []domain.Part
	for _, raw := range blocks {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("decode content block: %w", err)
		}

		switch head.Type {
		case "text":
			var tb struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &tb); err != nil {
				return nil, fmt.Errorf("decode text block: %w", err)
			}
			parts = append(parts, domain.TextPart{Text: tb.Text})

		case "tool_use":
			var tu struct {
				ID    string         `json:"id"`
				Name  string         `json:"name"`
				Input map[string]any `json:"input"`
			}
			if err := json.Unmarshal(raw, &tu); err != nil {
				return nil, fmt.Errorf("decode tool_use block: %w", err)
			}
			parts = append(parts, domain.ToolUsePart{ID: tu.ID, Name: tu.Name, Input: tu.Input})
		}
		// Unknown block types are skipped: the contract only promises
		// text and tool-use blocks.
	}
	return parts, nil
}

var _ Provider = (*Anthropic)(nil)
