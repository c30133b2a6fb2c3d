// Package domain defines the core types shared across the orchestration
// layer: conversation messages, plans, and campaign entities.
package domain

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a tool-use conversation. The conversation is an
// append-only ordered sequence owned by the loop; it is never persisted.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is one content block within a message.
type Part interface {
	PartType() string
}

// TextPart is plain model or user text.
type TextPart struct {
	Text string `json:"text"`
}

func (p TextPart) PartType() string { return "text" }

// ToolUsePart is a model request to invoke a named tool.
type ToolUsePart struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (p ToolUsePart) PartType() string { return "tool_use" }

// ToolResultPart carries the outcome of one tool invocation back to the
// model, matched by the invocation ID.
type ToolResultPart struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

func (p ToolResultPart) PartType() string { return "tool_result" }

// TextMessage builds a single-part text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates all text parts of a message, joined by newlines.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			if out != "" {
				out += "\n"
			}
			out += tp.Text
		}
	}
	return out
}

// ToolUses returns the tool-use parts of a message in response order.
func (m Message) ToolUses() []ToolUsePart {
	var calls []ToolUsePart
	for _, p := range m.Parts {
		if tu, ok := p.(ToolUsePart); ok {
			calls = append(calls, tu)
		}
	}
	return calls
}
