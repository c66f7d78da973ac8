package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleHuman  Role = "human"
	RoleSystem Role = "system"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// ToolCall is a model's request to invoke a named tool.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Message is one entry in a conversation history. AI messages may carry tool
// calls; tool messages must reference the call they answer via ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Human returns a human-authored message.
func Human(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// System returns a system-authored message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AI returns an AI-authored message carrying optional tool calls.
func AI(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: calls}
}

// ToolResult returns a tool message answering the call identified by callID.
func ToolResult(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

// HasToolCalls reports whether m is an AI message requesting at least one tool.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAI && len(m.ToolCalls) > 0
}

// Contents returns the bodies of all messages whose role is in roles, in
// history order.
func Contents(messages []Message, roles ...Role) []string {
	var out []string
	for _, m := range messages {
		for _, r := range roles {
			if m.Role == r {
				out = append(out, m.Content)
				break
			}
		}
	}
	return out
}

// RemoveUpToLastAIMessage returns the prefix of messages that precedes the
// most recent AI message. If there is no AI message the input is returned
// unchanged.
func RemoveUpToLastAIMessage(messages []Message) []Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAI {
			return messages[:i]
		}
	}
	return messages
}

// BufferString renders a history as "Role: content" lines, the form used to
// embed a conversation inside a single prompt.
func BufferString(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", bufferPrefix(m.Role), m.Content)
	}
	return b.String()
}

func bufferPrefix(r Role) string {
	switch r {
	case RoleHuman:
		return "Human"
	case RoleAI:
		return "AI"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}
