// Package brain implements Enola's conversational routing engine:
// turn log, mode classification and the orchestration state machine.
package brain

import (
	"errors"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested tool invocation, correlated to its
// result turn by ID.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Turn is one entry in a conversation log. Tool turns carry the
// ToolCallID of the invocation that produced them; assistant turns may
// carry the tool calls the model requested.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	At         time.Time  `json:"at"`
}

// ErrBadToolTurn is returned when a tool turn is built without the id
// linking it to an assistant tool call.
var ErrBadToolTurn = errors.New("tool turn requires a tool_call_id")

// SystemTurn builds a system instruction turn.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content, At: time.Now()}
}

// UserTurn builds a user utterance turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, At: time.Now()}
}

// AssistantTurn builds an assistant turn. Content may be empty when the
// model only requested tools.
func AssistantTurn(content string, calls ...ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls, At: time.Now()}
}

// ToolTurn builds a tool result turn for the given invocation id.
func ToolTurn(callID, content string) (Turn, error) {
	if callID == "" {
		return Turn{}, ErrBadToolTurn
	}
	return Turn{Role: RoleTool, Content: content, ToolCallID: callID, At: time.Now()}, nil
}
