package models

import "time"

// Role identifies which side of the conversation produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall records one tool invocation made by the agent while producing a
// response.
type ToolCall struct {
	Name       string         `json:"name"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Status     string         `json:"status"`
	DurationMs int64          `json:"duration_ms"`
}

// ConversationTurn is one utterance in the transcript. The transcript is an
// append-only sequence owned by a single test execution.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	// Step is the turn number the utterance belongs to; the initial
	// message is step 0.
	Step      int        `json:"step"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ErrorMsg is set when this turn records a failed send instead of a
	// real agent response.
	ErrorMsg string `json:"error_msg,omitempty"`
}
