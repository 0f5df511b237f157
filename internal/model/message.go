package model

import "time"

// MessageType is the closed variant tag for one entry in a job's output log.
// The Message Processor (internal/message) is the sole place raw runtime
// output is converted into this closed set — see spec.md §9 on replacing
// dynamic structural matching with an exhaustive sum type.
type MessageType string

const (
	MessageSystem    MessageType = "system"
	MessageAssistant MessageType = "assistant"
	MessageToolUse   MessageType = "tool_use"
	MessageToolResult MessageType = "tool_result"
	MessageError     MessageType = "error"
)

// Usage carries token accounting for an assistant message, when the backend
// reports it. Optional on every Message that can carry it.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}

// Message is one append-only record in a job's output log (spec.md §3).
// Fields are a union of all variants; a given MessageType only populates
// the fields relevant to it, matching the wire format in spec.md §6 where
// every line is a JSON object with a `type` and `timestamp` plus
// variant-specific fields, and consumers must tolerate unknown fields.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`

	// system
	Subtype   string `json:"subtype,omitempty"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// assistant
	Partial bool   `json:"partial,omitempty"`
	Usage   *Usage `json:"usage,omitempty"`
	Summary string `json:"summary,omitempty"`

	// tool_use
	ToolName  string `json:"tool_name,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Input     any    `json:"input,omitempty"`

	// tool_result
	Result  any    `json:"result,omitempty"`
	Success bool   `json:"success,omitempty"`
	ErrText string `json:"error,omitempty"`

	// error
	ErrorMessage string `json:"message,omitempty"`
	Code         string `json:"code,omitempty"`
	Stack        string `json:"stack,omitempty"`

	// IsFinal and derived SessionID from Processor output; SessionID above
	// doubles as the carrier the Executor reads from a system/init message.
	IsFinal bool `json:"-"`
}
