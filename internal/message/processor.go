// Package message implements the pure transform that normalizes whatever a
// Runtime yields into the closed model.Message variant set (spec.md §4.2).
// It is deliberately total: every input, however malformed, produces exactly
// one Message and never panics or returns an error — a single bad record
// must never terminate a job (spec.md §9).
package message

import (
	"fmt"
	"strings"
	"time"

	"github.com/jholhewres/herdctl/internal/model"
)

const maxSummaryLen = 500

// terminalSubtypes are system subtypes that end a run (spec.md §4.2).
var terminalSubtypes = map[string]bool{
	"end":         true,
	"complete":    true,
	"session_end": true,
}

// Process converts one raw value yielded by a Runtime into a model.Message.
// raw is typically a map[string]any decoded from a JSON line, but Process
// tolerates any shape: nil, a non-object, a missing or non-string `type`.
func Process(raw any) model.Message {
	now := time.Now().UTC()

	obj, ok := raw.(map[string]any)
	if raw == nil || !ok {
		return malformed(now, describeMalformed(raw))
	}

	rawType, hasType := obj["type"]
	typeStr, typeIsString := rawType.(string)
	if !hasType || !typeIsString || typeStr == "" {
		return malformed(now, describeMalformed(raw))
	}

	switch typeStr {
	case string(model.MessageSystem):
		return processSystem(now, obj)
	case string(model.MessageAssistant):
		return processAssistant(now, obj)
	case string(model.MessageToolUse):
		return processToolUse(now, obj)
	case string(model.MessageToolResult):
		return processToolResult(now, obj)
	case string(model.MessageError):
		return processError(now, obj)
	default:
		return model.Message{
			Type:      model.MessageSystem,
			Timestamp: now,
			Subtype:   "unknown_type",
			Content:   fmt.Sprintf("unrecognized message type %q: %v", typeStr, obj),
			IsFinal:   false,
		}
	}
}

func malformed(ts time.Time, desc string) model.Message {
	return model.Message{
		Type:      model.MessageSystem,
		Timestamp: ts,
		Subtype:   "malformed_message",
		Content:   desc,
	}
}

func describeMalformed(raw any) string {
	if raw == nil {
		return "received null message"
	}
	return fmt.Sprintf("received non-object or missing-type message: %v (%T)", raw, raw)
}

func processSystem(ts time.Time, obj map[string]any) model.Message {
	subtype, _ := obj["subtype"].(string)
	content, _ := obj["content"].(string)

	msg := model.Message{
		Type:      model.MessageSystem,
		Timestamp: ts,
		Subtype:   subtype,
		Content:   content,
	}

	// Only an init system message carrying a session_id field yields one
	// (spec.md §4.2 mapping rules); other system messages must not.
	if subtype == "init" {
		if sid, ok := obj["session_id"].(string); ok && sid != "" {
			msg.SessionID = sid
		}
	}

	if terminalSubtypes[subtype] {
		msg.IsFinal = true
	}

	return msg
}

func processAssistant(ts time.Time, obj map[string]any) model.Message {
	content, _ := obj["content"].(string)
	partial, _ := obj["partial"].(bool)

	msg := model.Message{
		Type:      model.MessageAssistant,
		Timestamp: ts,
		Content:   content,
		Partial:   partial,
	}

	if u, ok := obj["usage"].(map[string]any); ok {
		msg.Usage = &model.Usage{
			InputTokens:  asInt(u["input_tokens"]),
			OutputTokens: asInt(u["output_tokens"]),
			TotalTokens:  asInt(u["total_tokens"]),
		}
	}

	msg.Summary = extractSummary(obj, content, partial)
	return msg
}

// extractSummary implements spec.md §4.2's summary-extraction rule: an
// explicit `summary` field wins (truncated to 500 chars with an ellipsis);
// otherwise, for a non-partial assistant message whose content is short
// enough, the content itself is the summary.
func extractSummary(obj map[string]any, content string, partial bool) string {
	if raw, ok := obj["summary"]; ok {
		return truncateSummary(fmt.Sprintf("%v", raw))
	}
	if !partial && len(content) <= maxSummaryLen {
		return content
	}
	return ""
}

func truncateSummary(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	return s[:maxSummaryLen-3] + "..."
}

func processToolUse(ts time.Time, obj map[string]any) model.Message {
	name, _ := obj["tool_name"].(string)
	useID, _ := obj["tool_use_id"].(string)
	return model.Message{
		Type:      model.MessageToolUse,
		Timestamp: ts,
		ToolName:  name,
		ToolUseID: useID,
		Input:     obj["input"],
	}
}

func processToolResult(ts time.Time, obj map[string]any) model.Message {
	useID, _ := obj["tool_use_id"].(string)
	success, _ := obj["success"].(bool)
	errText, _ := obj["error"].(string)
	return model.Message{
		Type:      model.MessageToolResult,
		Timestamp: ts,
		ToolUseID: useID,
		Result:    obj["result"],
		Success:   success,
		ErrText:   errText,
	}
}

func processError(ts time.Time, obj map[string]any) model.Message {
	msg, _ := obj["message"].(string)
	code, _ := obj["code"].(string)
	stack, _ := obj["stack"].(string)
	return model.Message{
		Type:         model.MessageError,
		Timestamp:    ts,
		ErrorMessage: msg,
		Code:         code,
		Stack:        stack,
		// error messages always have is_final = true (spec.md §4.2).
		IsFinal: true,
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// IsSessionExpiry detects the server-side session-expiry signal spec.md §4.6
// describes: a case-insensitive "session expired" substring in an error.
func IsSessionExpiry(errText string) bool {
	return strings.Contains(strings.ToLower(errText), "session expired")
}

// ClassifyExitReason maps a terminating condition into model.ExitReason,
// following the heuristics in spec.md §4.6 step 7.
func ClassifyExitReason(success bool, errText string) model.ExitReason {
	if success {
		return model.ExitSuccess
	}
	lower := strings.ToLower(errText)
	switch {
	case strings.Contains(lower, "timeout"):
		return model.ExitTimeout
	case strings.Contains(lower, "abort"), strings.Contains(lower, "cancel"):
		return model.ExitCancelled
	case strings.Contains(lower, "maximum turns"):
		return model.ExitMaxTurns
	default:
		return model.ExitError
	}
}

// IsRecoverable implements the informational recoverability heuristic of
// spec.md §4.6: errors mentioning rate limiting or retry are recoverable.
func IsRecoverable(errText string) bool {
	lower := strings.ToLower(errText)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "retry")
}
