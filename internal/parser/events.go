package parser

import (
	"encoding/json"
	"time"
)

// TechnicalEvent is a derived row summarizing a tool invocation or result
// found in a message's tool_uses payload. MessageUUID links it back to the
// owning message; the storage layer resolves the database id at insert time.
type TechnicalEvent struct {
	MessageUUID string
	EventType   string
	FilePath    string
	Details     json.RawMessage
	Timestamp   time.Time
}

// toolEventTypes maps explicit tool names to standardized event types. This
// path applies only when the payload carries a tool_name field.
var toolEventTypes = map[string]string{
	"Write":     "file_created",
	"Edit":      "file_modified",
	"MultiEdit": "file_modified",
	"Read":      "file_accessed",
	"Bash":      "command_executed",
	"Grep":      "code_searched",
	"LS":        "directory_listed",
}

// EventTypeFor categorizes a tool_uses payload. An explicit tool_name field
// takes priority when it maps to a known event type; otherwise the payload
// shape decides: todo-list fields mean a todo update, a generic content field
// means a tool result, and anything else is a plain tool use.
func EventTypeFor(toolUses json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(toolUses, &fields); err != nil {
		return "tool_use"
	}

	if raw, ok := fields["tool_name"]; ok {
		var name string
		if json.Unmarshal(raw, &name) == nil {
			if et, ok := toolEventTypes[name]; ok {
				return et
			}
		}
	}

	if _, ok := fields["newTodos"]; ok {
		return "todo_updated"
	}
	if _, ok := fields["oldTodos"]; ok {
		return "todo_updated"
	}
	if _, ok := fields["content"]; ok {
		return "tool_result"
	}
	return "tool_use"
}

// ToolFilePath pulls a file path out of a tool_uses payload if one is
// present, checking both snake_case and camelCase spellings.
func ToolFilePath(toolUses json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(toolUses, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"file_path", "filePath"} {
		if raw, ok := fields[key]; ok {
			var p string
			if json.Unmarshal(raw, &p) == nil {
				return p
			}
		}
	}
	return ""
}

// ExtractTechnicalEvents derives technical events for every message carrying
// a tool_uses payload.
func ExtractTechnicalEvents(msgs []ParsedMessage) []TechnicalEvent {
	var events []TechnicalEvent
	for _, m := range msgs {
		if m.ToolUses == nil {
			continue
		}
		events = append(events, TechnicalEvent{
			MessageUUID: m.UUID,
			EventType:   EventTypeFor(m.ToolUses),
			FilePath:    ToolFilePath(m.ToolUses),
			Details:     m.ToolUses,
			Timestamp:   m.Timestamp,
		})
	}
	return events
}
