package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeFor(t *testing.T) {
	tests := []struct {
		name     string
		toolUses string
		want     string
	}{
		{"todo diff new", `{"oldTodos":[],"newTodos":[{"content":"ship it"}]}`, "todo_updated"},
		{"todo diff old only", `{"oldTodos":[{"content":"done"}]}`, "todo_updated"},
		{"generic result", `{"content":"command output here"}`, "tool_result"},
		{"opaque payload", `{"stdout":"...","stderr":""}`, "tool_use"},
		{"named write tool", `{"tool_name":"Write","file_path":"/tmp/a.go"}`, "file_created"},
		{"named edit tool", `{"tool_name":"Edit","file_path":"/tmp/a.go"}`, "file_modified"},
		{"named multiedit tool", `{"tool_name":"MultiEdit"}`, "file_modified"},
		{"named read tool", `{"tool_name":"Read"}`, "file_accessed"},
		{"named bash tool", `{"tool_name":"Bash"}`, "command_executed"},
		{"named grep tool", `{"tool_name":"Grep"}`, "code_searched"},
		{"named ls tool", `{"tool_name":"LS"}`, "directory_listed"},
		{"unknown tool name falls back to shape", `{"tool_name":"Custom","content":"x"}`, "tool_result"},
		{"non-object payload", `["a","b"]`, "tool_use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventTypeFor(json.RawMessage(tt.toolUses)))
		})
	}
}

func TestToolFilePath(t *testing.T) {
	assert.Equal(t, "/tmp/a.go", ToolFilePath(json.RawMessage(`{"file_path":"/tmp/a.go"}`)))
	assert.Equal(t, "/tmp/b.go", ToolFilePath(json.RawMessage(`{"filePath":"/tmp/b.go"}`)))
	assert.Equal(t, "", ToolFilePath(json.RawMessage(`{"content":"no path"}`)))
	assert.Equal(t, "", ToolFilePath(json.RawMessage(`["not","an","object"]`)))
}

func TestExtractTechnicalEvents(t *testing.T) {
	ts := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	msgs := []ParsedMessage{
		{UUID: "m1", Role: "tool", ToolUses: json.RawMessage(`{"tool_name":"Write","file_path":"/srv/app.go"}`), Timestamp: ts},
		{UUID: "m2", Role: "assistant", Content: "no tools here", Timestamp: ts},
		{UUID: "m3", Role: "tool", ToolUses: json.RawMessage(`{"content":"ran fine"}`), Timestamp: ts},
	}

	events := ExtractTechnicalEvents(msgs)
	require.Len(t, events, 2)

	assert.Equal(t, "m1", events[0].MessageUUID)
	assert.Equal(t, "file_created", events[0].EventType)
	assert.Equal(t, "/srv/app.go", events[0].FilePath)
	assert.Equal(t, ts, events[0].Timestamp)

	assert.Equal(t, "m3", events[1].MessageUUID)
	assert.Equal(t, "tool_result", events[1].EventType)
	assert.Empty(t, events[1].FilePath)
}
