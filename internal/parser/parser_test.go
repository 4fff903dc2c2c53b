package parser

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFile_BasicConversation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc-123.jsonl")

	lines := []string{
		`{"type":"user","uuid":"aaa","sessionId":"abc-123","timestamp":"2026-02-11T10:00:00Z","gitBranch":"main","cwd":"/home/dev/proj","message":{"role":"user","content":"Hello, deploy the service"}}`,
		`{"type":"assistant","uuid":"bbb","sessionId":"abc-123","timestamp":"2026-02-11T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"I'll deploy the service now."}]}}`,
		`{"type":"user","uuid":"ccc","sessionId":"abc-123","timestamp":"2026-02-11T10:00:10Z","message":{"role":"user","content":"Great, thanks"}}`,
	}
	writeLines(t, path, lines)

	meta, msgs, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	if meta.ProjectName != filepath.Base(dir) {
		t.Errorf("project name = %q, want %q", meta.ProjectName, filepath.Base(dir))
	}
	if meta.SessionID != "abc-123" {
		t.Errorf("session id = %q, want abc-123", meta.SessionID)
	}
	if meta.GitBranch != "main" {
		t.Errorf("git branch = %q, want main", meta.GitBranch)
	}
	if meta.WorkingDirectory != "/home/dev/proj" {
		t.Errorf("working dir = %q", meta.WorkingDirectory)
	}
	if meta.MessageCount != 3 {
		t.Errorf("message count = %d, want 3", meta.MessageCount)
	}

	if msgs[0].Role != "user" || msgs[0].Content != "Hello, deploy the service" {
		t.Errorf("msg[0] = %q %q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "I'll deploy the service now." {
		t.Errorf("msg[1] = %q %q", msgs[1].Role, msgs[1].Content)
	}

	wantStart := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 2, 11, 10, 0, 10, 0, time.UTC)
	if !meta.StartedAt.Equal(wantStart) {
		t.Errorf("started_at = %v, want %v", meta.StartedAt, wantStart)
	}
	if !meta.EndedAt.Equal(wantEnd) {
		t.Errorf("ended_at = %v, want %v", meta.EndedAt, wantEnd)
	}
}

func TestParseFile_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")

	lines := []string{
		`{"type":"user","uuid":"aaa","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":"ok"}}`,
		`{not valid json`,
		`{"type":"assistant","uuid":"bbb","timestamp":"2026-02-11T10:00:01Z","message":{"role":"assistant","content":"fine"}}`,
	}
	writeLines(t, path, lines)

	_, msgs, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages (malformed line dropped), got %d", len(msgs))
	}
}

func TestParseFile_SummaryRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")

	lines := []string{
		`{"type":"summary","summary":"Discussed deployment strategy","leafUuid":"leaf-1"}`,
		`{"type":"user","uuid":"aaa","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":"Hi"}}`,
	}
	writeLines(t, path, lines)

	_, msgs, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs[0].Role != "summary" {
		t.Errorf("summary role = %q, want summary", msgs[0].Role)
	}
	if msgs[0].UUID != "leaf-1" {
		t.Errorf("summary uuid = %q, want leaf-1", msgs[0].UUID)
	}
	if msgs[0].Content != "Discussed deployment strategy" {
		t.Errorf("summary content = %q", msgs[0].Content)
	}
	// Summary has no native timestamp; repair uses the following message.
	if msgs[0].Timestamp.IsZero() {
		t.Error("summary timestamp not repaired")
	}
	if !msgs[0].Timestamp.Equal(msgs[1].Timestamp) {
		t.Errorf("summary timestamp = %v, want %v", msgs[0].Timestamp, msgs[1].Timestamp)
	}
}

func TestParseFile_ReclassifiesToolResults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")

	lines := []string{
		`{"type":"user","uuid":"aaa","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":[{"tool_use_id":"toolu_1","type":"tool_result","content":"file1\nfile2"}]}}`,
		`{"type":"user","uuid":"bbb","timestamp":"2026-02-11T10:00:01Z","toolUseResult":{"content":"done"},"message":{"role":"user","content":"tool output"}}`,
		`{"type":"user","uuid":"ccc","timestamp":"2026-02-11T10:00:02Z","message":{"role":"user","content":"an actual question"}}`,
	}
	writeLines(t, path, lines)

	_, msgs, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msgs[0].Role != "tool" {
		t.Errorf("tool_result block message role = %q, want tool", msgs[0].Role)
	}
	if msgs[1].Role != "tool" {
		t.Errorf("toolUseResult message role = %q, want tool", msgs[1].Role)
	}
	if msgs[1].ToolUses == nil {
		t.Error("expected toolUseResult payload captured")
	}
	if msgs[2].Role != "user" {
		t.Errorf("plain user message role = %q, want user", msgs[2].Role)
	}
}

func TestParseFile_PreservesUnknownRoles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")

	lines := []string{
		`{"type":"user","uuid":"aaa","timestamp":"2026-02-11T10:00:00Z","message":{"role":"moderator","content":"flagged"}}`,
		`{"type":"critic","uuid":"bbb","timestamp":"2026-02-11T10:00:01Z","message":{"content":"no role field"}}`,
	}
	writeLines(t, path, lines)

	_, msgs, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs[0].Role != "moderator" {
		t.Errorf("role = %q, want moderator passed through", msgs[0].Role)
	}
	// No role inside the message payload: the record type stands in.
	if msgs[1].Role != "critic" {
		t.Errorf("role = %q, want critic", msgs[1].Role)
	}
}

func TestParseFile_RepairsTimestamps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")

	lines := []string{
		`{"type":"user","uuid":"aaa","message":{"role":"user","content":"no timestamp"}}`,
		`{"type":"assistant","uuid":"bbb","timestamp":"2026-02-11T10:00:05Z","message":{"role":"assistant","content":"has one"}}`,
		`{"type":"user","uuid":"ccc","message":{"role":"user","content":"trailing, no timestamp"}}`,
	}
	writeLines(t, path, lines)

	_, msgs, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, m := range msgs {
		if m.Timestamp.IsZero() {
			t.Errorf("msg[%d] timestamp still zero after repair", i)
		}
	}

	// First message borrows the following timestamp.
	if !msgs[0].Timestamp.Equal(msgs[1].Timestamp) {
		t.Errorf("msg[0] timestamp = %v, want %v", msgs[0].Timestamp, msgs[1].Timestamp)
	}

	// Trailing message falls back to file mtime.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !msgs[2].Timestamp.Equal(info.ModTime()) {
		t.Errorf("msg[2] timestamp = %v, want file mtime %v", msgs[2].Timestamp, info.ModTime())
	}
}

func TestParseFile_MixedScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.jsonl")

	lines := []string{
		`{"type":"summary","summary":"Session digest","leafUuid":"leaf-1"}`,
		`{"type":"user","uuid":"aaa","timestamp":"2026-02-11T10:00:00Z","message":{"role":"user","content":"Run the tests"}}`,
		`{broken`,
		`{"type":"user","uuid":"bbb","timestamp":"2026-02-11T10:00:02Z","toolUseResult":{"content":"ok"},"message":{"role":"user","content":"output"}}`,
		`{"type":"assistant","uuid":"ccc","timestamp":"2026-02-11T10:00:03Z","message":{"role":"assistant","content":[{"type":"text","text":"All green."}]}}`,
	}
	writeLines(t, path, lines)

	_, msgs, err := New(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (malformed dropped), got %d", len(msgs))
	}

	roles := []string{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role}
	want := []string{"summary", "user", "tool", "assistant"}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("role[%d] = %q, want %q", i, roles[i], want[i])
		}
	}
	for i, m := range msgs {
		if m.Timestamp.IsZero() {
			t.Errorf("msg[%d] has zero timestamp after repair", i)
		}
	}
}

func TestParseFile_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.jsonl")
	os.WriteFile(path, []byte(""), 0o644)

	_, _, err := New(nil).ParseFile(path)
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestParseFile_OnlyMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.jsonl")
	os.WriteFile(path, []byte("not json\nalso not json\n"), 0o644)

	_, _, err := New(nil).ParseFile(path)
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestParseFile_NotFound(t *testing.T) {
	_, _, err := New(nil).ParseFile("/nonexistent/file.jsonl")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, line := range lines {
		f.WriteString(line + "\n")
	}
}
