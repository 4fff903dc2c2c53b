package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoRecords is returned when a file contains no parseable records.
var ErrNoRecords = errors.New("no parseable records")

// ConversationMetadata describes one conversation file. Identity derives from
// the file's location: parent directory name is the project, filename stem is
// the session id.
type ConversationMetadata struct {
	ProjectName      string
	ProjectPath      string
	SessionID        string
	GitBranch        string
	StartedAt        time.Time
	EndedAt          time.Time
	WorkingDirectory string
	MessageCount     int
	FilePath         string
}

// ParsedMessage is a single message extracted from a conversation file.
// Role is an open string: besides user/assistant/system the source data
// carries "summary" digests and tool-result records reclassified to "tool".
// Unrecognized roles pass through unmodified.
type ParsedMessage struct {
	UUID      string
	Role      string
	Content   string
	Timestamp time.Time
	ToolUses  json.RawMessage
	Metadata  MessageMetadata
}

// MessageMetadata carries auxiliary per-record context.
type MessageMetadata struct {
	RecordType string `json:"record_type"`
	CWD        string `json:"cwd,omitempty"`
	GitBranch  string `json:"git_branch,omitempty"`
}

// rawRecord is one JSONL line from a conversation file.
type rawRecord struct {
	Type          string          `json:"type"`
	UUID          string          `json:"uuid"`
	LeafUUID      string          `json:"leafUuid"`
	Summary       string          `json:"summary"`
	Timestamp     string          `json:"timestamp"`
	GitBranch     string          `json:"gitBranch"`
	CWD           string          `json:"cwd"`
	ToolUseResult json.RawMessage `json:"toolUseResult"`
	Message       rawMessage      `json:"message"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type Parser struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile parses one JSONL conversation file. Malformed lines are skipped
// with a warning; a missing file or a file with zero decodable lines is an
// error for the whole file.
func (p *Parser) ParseFile(path string) (ConversationMetadata, []ParsedMessage, error) {
	var meta ConversationMetadata

	f, err := os.Open(path)
	if err != nil {
		return meta, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return meta, nil, fmt.Errorf("stat: %w", err)
	}

	var records []rawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB line buffer
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec rawRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			p.logger.Warn("skipping malformed line", "path", path, "line", lineNum, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return meta, nil, fmt.Errorf("scan: %w", err)
	}

	if len(records) == 0 {
		return meta, nil, fmt.Errorf("%s: %w", path, ErrNoRecords)
	}

	meta = extractMetadata(path, records)

	msgs := make([]ParsedMessage, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, p.parseRecord(rec))
	}

	repairTimestamps(msgs, info.ModTime())

	meta.MessageCount = len(msgs)
	meta.StartedAt, meta.EndedAt = timeRange(msgs)

	return meta, msgs, nil
}

// extractMetadata derives conversation identity from the file path and pulls
// branch/cwd from the first record that carries them. Branch and working
// directory are usually consistent across a conversation, so the scan stops
// once a branch is found.
func extractMetadata(path string, records []rawRecord) ConversationMetadata {
	dir := filepath.Dir(path)
	meta := ConversationMetadata{
		ProjectName: filepath.Base(dir),
		ProjectPath: dir,
		SessionID:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FilePath:    path,
	}

	for _, rec := range records {
		if meta.GitBranch == "" && rec.GitBranch != "" {
			meta.GitBranch = rec.GitBranch
		}
		if meta.WorkingDirectory == "" && rec.CWD != "" {
			meta.WorkingDirectory = rec.CWD
		}
		if meta.GitBranch != "" {
			break
		}
	}

	return meta
}

func (p *Parser) parseRecord(rec rawRecord) ParsedMessage {
	msg := ParsedMessage{
		Metadata: MessageMetadata{
			RecordType: rec.Type,
			CWD:        rec.CWD,
			GitBranch:  rec.GitBranch,
		},
	}

	if rec.Type == "summary" {
		// Summary records hold a conversation digest keyed by leafUuid and
		// have no timestamp of their own; repair backfills one later.
		msg.UUID = rec.LeafUUID
		if msg.UUID == "" {
			msg.UUID = uuid.NewString()
		}
		msg.Role = "summary"
		msg.Content = rec.Summary
		return msg
	}

	msg.UUID = rec.UUID
	if msg.UUID == "" {
		msg.UUID = uuid.NewString()
	}

	msg.Role = rec.Message.Role
	if msg.Role == "" {
		msg.Role = rec.Type
	}
	msg.Content = FlattenContent(rec.Message.Content)

	if ts, ok := parseTimestamp(rec.Timestamp); ok {
		msg.Timestamp = ts
	}

	if present(rec.ToolUseResult) {
		msg.ToolUses = rec.ToolUseResult
	}

	// Tool results arrive tagged as user messages. Reclassify to "tool" so
	// they don't masquerade as human input; every other role passes through
	// untouched.
	if msg.Role == "user" && (msg.ToolUses != nil || hasToolResultBlock(rec.Message.Content)) {
		msg.Role = "tool"
	}

	return msg
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// repairTimestamps guarantees every message carries a timestamp: a missing
// one takes the nearest following message's timestamp, and messages with no
// later timestamp fall back to the file's modification time.
func repairTimestamps(msgs []ParsedMessage, fileMtime time.Time) {
	for i := range msgs {
		if !msgs[i].Timestamp.IsZero() {
			continue
		}
		repaired := fileMtime
		for j := i + 1; j < len(msgs); j++ {
			if !msgs[j].Timestamp.IsZero() {
				repaired = msgs[j].Timestamp
				break
			}
		}
		msgs[i].Timestamp = repaired
	}
}

func timeRange(msgs []ParsedMessage) (started, ended time.Time) {
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			continue
		}
		if started.IsZero() || m.Timestamp.Before(started) {
			started = m.Timestamp
		}
		if ended.IsZero() || m.Timestamp.After(ended) {
			ended = m.Timestamp
		}
	}
	return started, ended
}
