package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation is the read-side view of a stored conversation.
type Conversation struct {
	ID          uuid.UUID  `json:"id"`
	ProjectName string     `json:"project_name"`
	SessionID   string     `json:"session_id"`
	GitBranch   *string    `json:"git_branch"`
	StartedAt   *time.Time `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	FilePath    string     `json:"file_path"`
	Messages    []Message  `json:"messages"`
}

// Message is the read-side view of a stored message.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Timestamp *time.Time      `json:"timestamp"`
	ToolUses  json.RawMessage `json:"tool_uses,omitempty"`
}

// GetConversation fetches a conversation and all of its messages ordered by
// timestamp.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_name, session_id, git_branch, started_at, ended_at, file_path
		FROM conversations WHERE id = $1`, id).Scan(
		&c.ID, &c.ProjectName, &c.SessionID, &c.GitBranch, &c.StartedAt, &c.EndedAt, &c.FilePath,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, role, content, timestamp, tool_uses
		FROM messages WHERE conversation_id = $1
		ORDER BY timestamp, created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp, &m.ToolUses); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		c.Messages = append(c.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return &c, nil
}

// ConversationContext fetches up to window messages on each side of a target
// message, plus the target itself, ordered by timestamp.
func (s *Store) ConversationContext(ctx context.Context, conversationID, messageID uuid.UUID, window int) (*Conversation, error) {
	c, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	target := -1
	for i, m := range c.Messages {
		if m.ID == messageID {
			target = i
			break
		}
	}
	if target == -1 {
		return nil, fmt.Errorf("message %s not in conversation %s", messageID, conversationID)
	}

	lo := target - window
	if lo < 0 {
		lo = 0
	}
	hi := target + window + 1
	if hi > len(c.Messages) {
		hi = len(c.Messages)
	}
	c.Messages = c.Messages[lo:hi]
	return c, nil
}
