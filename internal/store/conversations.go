package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/chatvault/chatvault/internal/parser"
)

// ErrVectorCountMismatch is returned when the supplied vector list doesn't
// line up one-to-one with the message list.
var ErrVectorCountMismatch = errors.New("embedding count does not match message count")

// StoreConversation persists a conversation, its messages, and any derived
// technical events in one transaction. The conversation row upserts on
// (session_id, file_path); messages upsert on (conversation_id, message_uuid)
// refreshing the stored embedding, so re-ingesting a file updates rather than
// duplicates. vectors may be nil; when supplied it must have one entry per
// message, with nil entries for messages that have no embedding.
func (s *Store) StoreConversation(ctx context.Context, meta parser.ConversationMetadata, msgs []parser.ParsedMessage, vectors [][]float32) (uuid.UUID, error) {
	if vectors != nil && len(vectors) != len(msgs) {
		return uuid.Nil, fmt.Errorf("%w: %d vectors for %d messages", ErrVectorCountMismatch, len(vectors), len(msgs))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var conversationID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (
			project_name, project_path, session_id, git_branch,
			started_at, ended_at, working_directory, message_count, file_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, file_path) DO UPDATE SET
			message_count = EXCLUDED.message_count,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			updated_at = now()
		RETURNING id`,
		meta.ProjectName, meta.ProjectPath, meta.SessionID, nullStr(meta.GitBranch),
		nullTime(meta.StartedAt), nullTime(meta.EndedAt), nullStr(meta.WorkingDirectory),
		len(msgs), meta.FilePath,
	).Scan(&conversationID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert conversation: %w", err)
	}

	// Insert messages, keeping the uuid → generated id mapping so technical
	// events can reference messages inserted in this same transaction.
	idByUUID := make(map[string]uuid.UUID, len(msgs))
	for i, msg := range msgs {
		var embedding any
		if vectors != nil && vectors[i] != nil {
			embedding = pgvector.NewVector(vectors[i])
		}

		msgMeta, err := json.Marshal(msg.Metadata)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal message metadata: %w", err)
		}

		var msgID uuid.UUID
		err = tx.QueryRow(ctx, `
			INSERT INTO messages (
				conversation_id, message_uuid, role, content, embedding,
				timestamp, tool_uses, metadata
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (conversation_id, message_uuid) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				updated_at = now()
			RETURNING id`,
			conversationID, msg.UUID, msg.Role, msg.Content, embedding,
			nullTime(msg.Timestamp), rawOrNil(msg.ToolUses), msgMeta,
		).Scan(&msgID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert message %s: %w", msg.UUID, err)
		}
		idByUUID[msg.UUID] = msgID
	}

	// Events are derived from the messages, so re-ingesting replaces them
	// wholesale instead of upserting.
	if _, err := tx.Exec(ctx, `DELETE FROM technical_events WHERE conversation_id = $1`, conversationID); err != nil {
		return uuid.Nil, fmt.Errorf("clear technical events: %w", err)
	}

	for _, ev := range parser.ExtractTechnicalEvents(msgs) {
		msgID, ok := idByUUID[ev.MessageUUID]
		if !ok {
			continue
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO technical_events (conversation_id, message_id, event_type, file_path, details, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			conversationID, msgID, ev.EventType, nullStr(ev.FilePath), rawOrNil(ev.Details), nullTime(ev.Timestamp),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert technical event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("conversation stored",
		"conversation_id", conversationID,
		"session_id", meta.SessionID,
		"messages", len(msgs),
	)
	return conversationID, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func rawOrNil(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
