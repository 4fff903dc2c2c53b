package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Role is an open string at the schema level: no CHECK constraint, so any
// role value in the source data round-trips unchanged.
const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS conversations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	project_name TEXT NOT NULL,
	project_path TEXT NOT NULL,
	session_id TEXT NOT NULL,
	git_branch TEXT,
	started_at TIMESTAMPTZ,
	ended_at TIMESTAMPTZ,
	working_directory TEXT,
	message_count INTEGER NOT NULL DEFAULT 0,
	metadata JSONB NOT NULL DEFAULT '{}',
	file_path TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, file_path)
);

CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	message_uuid TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	embedding vector(%d),
	timestamp TIMESTAMPTZ,
	tool_uses JSONB,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (conversation_id, message_uuid)
);

CREATE TABLE IF NOT EXISTS technical_events (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	file_path TEXT,
	details JSONB,
	timestamp TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp);
CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations (project_name);
CREATE INDEX IF NOT EXISTS idx_technical_events_conversation ON technical_events (conversation_id);
`

// EnsureSchema creates the tables and supporting indexes if they don't
// already exist. The embedding column is sized to the configured dimension.
func (s *Store) EnsureSchema(ctx context.Context, embedDim int) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaTemplate, embedDim)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	s.logger.Info("schema ensured", "embed_dim", embedDim)
	return nil
}

// CreateVectorIndex builds the approximate-nearest-neighbor index over
// message embeddings. Meant to run once after bulk ingestion; a second call
// is a no-op.
func (s *Store) CreateVectorIndex(ctx context.Context, lists int) error {
	var exists int
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM pg_indexes
		WHERE tablename = 'messages' AND indexname = 'idx_messages_embedding'`).Scan(&exists)
	if err == nil {
		s.logger.Info("vector index already exists")
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check vector index: %w", err)
	}

	s.logger.Info("creating vector index", "lists", lists)
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX idx_messages_embedding ON messages
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = %d)`, lists))
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	s.logger.Info("vector index created")
	return nil
}
