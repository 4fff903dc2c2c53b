package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// SearchParams filter a similarity search. MaxDistance is a maximum cosine
// distance cutoff, not a minimum similarity floor: lower distance means more
// similar, and results at or beyond the cutoff are excluded.
type SearchParams struct {
	Limit       int
	MaxDistance float64
	Project     string
	Role        string
	After       time.Time
	Before      time.Time
}

// SearchResult is one similarity hit with its owning conversation's
// identifying fields.
type SearchResult struct {
	MessageID      uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Content        string     `json:"content"`
	Role           string     `json:"role"`
	Timestamp      *time.Time `json:"timestamp"`
	Distance       float64    `json:"distance"`
	ProjectName    string     `json:"project_name"`
	SessionID      string     `json:"session_id"`
	GitBranch      *string    `json:"git_branch"`
	FilePath       string     `json:"file_path"`
}

// SearchSimilar runs a filtered cosine-distance search over message
// embeddings, ordered by ascending distance. Messages without an embedding
// never match.
func (s *Store) SearchSimilar(ctx context.Context, queryVec []float32, p SearchParams) ([]SearchResult, error) {
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.MaxDistance <= 0 {
		p.MaxDistance = 0.7
	}

	conditions := []string{
		"m.embedding IS NOT NULL",
		"m.embedding <=> $1 < $2",
	}
	args := []any{pgvector.NewVector(queryVec), p.MaxDistance, p.Limit}
	next := 4

	if p.Project != "" {
		conditions = append(conditions, fmt.Sprintf("c.project_name = $%d", next))
		args = append(args, p.Project)
		next++
	}
	if p.Role != "" {
		conditions = append(conditions, fmt.Sprintf("m.role = $%d", next))
		args = append(args, p.Role)
		next++
	}
	if !p.After.IsZero() {
		conditions = append(conditions, fmt.Sprintf("m.timestamp >= $%d", next))
		args = append(args, p.After)
		next++
	}
	if !p.Before.IsZero() {
		conditions = append(conditions, fmt.Sprintf("m.timestamp <= $%d", next))
		args = append(args, p.Before)
		next++
	}

	query := fmt.Sprintf(`
		SELECT
			m.id, m.conversation_id, m.content, m.role, m.timestamp,
			m.embedding <=> $1 AS distance,
			c.project_name, c.session_id, c.git_branch, c.file_path
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.id
		WHERE %s
		ORDER BY m.embedding <=> $1
		LIMIT $3`, strings.Join(conditions, " AND "))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.MessageID, &r.ConversationID, &r.Content, &r.Role, &r.Timestamp,
			&r.Distance, &r.ProjectName, &r.SessionID, &r.GitBranch, &r.FilePath,
		); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}
