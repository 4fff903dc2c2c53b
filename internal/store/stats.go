package store

import (
	"context"
	"fmt"
	"time"
)

// Stats summarizes the contents of the store.
type Stats struct {
	ConversationCount    int64      `json:"conversation_count"`
	MessageCount         int64      `json:"message_count"`
	ProjectCount         int64      `json:"project_count"`
	EmbeddedMessageCount int64      `json:"embedded_message_count"`
	TechnicalEventCount  int64      `json:"technical_event_count"`
	EarliestConversation *time.Time `json:"earliest_conversation"`
	LatestConversation   *time.Time `json:"latest_conversation"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(DISTINCT c.id),
			COUNT(m.id),
			COUNT(DISTINCT c.project_name),
			COUNT(CASE WHEN m.embedding IS NOT NULL THEN 1 END),
			(SELECT COUNT(*) FROM technical_events),
			MIN(c.started_at),
			MAX(c.ended_at)
		FROM conversations c
		LEFT JOIN messages m ON c.id = m.conversation_id`).Scan(
		&st.ConversationCount, &st.MessageCount, &st.ProjectCount,
		&st.EmbeddedMessageCount, &st.TechnicalEventCount,
		&st.EarliestConversation, &st.LatestConversation,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

// ProjectSummary aggregates per-project ingestion counts.
type ProjectSummary struct {
	ProjectName        string     `json:"project_name"`
	ConversationCount  int64      `json:"conversation_count"`
	MessageCount       int64      `json:"message_count"`
	FirstConversation  *time.Time `json:"first_conversation"`
	LatestConversation *time.Time `json:"latest_conversation"`
}

func (s *Store) Projects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			c.project_name,
			COUNT(DISTINCT c.id),
			COUNT(m.id),
			MIN(c.started_at),
			MAX(c.ended_at)
		FROM conversations c
		LEFT JOIN messages m ON c.id = m.conversation_id
		GROUP BY c.project_name
		ORDER BY MAX(c.ended_at) DESC NULLS LAST`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ProjectName, &p.ConversationCount, &p.MessageCount, &p.FirstConversation, &p.LatestConversation); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return projects, nil
}
