package store

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/chatvault/chatvault/internal/parser"
)

func TestStoreConversation_VectorCountMismatch(t *testing.T) {
	// Validation runs before any storage access, so a zero-value store is
	// enough to exercise it.
	s := &Store{logger: slog.Default()}

	meta := parser.ConversationMetadata{SessionID: "s1", FilePath: "/tmp/s1.jsonl"}
	msgs := []parser.ParsedMessage{
		{UUID: "a", Role: "user", Content: "hi"},
		{UUID: "b", Role: "assistant", Content: "hello"},
	}
	vectors := [][]float32{{0.1, 0.2}}

	_, err := s.StoreConversation(context.Background(), meta, msgs, vectors)
	if !errors.Is(err, ErrVectorCountMismatch) {
		t.Fatalf("expected ErrVectorCountMismatch, got %v", err)
	}
}
