package session

import (
	"context"

	"github.com/samsaffron/vibe-llm/internal/conversation"
)

// NoopStore is a no-op implementation of Store used when the mirror is disabled.
// It silently discards all writes and returns empty results for reads.
type NoopStore struct {
	id string
}

// NewNoopStore returns a store with a fresh ID that records nothing.
func NewNoopStore() *NoopStore {
	return &NoopStore{id: NewID()}
}

func (s *NoopStore) ID() string { return s.id }

func (s *NoopStore) AddTurn(turn conversation.Turn) error { return nil }

func (s *NoopStore) Turns(ctx context.Context) ([]conversation.Turn, error) { return nil, nil }

func (s *NoopStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return nil, nil
}

func (s *NoopStore) Close() error { return nil }
