// Package session mirrors the conversation into a process-local SQLite database so the
// transcript can be searched. Nothing is written to disk.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/samsaffron/vibe-llm/internal/conversation"
)

// Store is a searchable transcript of one conversation.
type Store interface {
	// ID identifies the session for log correlation.
	ID() string

	// AddTurn records a turn. It satisfies conversation.Mirror.
	AddTurn(turn conversation.Turn) error

	// Turns returns recorded turns in insertion order.
	Turns(ctx context.Context) ([]conversation.Turn, error)

	// Search runs a full-text query over turn content. limit <= 0 means 20.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	Close() error
}

// SearchResult is a single full-text match.
type SearchResult struct {
	Sequence  int               `json:"sequence"`
	Role      conversation.Role `json:"role"`
	Snippet   string            `json:"snippet"`
	CreatedAt time.Time         `json:"created_at"`
}

// Config holds transcript mirror configuration.
type Config struct {
	Enabled bool `mapstructure:"enabled"` // Master switch
}

// DefaultConfig returns the default transcript configuration.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// NewStore creates a Store based on the configuration.
// If the mirror is disabled, returns a no-op store.
func NewStore(cfg Config) (Store, error) {
	if !cfg.Enabled {
		return NewNoopStore(), nil
	}
	return NewMemoryStore()
}
