package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/samsaffron/vibe-llm/internal/conversation"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    sequence INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, sequence);

-- Full-text search on turn content
CREATE VIRTUAL TABLE IF NOT EXISTS turns_fts USING fts5(
    content,
    content='turns',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS turns_ai AFTER INSERT ON turns BEGIN
    INSERT INTO turns_fts(rowid, content) VALUES (new.id, new.content);
END;
`

// MemoryStore implements Store on an in-memory SQLite database.
// The data lives as long as the store is open.
type MemoryStore struct {
	db  *sql.DB
	id  string
	mu  sync.Mutex
	seq int
}

// NewMemoryStore opens a fresh in-memory database.
func NewMemoryStore() (*MemoryStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &MemoryStore{db: db, id: NewID()}, nil
}

func (s *MemoryStore) ID() string { return s.id }

// AddTurn inserts a turn with the next sequence number.
func (s *MemoryStore) AddTurn(turn conversation.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO turns (session_id, role, content, created_at, sequence) VALUES (?, ?, ?, ?, ?)`,
		s.id, string(turn.Role), turn.Content, turn.CreatedAt.UnixNano(), s.seq)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	s.seq++
	return nil
}

// Turns returns all recorded turns in order.
func (s *MemoryStore) Turns(ctx context.Context) ([]conversation.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM turns WHERE session_id = ? ORDER BY sequence`, s.id)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []conversation.Turn
	for rows.Next() {
		var (
			role    string
			turn    conversation.Turn
			created int64
		)
		if err := rows.Scan(&role, &turn.Content, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = conversation.Role(role)
		turn.CreatedAt = time.Unix(0, created)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Search matches every word of query against turn content, best match first.
func (s *MemoryStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.sequence, t.role, snippet(turns_fts, 0, '**', '**', '...', 16), t.created_at
		FROM turns_fts f
		JOIN turns t ON t.id = f.rowid
		WHERE turns_fts MATCH ? AND t.session_id = ?
		ORDER BY rank
		LIMIT ?`, match, s.id, limit)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r       SearchResult
			role    string
			created int64
		)
		if err := rows.Scan(&r.Sequence, &role, &r.Snippet, &created); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Role = conversation.Role(role)
		r.CreatedAt = time.Unix(0, created)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *MemoryStore) Close() error {
	return s.db.Close()
}

// ftsQuery quotes each word so user input is never parsed as FTS5 syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}
