// Package conversation holds the ordered chat history of one session.
package conversation

import (
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one chat message. Turns are immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Mirror receives a copy of every appended turn, e.g. a transcript store.
type Mirror interface {
	AddTurn(turn Turn) error
}

// Log is an append-only turn sequence. It is safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	turns  []Turn
	mirror Mirror
	now    func() time.Time

	// OnMirrorError is called when the mirror rejects a turn. The turn is kept either way.
	OnMirrorError func(error)
}

// NewLog creates an empty log. mirror may be nil.
func NewLog(mirror Mirror) *Log {
	return &Log{mirror: mirror, now: time.Now}
}

// Append adds a turn at the end. A zero CreatedAt is stamped with the current time.
// Turns are never deduplicated or reordered.
func (l *Log) Append(turn Turn) Turn {
	l.mu.Lock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = l.now()
	}
	l.turns = append(l.turns, turn)
	mirror := l.mirror
	l.mu.Unlock()

	if mirror != nil {
		if err := mirror.AddTurn(turn); err != nil && l.OnMirrorError != nil {
			l.OnMirrorError(err)
		}
	}
	return turn
}

// AppendUser is shorthand for appending a user turn.
func (l *Log) AppendUser(content string) Turn {
	return l.Append(Turn{Role: RoleUser, Content: content})
}

// AppendAssistant is shorthand for appending an assistant turn.
func (l *Log) AppendAssistant(content string) Turn {
	return l.Append(Turn{Role: RoleAssistant, Content: content})
}

// Turns returns a copy of the turns in insertion order.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Last returns the most recent turn.
func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}
