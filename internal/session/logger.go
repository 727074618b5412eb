package session

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/samsaffron/vibe-llm/internal/conversation"
)

// LoggingStore wraps a Store and logs write failures.
// Callers still see the error; each operation is only logged once to avoid spamming.
type LoggingStore struct {
	Store
	log    *logrus.Entry
	mu     sync.Mutex
	warned map[string]bool
}

// NewLoggingStore creates a new LoggingStore wrapper.
func NewLoggingStore(store Store, log *logrus.Entry) *LoggingStore {
	if log == nil {
		log = logrus.WithField("component", "session")
	}
	return &LoggingStore{
		Store:  store,
		log:    log.WithField("session", store.ID()),
		warned: make(map[string]bool),
	}
}

func (s *LoggingStore) logOnce(op string, err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.warned[op] {
		return
	}
	s.warned[op] = true
	s.log.WithError(err).WithField("op", op).Warn("transcript mirror failed")
}

// AddTurn wraps Store.AddTurn with error logging.
func (s *LoggingStore) AddTurn(turn conversation.Turn) error {
	err := s.Store.AddTurn(turn)
	s.logOnce("AddTurn", err)
	return err
}
