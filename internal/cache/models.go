// Package cache keeps provider model lists on disk between runs.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// DefaultTTL is how long a model list stays fresh.
const DefaultTTL = 30 * time.Minute

// Models is one provider's cached model list.
type Models struct {
	Provider  string    `json:"provider"`
	IDs       []string  `json:"ids"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Fresh reports whether the list was fetched within ttl of now.
func (m *Models) Fresh(ttl time.Duration, now time.Time) bool {
	return m != nil && now.Sub(m.FetchedAt) < ttl
}

// ModelStore reads and writes model lists under a directory, one JSON file per provider.
type ModelStore struct {
	dir string
	now func() time.Time
}

// NewModelStore creates a store rooted at dir. An empty dir uses DefaultDir.
func NewModelStore(dir string) (*ModelStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &ModelStore{dir: dir, now: time.Now}, nil
}

// DefaultDir is $XDG_CACHE_HOME/vibe-llm, or ~/.cache/vibe-llm.
func DefaultDir() (string, error) {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "vibe-llm"), nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *ModelStore) path(provider string) string {
	return filepath.Join(s.dir, unsafeName.ReplaceAllString(provider, "_")+"-models.json")
}

// Read returns the cached list for provider, or nil when there is none.
func (s *ModelStore) Read(provider string) (*Models, error) {
	data, err := os.ReadFile(s.path(provider))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Models
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt model cache for %s: %w", provider, err)
	}
	return &m, nil
}

// Write replaces the cached list for provider atomically.
func (s *ModelStore) Write(provider string, ids []string) (*Models, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	m := &Models{Provider: provider, IDs: ids, FetchedAt: s.now()}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(s.dir, "models-*.tmp")
	if err != nil {
		return nil, err
	}
	tmpPath := f.Name()
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, s.path(provider)); err != nil {
		return nil, err
	}
	renamed = true
	return m, nil
}

// Get returns the cached list when fresh, otherwise calls fetch and caches its result.
// A stale list is returned alongside the error when fetch fails.
func (s *ModelStore) Get(provider string, ttl time.Duration, refresh bool, fetch func() ([]string, error)) (*Models, error) {
	cached, err := s.Read(provider)
	if err != nil {
		cached = nil
	}
	if !refresh && cached.Fresh(ttl, s.now()) {
		return cached, nil
	}
	ids, err := fetch()
	if err != nil {
		return cached, err
	}
	return s.Write(provider, ids)
}
