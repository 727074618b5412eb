package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/samsaffron/vibe-llm/internal/conversation"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("failed to create memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemoryStoreTurnsInOrder(t *testing.T) {
	store := newTestStore(t)
	want := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "make a blue square"},
		{Role: conversation.RoleAssistant, Content: "Here is a red circle instead."},
		{Role: conversation.RoleUser, Content: "thanks I guess"},
	}
	for _, turn := range want {
		if err := store.AddTurn(turn); err != nil {
			t.Fatalf("AddTurn: %v", err)
		}
	}

	got, err := store.Turns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Role != want[i].Role || got[i].Content != want[i].Content {
			t.Fatalf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
		if got[i].CreatedAt.IsZero() {
			t.Fatalf("turn %d has zero timestamp", i)
		}
	}
}

func TestMemoryStoreSearch(t *testing.T) {
	store := newTestStore(t)
	store.AddTurn(conversation.Turn{Role: conversation.RoleUser, Content: "make a blue square"})
	store.AddTurn(conversation.Turn{Role: conversation.RoleAssistant, Content: "A green triangle, because vibes."})
	store.AddTurn(conversation.Turn{Role: conversation.RoleUser, Content: "now a square button"})

	results, err := store.Search(context.Background(), "square", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Role != conversation.RoleUser || !strings.Contains(r.Snippet, "**square**") {
			t.Fatalf("unexpected result %+v", r)
		}
	}

	results, err = store.Search(context.Background(), "green vibes", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Sequence != 1 {
		t.Fatalf("results=%+v", results)
	}
}

func TestMemoryStoreSearchQuotesInput(t *testing.T) {
	store := newTestStore(t)
	store.AddTurn(conversation.Turn{Role: conversation.RoleUser, Content: `say "hi" AND NOT bye`})

	for _, q := range []string{`"hi`, `AND`, `NOT*`, "   "} {
		if _, err := store.Search(context.Background(), q, 0); err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
	}
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)
	a.AddTurn(conversation.Turn{Role: conversation.RoleUser, Content: "only in a"})

	turns, err := b.Turns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Fatalf("store b sees %d turns", len(turns))
	}
	if a.ID() == b.ID() {
		t.Fatal("stores share an ID")
	}
}

func TestMemoryStoreAsMirror(t *testing.T) {
	store := newTestStore(t)
	log := conversation.NewLog(store)
	log.AppendUser("hello")
	log.AppendAssistant("goodbye")

	turns, err := store.Turns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[1].Content != "goodbye" {
		t.Fatalf("turns=%+v", turns)
	}
}

func TestNewStoreDisabled(t *testing.T) {
	store, err := NewStore(Config{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*NoopStore); !ok {
		t.Fatalf("store type %T, want *NoopStore", store)
	}
	if err := store.AddTurn(conversation.Turn{Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if store.ID() == "" {
		t.Fatal("noop store has no ID")
	}
}

type failingStore struct{ NoopStore }

func (failingStore) AddTurn(conversation.Turn) error { return errors.New("disk on fire") }

func TestLoggingStoreWarnsOnce(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	store := NewLoggingStore(&failingStore{NoopStore{id: "s1"}}, logrus.NewEntry(logger))

	for i := 0; i < 3; i++ {
		if err := store.AddTurn(conversation.Turn{Content: "x"}); err == nil {
			t.Fatal("expected error to pass through")
		}
	}
	if len(hook.AllEntries()) != 1 {
		t.Fatalf("got %d log entries, want 1", len(hook.AllEntries()))
	}
	entry := hook.LastEntry()
	if entry.Level != logrus.WarnLevel || entry.Data["op"] != "AddTurn" || entry.Data["session"] != "s1" {
		t.Fatalf("entry=%+v", entry.Data)
	}
}
