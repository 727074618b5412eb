package vibe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/llm"
	"github.com/samsaffron/vibe-llm/internal/normalize"
	"github.com/samsaffron/vibe-llm/internal/prompt"
)

const fencedReply = "<think>they want blue</think>\n```json\n" +
	`{"conversation": "Here is a red circle. Vibe harder.", "code": "<div class=\"circle\"></div>\\n<style>.circle{color:red}</style>"}` +
	"\n```"

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func newTestStudio(t *testing.T, provider llm.Provider, mutate func(*Options)) (*Studio, *recorder) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	opts := Options{
		Provider: provider,
		Debounce: 20 * time.Millisecond,
		Logger:   logrus.NewEntry(logger),
		OnEvent:  rec.record,
	}
	if mutate != nil {
		mutate(&opts)
	}
	studio, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return studio, rec
}

func TestSubmitStructuredReply(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse(fencedReply)
	studio, rec := newTestStudio(t, provider, nil)

	if err := studio.Submit(context.Background(), "  make a blue square "); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	turns := studio.Turns()
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Role != conversation.RoleUser || turns[0].Content != "make a blue square" {
		t.Fatalf("user turn=%+v", turns[0])
	}
	if turns[1].Role != conversation.RoleAssistant || turns[1].Content != "Here is a red circle. Vibe harder." {
		t.Fatalf("assistant turn=%+v", turns[1])
	}

	display := studio.Display()
	wantCode := "<div class=\"circle\"></div>\n<style>.circle{color:red}</style>"
	if display.Code != wantCode {
		t.Fatalf("code=%q, want %q", display.Code, wantCode)
	}
	if display.Source != normalize.KindStructured {
		t.Fatalf("source=%q", display.Source)
	}
	if studio.Busy() {
		t.Fatal("studio still busy after Submit returned")
	}
	if studio.LastError() != nil {
		t.Fatalf("LastError=%v", studio.LastError())
	}

	finished := rec.ofType(EventFinished)
	if len(finished) != 1 || finished[0].Turn.Content != turns[1].Content {
		t.Fatalf("finished events=%+v", finished)
	}
}

func TestSubmitFallbackReply(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse("<think>hmm</think>  I refuse to emit JSON.  ")
	studio, _ := newTestStudio(t, provider, nil)

	if err := studio.Submit(context.Background(), "a button"); err != nil {
		t.Fatal(err)
	}
	last, _ := studio.log.Last()
	if last.Content != "I refuse to emit JSON." {
		t.Fatalf("assistant turn=%q", last.Content)
	}
	display := studio.Display()
	if display.Code != "I refuse to emit JSON." || display.Source != normalize.KindFallback {
		t.Fatalf("display=%+v", display)
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	provider := llm.NewMockProvider("mock").AddError(boom)
	studio, rec := newTestStudio(t, provider, nil)

	if err := studio.Submit(context.Background(), "anything"); err != nil {
		t.Fatalf("Submit returned %v, want nil", err)
	}
	turns := studio.Turns()
	if len(turns) != 2 || turns[1].Content != ApologyMessage || turns[1].Role != conversation.RoleAssistant {
		t.Fatalf("turns=%+v", turns)
	}
	if !errors.Is(studio.LastError(), boom) {
		t.Fatalf("LastError=%v, want %v", studio.LastError(), boom)
	}
	finished := rec.ofType(EventFinished)
	if len(finished) != 1 || !errors.Is(finished[0].Err, boom) {
		t.Fatalf("finished=%+v", finished)
	}
	if studio.Busy() {
		t.Fatal("busy after failure")
	}
}

func TestSubmitPartialThenFailure(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{
		Chunks: []string{"half a re"},
		Err:    errors.New("stream cut"),
	})
	studio, _ := newTestStudio(t, provider, func(o *Options) { o.Apology = "sorry" })

	studio.Submit(context.Background(), "x")
	turns := studio.Turns()
	if len(turns) != 2 || turns[1].Content != "sorry" {
		t.Fatalf("turns=%+v", turns)
	}
}

func TestSubmitEmptyReplyApologizes(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse("")
	studio, _ := newTestStudio(t, provider, nil)

	studio.Submit(context.Background(), "x")
	if !errors.Is(studio.LastError(), ErrEmptyReply) {
		t.Fatalf("LastError=%v", studio.LastError())
	}
	if last, _ := studio.log.Last(); last.Content != ApologyMessage {
		t.Fatalf("last turn=%q", last.Content)
	}
}

func TestSubmitReasoningOnlyReplyApologizes(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse("<think>only thinking</think>")
	studio, rec := newTestStudio(t, provider, nil)

	studio.Submit(context.Background(), "x")
	if !errors.Is(studio.LastError(), ErrEmptyReply) {
		t.Fatalf("LastError=%v", studio.LastError())
	}
	turns := studio.Turns()
	if len(turns) != 2 || turns[1].Content != ApologyMessage {
		t.Fatalf("turns=%+v", turns)
	}
	if displays := rec.ofType(EventDisplay); len(displays) != 0 {
		t.Fatalf("got %d display updates for a reply with nothing to show", len(displays))
	}
	if studio.Busy() {
		t.Fatal("busy after empty reply")
	}
}

func TestApplyIgnoresStalePrefix(t *testing.T) {
	studio, rec := newTestStudio(t, llm.NewMockProvider("mock"), nil)
	tr := &turn{}

	studio.apply(tr, fencedReply)
	studio.apply(tr, fencedReply[:20])

	if displays := rec.ofType(EventDisplay); len(displays) != 1 {
		t.Fatalf("got %d display updates, want 1", len(displays))
	}
	if got := tr.finish(); !got.Structured() || got.Conversation() != "Here is a red circle. Vibe harder." {
		t.Fatalf("result=%+v", got)
	}
	if studio.Display().Source != normalize.KindStructured {
		t.Fatalf("display=%+v", studio.Display())
	}
}

func TestSubmitTimeout(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{Text: "late", Delay: time.Second})
	studio, _ := newTestStudio(t, provider, func(o *Options) { o.Timeout = 30 * time.Millisecond })

	start := time.Now()
	studio.Submit(context.Background(), "x")
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("timeout not applied, took %v", time.Since(start))
	}
	if !errors.Is(studio.LastError(), context.DeadlineExceeded) {
		t.Fatalf("LastError=%v", studio.LastError())
	}
}

func TestSubmitEmptyPrompt(t *testing.T) {
	studio, _ := newTestStudio(t, llm.NewMockProvider("mock"), nil)
	for _, in := range []string{"", "   ", "\n\t"} {
		if err := studio.Submit(context.Background(), in); !errors.Is(err, ErrEmptyPrompt) {
			t.Fatalf("Submit(%q)=%v, want ErrEmptyPrompt", in, err)
		}
	}
	if studio.log.Len() != 0 {
		t.Fatal("empty prompt recorded a turn")
	}
}

func TestStartWhileBusy(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{Text: "slow", Delay: 100 * time.Millisecond})
	studio, _ := newTestStudio(t, provider, nil)

	done, err := studio.Start(context.Background(), "first")
	if err != nil {
		t.Fatal(err)
	}
	if !studio.Busy() {
		t.Fatal("not busy after Start")
	}
	if _, err := studio.Start(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start err=%v, want ErrBusy", err)
	}
	<-done
	if studio.Busy() {
		t.Fatal("busy after turn finished")
	}
	if studio.log.Len() != 2 {
		t.Fatalf("got %d turns, want 2", studio.log.Len())
	}
}

func TestHistoryCarriesRawText(t *testing.T) {
	provider := llm.NewMockProvider("mock").
		AddTextResponse(fencedReply).
		AddTextResponse("second answer")
	studio, _ := newTestStudio(t, provider, func(o *Options) { o.Instructions = "Be contrary." })

	studio.Submit(context.Background(), "first request")
	studio.Submit(context.Background(), "second request")

	reqs := provider.RecordedRequests()
	if len(reqs) != 2 {
		t.Fatalf("got %d requests", len(reqs))
	}
	got := reqs[1].Messages
	want := []llm.Message{
		llm.SystemText("Be contrary."),
		llm.UserText("first request"),
		llm.AssistantText(fencedReply),
		llm.UserText("second request"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if first := reqs[0].Messages[0]; first.Text != "Be contrary." {
		t.Fatalf("system=%q", first.Text)
	}
}

func TestDefaultSystemPrompt(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTextResponse("ok")
	studio, _ := newTestStudio(t, provider, nil)
	studio.Submit(context.Background(), "x")

	msgs := provider.RecordedRequests()[0].Messages
	if msgs[0].Role != llm.RoleSystem || msgs[0].Text != prompt.VibeSystemPrompt {
		t.Fatalf("system message=%+v", msgs[0])
	}
}

func TestSettledPrefixIsReplaced(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{
		Chunks:     []string{"first draft", " and the rest"},
		ChunkDelay: 150 * time.Millisecond,
	})
	studio, rec := newTestStudio(t, provider, nil)

	studio.Submit(context.Background(), "x")

	displays := rec.ofType(EventDisplay)
	if len(displays) != 2 {
		t.Fatalf("got %d display updates, want 2", len(displays))
	}
	if displays[0].Display.Code != "first draft" {
		t.Fatalf("first display=%q", displays[0].Display.Code)
	}
	if displays[1].Display.Code != "first draft and the rest" {
		t.Fatalf("second display=%q", displays[1].Display.Code)
	}
	if studio.Display().Code != "first draft and the rest" {
		t.Fatalf("final display=%q", studio.Display().Code)
	}
	if studio.log.Len() != 2 {
		t.Fatalf("got %d turns, want one user and one assistant", studio.log.Len())
	}
}

func TestFinalTextNormalizedOnce(t *testing.T) {
	provider := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{Text: fencedReply, ChunkSize: 8})
	studio, rec := newTestStudio(t, provider, func(o *Options) { o.Debounce = time.Hour })

	studio.Submit(context.Background(), "x")

	displays := rec.ofType(EventDisplay)
	if len(displays) != 1 {
		t.Fatalf("got %d display updates, want 1", len(displays))
	}
	if !displays[0].Result.Structured() {
		t.Fatalf("result=%+v", displays[0].Result)
	}
	deltas := rec.ofType(EventDelta)
	if len(deltas) < 2 || deltas[len(deltas)-1].Raw != fencedReply {
		t.Fatalf("got %d deltas", len(deltas))
	}
}

func TestSubmitClearsDisplay(t *testing.T) {
	provider := llm.NewMockProvider("mock").
		AddTextResponse(fencedReply).
		AddTextResponse("next")
	studio, rec := newTestStudio(t, provider, nil)

	studio.Submit(context.Background(), "one")
	if studio.Display().Code == "" {
		t.Fatal("expected code after first turn")
	}
	studio.Submit(context.Background(), "two")

	started := rec.ofType(EventStarted)
	if len(started) != 2 {
		t.Fatalf("got %d started events", len(started))
	}
	if started[1].Display.Code != "" || started[1].Display.Source != "" {
		t.Fatalf("display not cleared on submit: %+v", started[1].Display)
	}
	if started[1].Turn.Content != "two" {
		t.Fatalf("started turn=%+v", started[1].Turn)
	}
}

func TestSnapshot(t *testing.T) {
	provider := llm.NewMockProvider("groq:qwen-qwq-32b").AddError(errors.New("nope"))
	studio, _ := newTestStudio(t, provider, nil)
	studio.Submit(context.Background(), "x")

	st := studio.Snapshot()
	if st.Busy || st.Provider != "groq:qwen-qwq-32b" || len(st.Turns) != 2 {
		t.Fatalf("snapshot=%+v", st)
	}
	if !strings.Contains(st.Error, "nope") {
		t.Fatalf("error=%q", st.Error)
	}
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without provider")
	}
}
