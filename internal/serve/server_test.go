package serve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/samsaffron/vibe-llm/internal/clipboard"
	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/llm"
	"github.com/samsaffron/vibe-llm/internal/session"
	"github.com/samsaffron/vibe-llm/internal/speech"
	"github.com/samsaffron/vibe-llm/internal/vibe"
)

const reply = "```json\n" +
	`{"conversation": "You wanted **blue**. Here is red.", "code": "<div class=\"circle\">hi</div>"}` +
	"\n```"

type stubSpeaker struct {
	spoken []string
	err    error
}

func (s *stubSpeaker) Speak(_ context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *stubSpeaker) Speaking() bool { return false }

type fixture struct {
	server   *Server
	handler  http.Handler
	studio   *vibe.Studio
	provider *llm.MockProvider
	copier   *clipboard.MemoryCopier
	speaker  *stubSpeaker
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	provider := llm.NewMockProvider("mock")
	store, err := session.NewMemoryStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	studio, err := vibe.New(vibe.Options{
		Provider: provider,
		Debounce: 10 * time.Millisecond,
		Log:      conversation.NewLog(store),
		Logger:   entry,
	})
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{studio: studio, provider: provider, copier: &clipboard.MemoryCopier{}, speaker: &stubSpeaker{}}
	opts := Options{
		Studio:  studio,
		Store:   store,
		Copier:  f.copier,
		Speaker: f.speaker,
		Logger:  entry,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	f.server = srv
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func (f *fixture) waitIdle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for f.studio.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("studio still busy")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestNewRequiresStudio(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestIndexAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("index status=%d type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := f.do(http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
}

func TestChatFlow(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.AddTextResponse(reply)

	rec := f.do(http.MethodPost, "/api/chat", `{"prompt":"make a blue square"}`, jsonHeaders)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("chat status=%d body=%s", rec.Code, rec.Body)
	}
	f.waitIdle(t)

	rec = f.do(http.MethodGet, "/api/state", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state status=%d", rec.Code)
	}
	var state struct {
		Busy  bool `json:"busy"`
		Turns []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			HTML    string `json:"html"`
		} `json:"turns"`
		Display struct {
			Code string `json:"code"`
		} `json:"display"`
		CodeHTML string `json:"code_html"`
	}
	decodeBody(t, rec, &state)
	if state.Busy || len(state.Turns) != 2 {
		t.Fatalf("state=%+v", state)
	}
	if state.Turns[0].HTML != "<p>make a blue square</p>" {
		t.Fatalf("user html=%q", state.Turns[0].HTML)
	}
	if !strings.Contains(state.Turns[1].HTML, "<strong>blue</strong>") {
		t.Fatalf("assistant html=%q", state.Turns[1].HTML)
	}
	if state.Display.Code != `<div class="circle">hi</div>` {
		t.Fatalf("code=%q", state.Display.Code)
	}
	if state.CodeHTML == "" {
		t.Fatal("code_html empty")
	}

	rec = f.do(http.MethodGet, "/api/code", "", nil)
	if rec.Body.String() != `<div class="circle">hi</div>` {
		t.Fatalf("code body=%q", rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/preview", "", nil)
	if rec.Header().Get("Content-Security-Policy") != "sandbox allow-scripts" {
		t.Fatalf("csp=%q", rec.Header().Get("Content-Security-Policy"))
	}
	if !strings.Contains(rec.Body.String(), `<div class="circle">hi</div>`) {
		t.Fatalf("preview=%q", rec.Body.String())
	}
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		method  string
		body    string
		headers map[string]string
		want    int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"no content type", http.MethodPost, `{"prompt":"x"}`, nil, http.StatusUnsupportedMediaType},
		{"bad json", http.MethodPost, `{"prompt":`, jsonHeaders, http.StatusBadRequest},
		{"two objects", http.MethodPost, `{"prompt":"a"}{"prompt":"b"}`, jsonHeaders, http.StatusBadRequest},
		{"empty prompt", http.MethodPost, `{"prompt":"   "}`, jsonHeaders, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, "/api/chat", tt.body, tt.headers)
			if rec.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.want, rec.Body)
			}
		})
	}
	if len(f.studio.Turns()) != 0 {
		t.Fatal("rejected requests must not add turns")
	}
}

func TestChatBusy(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.AddTurn(llm.MockTurn{Text: reply, Delay: 200 * time.Millisecond})

	if rec := f.do(http.MethodPost, "/api/chat", `{"prompt":"one"}`, jsonHeaders); rec.Code != http.StatusAccepted {
		t.Fatalf("first status=%d", rec.Code)
	}
	rec := f.do(http.MethodPost, "/api/chat", `{"prompt":"two"}`, jsonHeaders)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second status=%d", rec.Code)
	}
	f.waitIdle(t)
	if n := len(f.studio.Turns()); n != 2 {
		t.Fatalf("turns=%d, want 2", n)
	}
}

func TestCopyAndRead(t *testing.T) {
	f := newFixture(t, nil)

	if rec := f.do(http.MethodPost, "/api/copy", "", nil); rec.Code != http.StatusConflict {
		t.Fatalf("copy with no code status=%d", rec.Code)
	}

	f.provider.AddTextResponse(reply)
	if err := f.studio.Submit(context.Background(), "square"); err != nil {
		t.Fatal(err)
	}

	if rec := f.do(http.MethodPost, "/api/copy", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("copy status=%d body=%s", rec.Code, rec.Body)
	}
	if got, ok := f.copier.Last(); !ok || got != `<div class="circle">hi</div>` {
		t.Fatalf("copied=%q", got)
	}

	if rec := f.do(http.MethodPost, "/api/read", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("read status=%d", rec.Code)
	}
	if len(f.speaker.spoken) != 1 {
		t.Fatalf("spoken=%v", f.speaker.spoken)
	}

	f.speaker.err = speech.ErrBusy
	if rec := f.do(http.MethodPost, "/api/read", "", nil); rec.Code != http.StatusConflict {
		t.Fatalf("busy read status=%d", rec.Code)
	}
}

func TestOptionalFeaturesUnavailable(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Copier = nil
		o.Speaker = nil
		o.Store = nil
	})
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/copy"},
		{http.MethodPost, "/api/read"},
		{http.MethodGet, "/api/search?q=x"},
	} {
		if rec := f.do(tc.method, tc.path, "", nil); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s status=%d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.AddTextResponse(reply)
	if err := f.studio.Submit(context.Background(), "make a purple spinner"); err != nil {
		t.Fatal(err)
	}

	if rec := f.do(http.MethodGet, "/api/search", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing q status=%d", rec.Code)
	}

	rec := f.do(http.MethodGet, "/api/search?q=purple", "", nil)
	var body struct {
		Results []session.SearchResult `json:"results"`
	}
	decodeBody(t, rec, &body)
	if len(body.Results) != 1 || !strings.Contains(body.Results[0].Snippet, "purple") {
		t.Fatalf("results=%+v", body.Results)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Token = "s3cret" })

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"no token", "/api/state", nil, http.StatusUnauthorized},
		{"wrong token", "/api/state", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"bearer", "/api/state", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"query token", "/preview?token=s3cret", nil, http.StatusOK},
		{"preview without token", "/preview", nil, http.StatusUnauthorized},
		{"index is public", "/", nil, http.StatusOK},
		{"health is public", "/healthz", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(http.MethodGet, tt.path, "", tt.headers); rec.Code != tt.want {
				t.Fatalf("status=%d want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Host = "127.0.0.1"; o.Port = 0 })
	if err := f.server.Start(); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get("http://" + f.server.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.server.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}
