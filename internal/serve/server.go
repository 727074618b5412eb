// Package serve hosts the web front-end: one conversation, driven from the browser.
package serve

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/samsaffron/vibe-llm/internal/clipboard"
	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/preview"
	"github.com/samsaffron/vibe-llm/internal/serveui"
	"github.com/samsaffron/vibe-llm/internal/session"
	"github.com/samsaffron/vibe-llm/internal/speech"
	"github.com/samsaffron/vibe-llm/internal/ui"
	"github.com/samsaffron/vibe-llm/internal/vibe"
)

// Options configures a Server. Studio is required.
type Options struct {
	Host  string
	Port  int
	Token string // optional bearer token for /api and /preview

	Studio      *vibe.Studio
	Store       session.Store    // nil disables /api/search
	Copier      clipboard.Copier // nil disables /api/copy
	Speaker     speech.Speaker   // nil disables /api/read
	Highlighter *ui.Highlighter
	Logger      *logrus.Entry
}

// Server is the HTTP front-end.
type Server struct {
	opts     Options
	studio   *vibe.Studio
	markdown goldmark.Markdown
	log      *logrus.Entry

	server   *http.Server
	listener net.Listener
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// New creates a server. Call Start to begin listening, or use Handler directly.
func New(opts Options) (*Server, error) {
	if opts.Studio == nil {
		return nil, errors.New("serve: studio is required")
	}
	if opts.Highlighter == nil {
		opts.Highlighter = ui.CodeHighlighter()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		studio: opts.Studio,
		// Raw HTML in chat turns is dropped; only the preview runs model markup.
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log:      log.WithField("component", "serve"),
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/state", s.auth(s.handleState))
	mux.HandleFunc("/api/chat", s.auth(s.handleChat))
	mux.HandleFunc("/api/code", s.auth(s.handleCode))
	mux.HandleFunc("/api/copy", s.auth(s.handleCopy))
	mux.HandleFunc("/api/read", s.auth(s.handleRead))
	mux.HandleFunc("/api/search", s.auth(s.handleSearch))
	mux.Handle("/preview", s.auth(preview.Handler(func() string {
		return s.studio.Display().Code
	}).ServeHTTP))
	mux.HandleFunc("/", s.handleUI)

	return s.logRequests(mux)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("server stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("listening")
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop cancels any running turn and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(serveui.IndexHTML())
}

type turnView struct {
	Role      conversation.Role `json:"role"`
	Content   string            `json:"content"`
	HTML      string            `json:"html"`
	CreatedAt time.Time         `json:"created_at"`
}

type stateView struct {
	vibe.State
	Turns    []turnView `json:"turns"`
	CodeHTML string     `json:"code_html,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	st := s.studio.Snapshot()
	view := stateView{State: st, Turns: make([]turnView, 0, len(st.Turns))}
	for _, turn := range st.Turns {
		view.Turns = append(view.Turns, turnView{
			Role:      turn.Role,
			Content:   turn.Content,
			HTML:      s.renderTurn(turn),
			CreatedAt: turn.CreatedAt,
		})
	}
	if st.Display.Code != "" {
		html, err := s.opts.Highlighter.HTML(st.Display.Code)
		if err != nil {
			s.log.WithError(err).Warn("highlight failed")
		} else {
			view.CodeHTML = html
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// renderTurn converts a chat turn to HTML. User text is escaped verbatim; assistant
// text is markdown.
func (s *Server) renderTurn(turn conversation.Turn) string {
	if turn.Role == conversation.RoleUser {
		return "<p>" + htmlEscape(turn.Content) + "</p>"
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(turn.Content), &buf); err != nil {
		return "<p>" + htmlEscape(turn.Content) + "</p>"
	}
	return buf.String()
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if err := requireJSONContentType(r); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	var req chatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err := s.studio.Start(s.baseCtx, req.Prompt)
	switch {
	case errors.Is(err, vibe.ErrBusy):
		writeError(w, http.StatusConflict, "a request is already in progress")
		return
	case errors.Is(err, vibe.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, s.studio.Display().Code)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if s.opts.Copier == nil {
		writeError(w, http.StatusServiceUnavailable, "clipboard is not available")
		return
	}
	if err := s.opts.Copier.Copy(s.studio.Display().Code); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, clipboard.ErrEmpty) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "copied",
		"indicator_ms": clipboard.CopiedIndicatorDuration.Milliseconds(),
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if s.opts.Speaker == nil {
		writeError(w, http.StatusServiceUnavailable, speech.ErrUnavailable.Error())
		return
	}
	err := s.opts.Speaker.Speak(r.Context(), s.studio.Display().Code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "done"})
	case errors.Is(err, speech.ErrBusy), errors.Is(err, speech.ErrEmpty):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	if s.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "search is disabled")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := s.opts.Store.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []session.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// auth requires the bearer token on every request when one is configured. Browsers
// loading the preview iframe may pass it as ?token= instead.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.opts.Token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		got := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, prefix) {
			got = strings.TrimSpace(strings.TrimPrefix(h, prefix))
		} else if r.Method == http.MethodGet {
			got = r.URL.Query().Get("token")
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid authentication credentials")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Microsecond),
		}).Debug("request")
	})
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func requireJSONContentType(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("invalid Content-Type header")
	}
	if mediaType != "application/json" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	return nil
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;", "\n", "<br>")

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}
