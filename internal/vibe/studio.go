// Package vibe drives a vibe-coding session: it sends each request to the model, watches
// the reply stream settle, and turns it into a chat message plus a block of markup.
package vibe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/debounce"
	"github.com/samsaffron/vibe-llm/internal/llm"
	"github.com/samsaffron/vibe-llm/internal/normalize"
	"github.com/samsaffron/vibe-llm/internal/prompt"
)

// ApologyMessage is the assistant turn recorded when the model cannot be reached.
const ApologyMessage = "Oops! Something went wrong with vibe coding..."

// DefaultTimeout bounds a single turn.
const DefaultTimeout = 30 * time.Second

var (
	ErrBusy        = errors.New("vibe: a request is already in progress")
	ErrEmptyPrompt = errors.New("vibe: prompt is empty")
	ErrEmptyReply  = errors.New("vibe: model returned no text")
)

// Display is what the code view and preview show. It is replaced as a whole.
type Display struct {
	Code      string         `json:"code"`
	Source    normalize.Kind `json:"source,omitempty"` // empty while nothing has been rendered
	UpdatedAt time.Time      `json:"updated_at"`
}

// Options configures a Studio.
type Options struct {
	Provider     llm.Provider
	Model        string
	Instructions string // system prompt; empty uses prompt.VibeSystemPrompt
	Apology      string // empty uses ApologyMessage

	Debounce        time.Duration
	Timeout         time.Duration
	Temperature     float32
	MaxOutputTokens int
	Debug           bool

	Normalizer *normalize.Normalizer
	Log        *conversation.Log
	Logger     *logrus.Entry

	// OnEvent is called for every state change, possibly from several goroutines. It must not block.
	OnEvent func(Event)
}

// Studio owns the conversation and display state of one session.
type Studio struct {
	provider   llm.Provider
	opts       Options
	normalizer *normalize.Normalizer
	log        *conversation.Log
	logger     *logrus.Entry

	mu      sync.RWMutex
	busy    bool
	display Display
	raw     string
	lastErr error
	history []llm.Message // raw model text, as sent back to the model
}

// New creates a Studio. Provider is required.
func New(opts Options) (*Studio, error) {
	if opts.Provider == nil {
		return nil, errors.New("vibe: provider is required")
	}
	if opts.Apology == "" {
		opts.Apology = ApologyMessage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Debounce <= 0 {
		opts.Debounce = debounce.DefaultWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	n := opts.Normalizer
	if n == nil {
		n = normalize.New(normalize.Options{Logger: logger})
	}
	log := opts.Log
	if log == nil {
		log = conversation.NewLog(nil)
	}
	return &Studio{
		provider:   opts.Provider,
		opts:       opts,
		normalizer: n,
		log:        log,
		logger:     logger.WithField("component", "vibe"),
	}, nil
}

// Busy reports whether a turn is in flight. Front-ends disable input while it is true.
func (s *Studio) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Display returns the current display state.
func (s *Studio) Display() Display {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// Raw returns the model text received so far for the current or last turn.
func (s *Studio) Raw() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw
}

// LastError returns the transport error behind the most recent apology, if any.
func (s *Studio) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Turns returns the chat history.
func (s *Studio) Turns() []conversation.Turn {
	return s.log.Turns()
}

// ProviderName is the provider label used for this session.
func (s *Studio) ProviderName() string {
	return s.provider.Name()
}

// Submit runs one turn to completion. Transport failures become an apology turn and
// Submit returns nil; see LastError.
func (s *Studio) Submit(ctx context.Context, request string) error {
	done, err := s.Start(ctx, request)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// Start claims the studio and runs the turn in the background. The returned channel is
// closed once the assistant turn has been recorded and the studio is idle again.
func (s *Studio) Start(ctx context.Context, request string) (<-chan struct{}, error) {
	text := prompt.UserPrompt(request)
	if text == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	s.raw = ""
	s.lastErr = nil
	s.display = Display{UpdatedAt: time.Now()}
	messages := s.buildMessagesLocked(text)
	s.history = append(s.history, llm.UserText(text))
	s.mu.Unlock()

	user := s.log.AppendUser(text)
	s.emit(Event{Type: EventStarted, Turn: user, Display: s.Display()})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.run(ctx, messages)
	}()
	return done, nil
}

func (s *Studio) buildMessagesLocked(text string) []llm.Message {
	messages := make([]llm.Message, 0, len(s.history)+2)
	messages = append(messages, llm.SystemText(prompt.SystemPrompt(s.opts.Instructions)))
	messages = append(messages, s.history...)
	messages = append(messages, llm.UserText(text))
	return messages
}

// turn tracks normalization of one streaming reply.
type turn struct {
	mu       sync.Mutex
	applied  string
	result   normalize.Result
	ran      bool
	finished bool
}

func (s *Studio) run(ctx context.Context, messages []llm.Message) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	t := &turn{}
	deb := debounce.New(s.opts.Debounce, func(raw string) { s.apply(t, raw) })
	defer deb.Stop()

	raw, err := s.stream(ctx, messages, deb)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		deb.Stop()
		t.finish()
		s.fail(err, raw)
		return
	}

	// The last value is normalized exactly once: either the debouncer still holds it,
	// or a timer already took it and apply dedups on the raw text.
	deb.Flush()
	s.apply(t, raw)
	result := t.finish()
	if empty(result) {
		s.fail(ErrEmptyReply, raw)
		return
	}

	reply := s.log.AppendAssistant(result.Conversation())

	s.mu.Lock()
	s.history = append(s.history, llm.AssistantText(raw))
	s.busy = false
	display := s.display
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"kind":     result.Kind,
		"strategy": result.Strategy,
		"chars":    len(raw),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("turn complete")
	s.emit(Event{Type: EventFinished, Turn: reply, Display: display, Result: result})
}

// stream reads the reply, feeding every growth of the text to the debouncer.
func (s *Studio) stream(ctx context.Context, messages []llm.Message, deb *debounce.Debouncer[string]) (string, error) {
	stream, err := s.provider.Stream(ctx, llm.Request{
		Model:           s.opts.Model,
		Messages:        messages,
		MaxOutputTokens: s.opts.MaxOutputTokens,
		Temperature:     s.opts.Temperature,
		Debug:           s.opts.Debug,
	})
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		switch event.Type {
		case llm.EventTextDelta:
			if event.Text == "" {
				continue
			}
			b.WriteString(event.Text)
			raw := b.String()
			s.mu.Lock()
			s.raw = raw
			s.mu.Unlock()
			deb.Trigger(raw)
			s.emit(Event{Type: EventDelta, Raw: raw, Text: event.Text})
		case llm.EventReasoningDelta:
			s.emit(Event{Type: EventReasoning, Text: event.Text})
		case llm.EventRetry:
			s.emit(Event{Type: EventRetry, Attempt: event.RetryAttempt, MaxAttempts: event.RetryMaxAttempts})
		case llm.EventUsage:
			if event.Use != nil {
				s.logger.WithFields(logrus.Fields{
					"input_tokens":  event.Use.InputTokens,
					"output_tokens": event.Use.OutputTokens,
				}).Debug("usage")
			}
		case llm.EventDone:
			return b.String(), nil
		}
	}
}

// apply normalizes raw and replaces the display. Repeated text, a prefix of text already
// applied, and calls after the turn has finished are ignored. A result with nothing to show
// (for example a reply that so far holds only reasoning) leaves the display alone.
func (s *Studio) apply(t *turn, raw string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished || (t.ran && strings.HasPrefix(t.applied, raw)) {
		return
	}
	result := s.normalizer.Normalize(raw)
	t.applied = raw
	t.result = result
	t.ran = true
	if empty(result) {
		return
	}

	display := Display{Code: result.Code(), Source: result.Kind, UpdatedAt: time.Now()}
	s.mu.Lock()
	s.display = display
	s.mu.Unlock()
	s.emit(Event{Type: EventDisplay, Display: display, Result: result})
}

func empty(result normalize.Result) bool {
	return strings.TrimSpace(result.Conversation()) == "" && strings.TrimSpace(result.Code()) == ""
}

func (t *turn) finish() normalize.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = true
	return t.result
}

func (s *Studio) fail(err error, raw string) {
	entry := s.logger.WithError(err).WithField("chars", len(raw))
	if errors.Is(err, context.Canceled) {
		entry.Info("turn cancelled")
	} else {
		entry.Error("turn failed")
	}

	apology := s.log.AppendAssistant(s.opts.Apology)

	s.mu.Lock()
	s.history = append(s.history, llm.AssistantText(s.opts.Apology))
	s.lastErr = err
	s.busy = false
	display := s.display
	s.mu.Unlock()

	s.emit(Event{Type: EventFinished, Turn: apology, Display: display, Err: err})
}

func (s *Studio) emit(event Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(event)
	}
}

// State is a consistent snapshot for front-ends that poll.
type State struct {
	Busy     bool                `json:"busy"`
	Provider string              `json:"provider"`
	Display  Display             `json:"display"`
	Raw      string              `json:"raw,omitempty"`
	Turns    []conversation.Turn `json:"turns"`
	Error    string              `json:"error,omitempty"`
}

// Snapshot returns the current state.
func (s *Studio) Snapshot() State {
	turns := s.log.Turns()
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Busy:     s.busy,
		Provider: s.provider.Name(),
		Display:  s.display,
		Turns:    turns,
	}
	if s.busy {
		st.Raw = s.raw
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}
