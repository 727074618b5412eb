package llm

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Provider streams model output events for a request.
type Provider interface {
	Name() string
	Credential() string // credential source for debugging, e.g. "api_key", "env", "none"
	Stream(ctx context.Context, req Request) (Stream, error)
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Request represents a single model turn.
type Request struct {
	Model           string
	Messages        []Message
	MaxOutputTokens int
	Temperature     float32
	Debug           bool
}

// Role identifies a message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the prompt sent to the model.
type Message struct {
	Role Role
	Text string
}

// EventType describes streaming events.
type EventType string

const (
	EventTextDelta      EventType = "text_delta"
	EventReasoningDelta EventType = "reasoning_delta" // native thinking output, never part of the reply text
	EventUsage          EventType = "usage"
	EventDone           EventType = "done"
	EventError          EventType = "error"
	EventRetry          EventType = "retry" // emitted when retrying after a transient failure
)

// Event represents a streamed output update.
type Event struct {
	Type EventType
	Text string
	Use  *Usage
	Err  error
	// Retry fields (for EventRetry)
	RetryAttempt     int
	RetryMaxAttempts int
	RetryWaitSecs    float64
}

// Usage captures token usage if available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ModelInfo represents a model available from a provider.
type ModelInfo struct {
	ID      string
	Created int64
	OwnedBy string
}

func SystemText(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// chooseModel prefers the per-request model over the provider default.
func chooseModel(requested, fallback string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return fallback
}

// splitSystem separates system text from the chat messages, for APIs that take the
// system prompt out of band.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if msg.Text != "" {
				system = append(system, msg.Text)
			}
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(system, "\n\n"), rest
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// logStreamRequest records an outgoing request at debug level.
func logStreamRequest(provider string, fields logrus.Fields) {
	logrus.WithField("component", "llm").
		WithField("provider", provider).
		WithFields(fields).
		Debug("stream request")
}
