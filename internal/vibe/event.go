package vibe

import (
	"github.com/samsaffron/vibe-llm/internal/conversation"
	"github.com/samsaffron/vibe-llm/internal/normalize"
)

// EventType identifies a Studio state change.
type EventType string

const (
	EventStarted   EventType = "started"   // user turn recorded, display cleared
	EventDelta     EventType = "delta"     // reply text grew
	EventReasoning EventType = "reasoning" // native thinking output
	EventRetry     EventType = "retry"
	EventDisplay   EventType = "display"  // a settled prefix was normalized
	EventFinished  EventType = "finished" // assistant turn recorded, studio idle
)

// Event describes one state change of a Studio.
type Event struct {
	Type EventType

	Raw  string // accumulated reply text (EventDelta)
	Text string // new text (EventDelta, EventReasoning)

	Display Display
	Result  normalize.Result
	Turn    conversation.Turn // EventStarted: user turn; EventFinished: assistant turn
	Err     error             // EventFinished after a transport failure

	Attempt     int
	MaxAttempts int
}
