package chat

import "github.com/samsaffron/vibe-llm/internal/vibe"

// EventBridge forwards Studio events into the bubbletea loop. Send never blocks; when
// the buffer is full the event is dropped, since the model re-reads Studio state on
// every wakeup anyway.
type EventBridge struct {
	ch chan vibe.Event
}

// NewEventBridge creates a bridge with the given buffer size.
func NewEventBridge(size int) *EventBridge {
	if size <= 0 {
		size = 256
	}
	return &EventBridge{ch: make(chan vibe.Event, size)}
}

// Send is suitable as vibe.Options.OnEvent.
func (b *EventBridge) Send(e vibe.Event) {
	select {
	case b.ch <- e:
	default:
	}
}

// C returns the receive side.
func (b *EventBridge) C() <-chan vibe.Event {
	return b.ch
}
