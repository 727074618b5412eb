package llm

import (
	"context"
	"io"
	"strings"
	"sync"
)

// eventStream adapts a producer goroutine to the Stream interface.
type eventStream struct {
	events chan Event
	cancel context.CancelFunc

	mu   sync.Mutex
	err  error
	once sync.Once
}

// newEventStream runs produce in a goroutine. Whatever produce sends is delivered by Recv;
// a non-nil return value is delivered as the final error, otherwise Recv ends with io.EOF.
func newEventStream(ctx context.Context, produce func(ctx context.Context, events chan<- Event) error) *eventStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event, 16),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		err := produce(ctx, s.events)
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	event, ok := <-s.events
	if ok {
		if event.Type == EventError && event.Err != nil {
			return event, event.Err
		}
		return event, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Event{}, s.err
	}
	return Event{}, io.EOF
}

// Close cancels the producer and drains anything it already queued.
func (s *eventStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		go func() {
			for range s.events {
			}
		}()
	})
	return nil
}

// CollectText drains stream and returns the concatenated text deltas.
func CollectText(stream Stream) (string, error) {
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
		if event.Type == EventTextDelta {
			b.WriteString(event.Text)
		}
	}
}
