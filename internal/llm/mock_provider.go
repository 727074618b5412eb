package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn scripts one streamed model reply.
type MockTurn struct {
	Text       string        // reply text, streamed in chunks of ChunkSize runes
	Chunks     []string      // explicit deltas; overrides Text when set
	ChunkSize  int           // default 16
	Delay      time.Duration // wait before the first delta
	ChunkDelay time.Duration // wait between deltas
	Err        error         // returned after the deltas (or instead of them)
	Usage      *Usage
}

// MockProvider replays scripted turns. It is used by tests and by the offline "mock" provider.
type MockProvider struct {
	name string

	mu         sync.Mutex
	turns      []MockTurn
	next       int
	repeatLast bool
	Requests   []Request
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (p *MockProvider) Name() string {
	return p.name
}

func (p *MockProvider) Credential() string {
	return "mock"
}

// AddTurn appends a scripted turn.
func (p *MockProvider) AddTurn(turn MockTurn) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turn)
	return p
}

// AddTextResponse appends a turn that streams text.
func (p *MockProvider) AddTextResponse(text string) *MockProvider {
	return p.AddTurn(MockTurn{Text: text})
}

// AddError appends a turn that fails with err.
func (p *MockProvider) AddError(err error) *MockProvider {
	return p.AddTurn(MockTurn{Err: err})
}

// RepeatLast makes the provider replay its last turn once the script is exhausted.
func (p *MockProvider) RepeatLast() *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeatLast = true
	return p
}

// CurrentTurn returns the index of the next turn to replay.
func (p *MockProvider) CurrentTurn() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// RecordedRequests returns a copy of the requests seen so far.
func (p *MockProvider) RecordedRequests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.Requests))
	copy(out, p.Requests)
	return out
}

// Reset rewinds the script and forgets recorded requests.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.Requests = nil
}

func (p *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	p.mu.Lock()
	if p.next >= len(p.turns) && !(p.repeatLast && len(p.turns) > 0) {
		p.mu.Unlock()
		return nil, fmt.Errorf("mock provider %s: no more turns configured (have %d)", p.name, len(p.turns))
	}
	turn := p.turns[min(p.next, len(p.turns)-1)]
	p.next++
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		if err := waitFor(ctx, turn.Delay); err != nil {
			return err
		}

		chunks := turn.Chunks
		if chunks == nil {
			size := turn.ChunkSize
			if size <= 0 {
				size = 16
			}
			chunks = chunkText(turn.Text, size)
		}
		for i, chunk := range chunks {
			if i > 0 {
				if err := waitFor(ctx, turn.ChunkDelay); err != nil {
					return err
				}
			}
			select {
			case events <- Event{Type: EventTextDelta, Text: chunk}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if turn.Err != nil {
			return turn.Err
		}
		usage := turn.Usage
		if usage == nil {
			usage = &Usage{InputTokens: len(req.Messages), OutputTokens: len(chunks)}
		}
		events <- Event{Type: EventUsage, Use: usage}
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return sleepContext(ctx, d)
}

// chunkText splits text into pieces of at most size runes.
func chunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
