// Package debounce delays a call until its input has stopped changing.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is how long a value must stay unchanged before it is considered stable.
const DefaultWindow = 500 * time.Millisecond

// Debouncer runs fn with the most recent triggered value once no newer trigger has arrived
// for the configured window. Pending values are replaced, never queued.
type Debouncer[T any] struct {
	window time.Duration
	fn     func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	value   T
	stopped bool
}

// New creates a Debouncer. A non-positive window uses DefaultWindow.
func New[T any](window time.Duration, fn func(T)) *Debouncer[T] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer[T]{window: window, fn: fn}
}

// Trigger records value and restarts the quiet-period timer.
func (d *Debouncer[T]) Trigger(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.value = value
	d.pending = true
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.gen != gen || !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	value := d.take()
	d.mu.Unlock()
	d.fn(value)
}

// take clears the pending value. Callers hold d.mu.
func (d *Debouncer[T]) take() T {
	value := d.value
	var zero T
	d.value = zero
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return value
}

// Flush runs fn immediately with the pending value, if any, and reports whether it ran.
// fn runs on the caller's goroutine.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return false
	}
	value := d.take()
	d.mu.Unlock()
	d.fn(value)
	return true
}

// Pending reports whether a value is waiting for its window to elapse.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop drops any pending value. Later triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
	d.stopped = true
}
