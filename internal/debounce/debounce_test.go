package debounce

import (
	"sync"
	"testing"
	"time"
)

func collect() (func(string), func() []string) {
	var mu sync.Mutex
	var got []string
	return func(v string) {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}, func() []string {
			mu.Lock()
			defer mu.Unlock()
			out := make([]string, len(got))
			copy(out, got)
			return out
		}
}

func TestDebouncerLatestWins(t *testing.T) {
	fn, calls := collect()
	d := New(30*time.Millisecond, fn)

	d.Trigger("a")
	d.Trigger("ab")
	d.Trigger("abc")

	time.Sleep(150 * time.Millisecond)
	got := calls()
	if len(got) != 1 || got[0] != "abc" {
		t.Fatalf("calls=%q, want [abc]", got)
	}
}

func TestDebouncerWaitsForQuietPeriod(t *testing.T) {
	fn, calls := collect()
	d := New(80*time.Millisecond, fn)

	d.Trigger("a")
	time.Sleep(20 * time.Millisecond)
	if len(calls()) != 0 {
		t.Fatal("fired before the window elapsed")
	}
	if !d.Pending() {
		t.Fatal("expected a pending value")
	}
	time.Sleep(200 * time.Millisecond)
	if got := calls(); len(got) != 1 {
		t.Fatalf("calls=%q, want one call", got)
	}
	if d.Pending() {
		t.Fatal("value still pending after firing")
	}
}

func TestDebouncerFlush(t *testing.T) {
	fn, calls := collect()
	d := New(time.Hour, fn)

	if d.Flush() {
		t.Fatal("flush with nothing pending should report false")
	}
	d.Trigger("final")
	if !d.Flush() {
		t.Fatal("flush should run the pending value")
	}
	if got := calls(); len(got) != 1 || got[0] != "final" {
		t.Fatalf("calls=%q", got)
	}
	if d.Flush() {
		t.Fatal("second flush should be a no-op")
	}
}

func TestDebouncerFlushCancelsTimer(t *testing.T) {
	fn, calls := collect()
	d := New(20*time.Millisecond, fn)
	d.Trigger("x")
	d.Flush()
	time.Sleep(80 * time.Millisecond)
	if got := calls(); len(got) != 1 {
		t.Fatalf("calls=%q, want exactly one", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	fn, calls := collect()
	d := New(20*time.Millisecond, fn)
	d.Trigger("x")
	d.Stop()
	d.Trigger("y")
	time.Sleep(80 * time.Millisecond)
	if got := calls(); len(got) != 0 {
		t.Fatalf("calls=%q, want none after Stop", got)
	}
}

func TestDebouncerDefaultWindow(t *testing.T) {
	d := New(0, func(string) {})
	if d.window != DefaultWindow {
		t.Fatalf("window=%v, want %v", d.window, DefaultWindow)
	}
}
