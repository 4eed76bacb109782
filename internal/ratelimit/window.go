// Package ratelimit bounds outbound call volume to the routing aggregator
// with an in-memory sliding window. The engine is single-instance per key,
// so a local window is sufficient; callers that are denied must back off
// rather than poll.
package ratelimit

import (
	"sync"
	"time"
)

// Window is a sliding-window rate limiter over a fixed interval.
type Window struct {
	mu       sync.Mutex
	limit    int
	interval time.Duration
	calls    []time.Time
	now      func() time.Time
}

// NewWindow creates a limiter that allows at most limit calls per interval.
func NewWindow(limit int, interval time.Duration) *Window {
	return &Window{
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow prunes timestamps older than the window, then reports whether
// another call is permitted. Permitted calls are recorded; denied calls are
// not.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.interval)

	keep := 0
	for ; keep < len(w.calls); keep++ {
		if w.calls[keep].After(cutoff) {
			break
		}
	}
	w.calls = w.calls[keep:]

	if len(w.calls) >= w.limit {
		return false
	}
	w.calls = append(w.calls, now)
	return true
}

// Pending returns the number of calls currently counted against the window.
func (w *Window) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

// SetClock replaces the time source. Test hook.
func (w *Window) SetClock(now func() time.Time) {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
}
