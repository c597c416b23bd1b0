package events

import (
	"sync"
	"time"
)

// Aggregator coalesces high-frequency events for dashboard consumers.
// It forwards at most one snapshot per interval; intermediate events only
// update the pending snapshot. Terminal events (RUN_DONE, ERROR_OCCURRED)
// force an immediate flush.
type Aggregator struct {
	interval time.Duration
	forward  func(Event)

	mu        sync.Mutex
	pending   *Event
	lastFlush time.Time
}

// NewAggregator creates an aggregator forwarding to the given function at
// most once per interval.
func NewAggregator(interval time.Duration, forward func(Event)) *Aggregator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Aggregator{
		interval: interval,
		forward:  forward,
	}
}

// Handle is a Subscriber that throttles the event stream.
func (a *Aggregator) Handle(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	forced := event.Type == RunDone || event.Type == ErrorOccurred

	if forced || time.Since(a.lastFlush) >= a.interval {
		if a.pending != nil && a.pending.Type != event.Type {
			a.forward(*a.pending)
		}
		a.forward(event)
		a.pending = nil
		a.lastFlush = time.Now()
		return
	}

	a.pending = &event
}

// Flush forwards any pending snapshot immediately.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending != nil {
		a.forward(*a.pending)
		a.pending = nil
		a.lastFlush = time.Now()
	}
}
