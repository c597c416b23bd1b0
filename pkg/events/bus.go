package events

import (
	"log/slog"
	"sync"
	"time"
)

// Bus is an in-process publish/subscribe event bus.
//
// A single consumer goroutine drains a bounded queue and dispatches each
// event to all subscribers in registration order. Delivery is best-effort
// and at-most-once: a full queue makes publishers wait up to the publish
// timeout, after which the event is dropped and counted. Events from one
// publisher are delivered in publish order; no order is guaranteed across
// publishers.
//
// Subscriber panics are caught and logged so one bad subscriber cannot
// take down the dispatch loop.
type Bus struct {
	queue          chan Event
	publishTimeout time.Duration
	logger         *slog.Logger

	mu          sync.RWMutex
	subscribers []Subscriber
	closed      bool

	dropped   int64
	droppedMu sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// Subscriber receives events from the bus dispatch loop.
type Subscriber func(Event)

// NewBus creates a bus with the given queue size and publish timeout and
// starts its dispatch loop.
func NewBus(queueSize int, publishTimeout time.Duration, logger *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if publishTimeout <= 0 {
		publishTimeout = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bus{
		queue:          make(chan Event, queueSize),
		publishTimeout: publishTimeout,
		logger:         logger.With("component", "events.bus"),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	go b.run()
	return b
}

// Subscribe registers a subscriber. Subscribers registered after an event
// was dispatched do not receive it.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish enqueues an event, stamping its timestamp if unset. When the
// queue is full it waits up to the publish timeout, then drops the event.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return
	}

	select {
	case b.queue <- event:
	default:
		// Queue full: bounded wait, then drop.
		timer := time.NewTimer(b.publishTimeout)
		defer timer.Stop()
		select {
		case b.queue <- event:
		case <-timer.C:
			b.droppedMu.Lock()
			b.dropped++
			b.droppedMu.Unlock()
			b.logger.Warn("event dropped, queue full", "type", event.Type)
		}
	}
}

// Emit is a convenience wrapper building and publishing an event.
func (b *Bus) Emit(t Type, source string, data map[string]any) {
	b.Publish(Event{Type: t, Source: source, Data: data})
}

// Dropped returns the number of events dropped due to a full queue.
func (b *Bus) Dropped() int64 {
	b.droppedMu.Lock()
	defer b.droppedMu.Unlock()
	return b.dropped
}

// Close stops the dispatch loop after draining queued events. Publishes
// after Close are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
}

// run is the single consumer dispatch loop.
func (b *Bus) run() {
	defer close(b.doneCh)

	for {
		select {
		case <-b.stopCh:
			// Drain remaining events before exit.
			for {
				select {
				case event := <-b.queue:
					b.dispatch(event)
				default:
					return
				}
			}
		case event := <-b.queue:
			b.dispatch(event)
		}
	}
}

// dispatch delivers one event to all subscribers, isolating panics.
func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("subscriber panicked",
						"type", event.Type,
						"panic", r,
					)
				}
			}()
			sub(event)
		}()
	}
}
