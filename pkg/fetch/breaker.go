package fetch

import (
	"sync"
	"time"
)

// breakerState is the circuit state for a single host.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// hostBreaker tracks consecutive failures for one host.
type hostBreaker struct {
	state         breakerState
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// StateChangeFunc is notified on breaker state transitions. The state
// value matches the metrics gauge encoding (0=closed, 1=open, 2=half-open).
type StateChangeFunc func(host string, state int)

// Breaker is a per-host circuit breaker.
//
// After threshold consecutive failures a host's circuit opens and requests
// to it fail fast for the cooldown period. After the cooldown one probe
// request is let through (half-open); success closes the circuit, failure
// reopens it for another cooldown.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	onChange  StateChangeFunc

	mu    sync.Mutex
	hosts map[string]*hostBreaker
}

// NewBreaker creates a breaker opening after threshold consecutive
// failures and cooling down for cooldown. onChange may be nil.
func NewBreaker(threshold int, cooldown time.Duration, onChange StateChangeFunc) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		onChange:  onChange,
		hosts:     make(map[string]*hostBreaker),
	}
}

// Allow reports whether a request to host may proceed. When the circuit
// is open it returns a BreakerOpenError. At most one probe is allowed
// through a half-open circuit at a time.
func (b *Breaker) Allow(host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	hb, ok := b.hosts[host]
	if !ok {
		return nil
	}

	switch hb.state {
	case stateClosed:
		return nil
	case stateOpen:
		if time.Since(hb.openedAt) < b.cooldown {
			return &BreakerOpenError{Host: host, Until: hb.openedAt.Add(b.cooldown)}
		}
		hb.state = stateHalfOpen
		hb.probeInFlight = true
		b.notifyLocked(host, hb.state)
		return nil
	case stateHalfOpen:
		if hb.probeInFlight {
			return &BreakerOpenError{Host: host, Until: hb.openedAt.Add(b.cooldown)}
		}
		hb.probeInFlight = true
		return nil
	}
	return nil
}

// ReleaseProbe hands back a half-open trial slot granted by Allow when
// the request was abandoned before reaching the network. Without the
// release the slot would stay occupied and the host would never be
// retried.
func (b *Breaker) ReleaseProbe(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if hb, ok := b.hosts[host]; ok {
		hb.probeInFlight = false
	}
}

// OnSuccess records a successful request, closing the circuit.
func (b *Breaker) OnSuccess(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hb, ok := b.hosts[host]
	if !ok {
		return
	}
	prev := hb.state
	hb.state = stateClosed
	hb.failures = 0
	hb.probeInFlight = false
	if prev != stateClosed {
		b.notifyLocked(host, hb.state)
	}
}

// OnFailure records a failed request. In the closed state it opens the
// circuit once the failure threshold is reached; in half-open it reopens
// immediately.
func (b *Breaker) OnFailure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hb, ok := b.hosts[host]
	if !ok {
		hb = &hostBreaker{}
		b.hosts[host] = hb
	}

	switch hb.state {
	case stateHalfOpen:
		hb.state = stateOpen
		hb.openedAt = time.Now()
		hb.probeInFlight = false
		b.notifyLocked(host, hb.state)
	case stateClosed:
		hb.failures++
		if hb.failures >= b.threshold {
			hb.state = stateOpen
			hb.openedAt = time.Now()
			b.notifyLocked(host, hb.state)
		}
	}
}

// State returns the metrics encoding of the host's circuit state.
func (b *Breaker) State(host string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	hb, ok := b.hosts[host]
	if !ok {
		return 0
	}
	return int(hb.state)
}

// notifyLocked fires the state change callback. Caller must hold the lock;
// the callback must not call back into the breaker.
func (b *Breaker) notifyLocked(host string, state breakerState) {
	if b.onChange != nil {
		b.onChange(host, int(state))
	}
}
