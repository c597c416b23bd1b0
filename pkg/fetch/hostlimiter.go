package fetch

import (
	"context"
	"sync"
	"time"
)

// tokenBucket is a per-host token bucket. Tokens are added at a constant
// refill rate up to the burst capacity; each request consumes one token.
//
// Monotonic time is used throughout to avoid clock skew issues.
type tokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate float64) *tokenBucket {
	return &tokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity), // start full
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// take consumes one token if available.
func (tb *tokenBucket) take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// timeUntilAvailable reports how long until one token is available.
func (tb *tokenBucket) timeUntilAvailable() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens >= 1 {
		return 0
	}
	needed := 1 - tb.tokens
	return time.Duration(needed / tb.refillRate * float64(time.Second))
}

// refillLocked adds tokens based on elapsed time. Caller must hold the lock.
func (tb *tokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// HostLimiter enforces a per-host request rate. Each host gets its own
// token bucket, created on first use.
type HostLimiter struct {
	rate  float64
	burst int

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

// NewHostLimiter creates a limiter allowing rate requests per second with
// bursts up to burst per host.
func NewHostLimiter(rate float64, burst int) *HostLimiter {
	if rate <= 0 {
		rate = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &HostLimiter{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*tokenBucket),
	}
}

// Wait blocks until a token is available for the host or the context is
// cancelled. It returns the time spent waiting.
func (hl *HostLimiter) Wait(ctx context.Context, host string) (time.Duration, error) {
	bucket := hl.bucket(host)
	start := time.Now()

	for {
		if bucket.take() {
			return time.Since(start), nil
		}

		wait := bucket.timeUntilAvailable()
		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return time.Since(start), ctx.Err()
		case <-timer.C:
		}
	}
}

func (hl *HostLimiter) bucket(host string) *tokenBucket {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	bucket, ok := hl.buckets[host]
	if !ok {
		bucket = newTokenBucket(hl.burst, hl.rate)
		hl.buckets[host] = bucket
	}
	return bucket
}
