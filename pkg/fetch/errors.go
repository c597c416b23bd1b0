package fetch

import (
	"fmt"
	"time"
)

// NetworkError wraps a transport or protocol failure for a fetch.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RateLimitedError indicates the remote host answered 429.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("fetch %s: rate limited, retry after %s", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("fetch %s: rate limited", e.URL)
}

// BreakerOpenError indicates the per-host circuit breaker rejected the
// request without attempting it.
type BreakerOpenError struct {
	Host  string
	Until time.Time
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("host %s: circuit open until %s", e.Host, e.Until.Format(time.RFC3339))
}

// BodyTooLargeError indicates the response body exceeded the configured
// byte cap.
type BodyTooLargeError struct {
	URL   string
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("fetch %s: body exceeds %d bytes", e.URL, e.Limit)
}
