package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/telemetry/metrics"
)

// Fetcher downloads subscription bodies from untrusted HTTP sources.
//
// Every request passes three gates in order: the global concurrency
// semaphore, the per-host circuit breaker, and the per-host token bucket.
// Retryable failures (network errors, 429, 5xx) are retried with
// exponential backoff; other HTTP errors fail immediately.
type Fetcher struct {
	cfg     *config.FetcherConfig
	client  *http.Client
	limiter *HostLimiter
	breaker *Breaker
	sem     chan struct{}
	metrics *metrics.FetchMetrics
	logger  *slog.Logger
}

// New creates a fetcher from configuration. metrics may be nil.
func New(cfg *config.FetcherConfig, m *metrics.FetchMetrics, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	var onChange StateChangeFunc
	if m != nil {
		onChange = m.RecordBreakerState
	}

	limit := cfg.ConcurrentLimit
	if limit <= 0 {
		limit = 50
	}

	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: NewHostLimiter(cfg.HostRate, cfg.HostBurst),
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, onChange),
		sem:     make(chan struct{}, limit),
		metrics: m,
		logger:  logger.With("component", "fetch"),
	}, nil
}

// Breaker exposes the per-host circuit breaker, mainly for tests and the
// source validator which shares failure state with the fetcher.
func (f *Fetcher) Breaker() *Breaker {
	return f.breaker
}

// Fetch downloads one URL, retrying retryable failures with exponential
// backoff. The returned body is capped at MaxBodyBytes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	host := parsed.Hostname()

	var lastErr error
	attempts := f.cfg.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if f.metrics != nil {
				f.metrics.RecordRetry()
			}
			delay := f.backoff(attempt - 1)
			f.logger.Debug("retrying fetch",
				"url", rawURL,
				"attempt", attempt,
				"delay", delay,
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		body, err := f.fetchOnce(ctx, rawURL, host)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var boe *BreakerOpenError
		if errors.As(err, &boe) {
			// Fail fast; retrying inside the cooldown cannot succeed.
			return nil, err
		}
		if !retryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single attempt: breaker gate, rate limit wait,
// request, bounded body read.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, host string) ([]byte, error) {
	if err := f.breaker.Allow(host); err != nil {
		if f.metrics != nil {
			f.metrics.RecordRequest("breaker_open", 0, 0)
		}
		return nil, err
	}

	waited, err := f.limiter.Wait(ctx, host)
	if err != nil {
		f.breaker.ReleaseProbe(host)
		return nil, err
	}
	if f.metrics != nil {
		f.metrics.RecordRateLimitWait(waited)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.breaker.ReleaseProbe(host)
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain,text/yaml,application/yaml,application/json,*/*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.breaker.OnFailure(host)
		if f.metrics != nil {
			f.metrics.RecordRequest("error", time.Since(start), 0)
		}
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		f.breaker.OnFailure(host)
		if f.metrics != nil {
			f.metrics.RecordRequest("rate_limited", time.Since(start), 0)
		}
		return nil, &RateLimitedError{URL: rawURL, RetryAfter: parseRetryAfter(resp)}
	case resp.StatusCode >= 400:
		f.breaker.OnFailure(host)
		if f.metrics != nil {
			f.metrics.RecordRequest("error", time.Since(start), 0)
		}
		return nil, &NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	// Read one byte past the cap to detect oversized bodies.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		f.breaker.OnFailure(host)
		if f.metrics != nil {
			f.metrics.RecordRequest("error", time.Since(start), 0)
		}
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		f.breaker.OnFailure(host)
		if f.metrics != nil {
			f.metrics.RecordRequest("error", time.Since(start), len(body))
		}
		return nil, &BodyTooLargeError{URL: rawURL, Limit: f.cfg.MaxBodyBytes}
	}

	f.breaker.OnSuccess(host)
	if f.metrics != nil {
		f.metrics.RecordRequest("success", time.Since(start), len(body))
	}
	return body, nil
}

// backoff returns min(base * 2^attempt, max).
func (f *Fetcher) backoff(attempt int) time.Duration {
	base := f.cfg.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := f.cfg.MaxDelay
	if max <= 0 {
		max = 8 * time.Second
	}

	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

// retryable reports whether a fetch error is worth retrying.
func retryable(err error) bool {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return true
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		if ne.StatusCode == 0 {
			return true // transport failure
		}
		return ne.StatusCode >= 500
	}
	return false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
