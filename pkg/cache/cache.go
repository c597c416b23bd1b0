package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/telemetry/metrics"
)

// CacheError wraps an L2 tier failure. L2 errors are always non-fatal;
// callers treat them as misses.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Cache is the tiered cache: an in-process L1 LRU fronting an optional
// redis L2. Set writes through to both tiers; Get probes L1 first, then
// L2, promoting L2 hits into L1.
type Cache struct {
	l1      *L1
	l2      *redis.Client
	ttl     time.Duration
	timeout time.Duration
	stats   *Stats
	metrics *metrics.CacheMetrics
	logger  *slog.Logger
}

// New creates the tiered cache. metrics may be nil. When the L2 tier is
// disabled the cache runs purely in-process.
func New(cfg *config.CacheConfig, m *metrics.CacheMetrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	stats := NewStats()
	c := &Cache{
		ttl:     cfg.TTL,
		timeout: cfg.L2Timeout,
		stats:   stats,
		metrics: m,
		logger:  logger.With("component", "cache"),
	}
	c.l1 = NewL1(cfg.L1MaxEntries, cfg.L1MaxBytes, cfg.TTL, cfg.SweepInterval, func(key, reason string) {
		stats.RecordEviction("l1")
		if m != nil {
			m.RecordEviction("l1", reason)
		}
	})

	if cfg.L2Enabled {
		c.l2 = redis.NewClient(&redis.Options{
			Addr:     cfg.L2Address,
			Password: cfg.L2Password,
			DB:       cfg.L2DB,
		})
	}

	return c
}

// Get returns the cached value for key, probing L1 then L2. An L2 hit is
// promoted into L1.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if value, ok := c.l1.Get(key); ok {
		c.stats.RecordHit("l1")
		if c.metrics != nil {
			c.metrics.RecordHit("l1")
		}
		return value, true
	}
	c.stats.RecordMiss("l1")
	if c.metrics != nil {
		c.metrics.RecordMiss("l1")
	}

	if c.l2 == nil {
		return "", false
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, err := c.l2.Get(opCtx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.recordL2Error("get", err)
		}
		c.stats.RecordMiss("l2")
		if c.metrics != nil {
			c.metrics.RecordMiss("l2")
		}
		return "", false
	}

	c.stats.RecordHit("l2")
	if c.metrics != nil {
		c.metrics.RecordHit("l2")
	}
	c.l1.Set(key, value)
	return value, true
}

// Set writes through to both tiers. L2 failures are logged and counted,
// never returned.
func (c *Cache) Set(ctx context.Context, key, value string) {
	c.l1.Set(key, value)

	if c.l2 == nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.l2.Set(opCtx, key, value, c.ttl).Err(); err != nil {
		c.recordL2Error("set", err)
	}
}

// Delete removes a key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.l1.Delete(key)

	if c.l2 == nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.l2.Del(opCtx, key).Err(); err != nil {
		c.recordL2Error("delete", err)
	}
}

// Stats returns the cache's counters.
func (c *Cache) Stats() *Stats {
	return c.stats
}

// Close stops the L1 sweeper and closes the L2 connection.
func (c *Cache) Close() error {
	c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}

func (c *Cache) recordL2Error(op string, err error) {
	c.stats.RecordError("l2")
	if c.metrics != nil {
		c.metrics.RecordError("l2")
	}
	c.logger.Warn("l2 cache operation failed", "op", op, "error", &CacheError{Op: op, Err: err})
}
