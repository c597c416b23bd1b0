package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictFunc is notified when an entry leaves the L1 cache, with the
// eviction reason ("lru" or "expired").
type EvictFunc func(key, reason string)

type l1Entry struct {
	key       string
	value     string
	size      int64
	expiresAt time.Time
}

// L1 is the in-process cache tier: a strict LRU bounded by both entry
// count and estimated byte size. Expired entries are evicted lazily on
// access and periodically by a background sweeper.
type L1 struct {
	maxEntries int
	maxBytes   int64
	ttl        time.Duration
	onEvict    EvictFunc

	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element
	bytes   int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewL1 creates the L1 tier and starts its expiry sweeper.
func NewL1(maxEntries int, maxBytes int64, ttl, sweepInterval time.Duration, onEvict EvictFunc) *L1 {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = 60 * time.Second
	}

	c := &L1{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ttl:        ttl,
		onEvict:    onEvict,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	go c.sweep(sweepInterval)
	return c
}

// Get returns the cached value. Expired entries are evicted on access.
func (c *L1) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}
	entry := elem.Value.(*l1Entry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(elem, "expired")
		return "", false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set stores a value, evicting LRU entries until both bounds hold.
// Values larger than the whole byte bound are never cached; a stale
// entry under the same key is dropped instead.
func (c *L1) Set(key, value string) {
	size := int64(len(key) + len(value))

	c.mu.Lock()
	defer c.mu.Unlock()

	if size > c.maxBytes {
		if elem, ok := c.entries[key]; ok {
			c.removeLocked(elem, "lru")
		}
		return
	}

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*l1Entry)
		c.bytes += size - entry.size
		entry.value = value
		entry.size = size
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&l1Entry{
			key:       key,
			value:     value,
			size:      size,
			expiresAt: time.Now().Add(c.ttl),
		})
		c.entries[key] = elem
		c.bytes += size
	}

	for len(c.entries) > c.maxEntries || c.bytes > c.maxBytes {
		c.removeLocked(c.order.Back(), "lru")
	}
}

// Delete removes an entry.
func (c *L1) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem, "lru")
	}
}

// Len returns the current entry count.
func (c *L1) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Bytes returns the estimated memory footprint.
func (c *L1) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Close stops the sweeper.
func (c *L1) Close() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *L1) removeLocked(elem *list.Element, reason string) {
	entry := elem.Value.(*l1Entry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
	c.bytes -= entry.size
	if c.onEvict != nil {
		c.onEvict(entry.key, reason)
	}
}

// sweep periodically evicts expired entries.
func (c *L1) sweep(interval time.Duration) {
	defer close(c.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for elem := c.order.Back(); elem != nil; {
				prev := elem.Prev()
				if now.After(elem.Value.(*l1Entry).expiresAt) {
					c.removeLocked(elem, "expired")
				}
				elem = prev
			}
			c.mu.Unlock()
		}
	}
}
