package dedup

import (
	"github.com/bits-and-blooms/bloom/v3"

	"streamline-hq/streamline/pkg/vpncfg"
)

// Deduplicator is a semantic set over parsed configs. A Bloom filter
// front rejects definite non-members cheaply; ambiguous "possibly
// present" answers fall through to the authoritative hash set.
//
// Not safe for concurrent use; each run owns its own Deduplicator.
type Deduplicator struct {
	filter *bloom.BloomFilter
	seen   map[vpncfg.Hash]struct{}
	order  []*vpncfg.ConfigResult
}

// New creates a deduplicator sized for the expected capacity at the
// target false positive rate.
func New(capacity uint, fpr float64) *Deduplicator {
	if capacity == 0 {
		capacity = 1_000_000
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = 0.01
	}
	return &Deduplicator{
		filter: bloom.NewWithEstimates(capacity, fpr),
		seen:   make(map[vpncfg.Hash]struct{}),
	}
}

// Add inserts a config if its semantic hash is new. It reports whether
// the config was added.
func (d *Deduplicator) Add(result *vpncfg.ConfigResult) bool {
	key := result.SemanticHash[:]

	if d.filter.Test(key) {
		// Possible member; confirm against the authoritative set.
		if _, ok := d.seen[result.SemanticHash]; ok {
			return false
		}
	}

	d.filter.Add(key)
	d.seen[result.SemanticHash] = struct{}{}
	d.order = append(d.order, result)
	return true
}

// Contains reports whether a hash is already in the set.
func (d *Deduplicator) Contains(hash vpncfg.Hash) bool {
	if !d.filter.Test(hash[:]) {
		return false
	}
	_, ok := d.seen[hash]
	return ok
}

// Unique returns the deduplicated configs in stable insertion order.
func (d *Deduplicator) Unique() []*vpncfg.ConfigResult {
	return d.order
}

// Len returns the number of unique configs.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
