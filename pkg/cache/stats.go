package cache

import "sync"

// TierStats holds per-tier counters.
type TierStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Errors    int64 `json:"errors"`
}

// HitRate returns hits/(hits+misses), or 0 with no lookups.
func (s TierStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats aggregates counters across cache tiers.
type Stats struct {
	mu    sync.Mutex
	tiers map[string]*TierStats
}

// NewStats creates empty cache statistics.
func NewStats() *Stats {
	return &Stats{tiers: make(map[string]*TierStats)}
}

// RecordHit counts a hit for a tier.
func (s *Stats) RecordHit(tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tierLocked(tier).Hits++
}

// RecordMiss counts a miss for a tier.
func (s *Stats) RecordMiss(tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tierLocked(tier).Misses++
}

// RecordEviction counts an eviction for a tier.
func (s *Stats) RecordEviction(tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tierLocked(tier).Evictions++
}

// RecordError counts an operation error for a tier.
func (s *Stats) RecordError(tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tierLocked(tier).Errors++
}

// Tier returns a snapshot of one tier's counters.
func (s *Stats) Tier(tier string) TierStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tierLocked(tier)
}

func (s *Stats) tierLocked(tier string) *TierStats {
	ts, ok := s.tiers[tier]
	if !ok {
		ts = &TierStats{}
		s.tiers[tier] = ts
	}
	return ts
}
