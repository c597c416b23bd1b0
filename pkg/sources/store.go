package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// sourcesFile is the YAML shape of the editable source list: tier name
// to source entries.
type sourcesFile struct {
	Tiers map[Tier][]sourceEntry `yaml:"tiers"`
}

type sourceEntry struct {
	URL       string            `yaml:"url"`
	Weight    float64           `yaml:"weight,omitempty"`
	Protocols []string          `yaml:"protocols,omitempty"`
	MinScore  float64           `yaml:"min_score,omitempty"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
}

// Store persists source metadata across two files: an editable tiered
// YAML list and an engine-managed JSON performance file. All writes are
// atomic (temp in the same directory, then rename) and serialized behind
// a single writer mutex; reads return snapshots.
type Store struct {
	sourcesPath string
	perfPath    string

	mu      sync.RWMutex
	sources map[string]*Metadata
}

// NewStore creates a store over the two source files.
func NewStore(sourcesPath, perfPath string) *Store {
	return &Store{
		sourcesPath: sourcesPath,
		perfPath:    perfPath,
		sources:     make(map[string]*Metadata),
	}
}

// Load reads both files, merging performance state into the source
// list. Missing files are not errors; the store starts empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources = make(map[string]*Metadata)

	if err := s.loadSourcesLocked(); err != nil {
		return err
	}
	return s.loadPerformanceLocked()
}

func (s *Store) loadSourcesLocked() error {
	data, err := os.ReadFile(s.sourcesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse sources file: %w", err)
	}

	for tier, entries := range file.Tiers {
		for _, entry := range entries {
			if entry.URL == "" {
				continue
			}
			weight := entry.Weight
			if weight == 0 {
				weight = defaultTierWeight(tier)
			}
			s.sources[entry.URL] = &Metadata{
				URL:       entry.URL,
				Tier:      tier,
				Weight:    weight,
				Protocols: entry.Protocols,
				MinScore:  entry.MinScore,
				Extra:     entry.Metadata,
				State:     StateNew,
			}
		}
	}
	return nil
}

func (s *Store) loadPerformanceLocked() error {
	data, err := os.ReadFile(s.perfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read performance file: %w", err)
	}

	var perf map[string]*Metadata
	if err := json.Unmarshal(data, &perf); err != nil {
		return fmt.Errorf("failed to parse performance file: %w", err)
	}

	for url, record := range perf {
		if existing, ok := s.sources[url]; ok {
			// The YAML list owns identity fields; the performance file
			// owns everything learned at runtime.
			existing.LastCheck = record.LastCheck
			existing.SuccessCount = record.SuccessCount
			existing.FailureCount = record.FailureCount
			existing.AvgResponseTime = record.AvgResponseTime
			existing.AvgConfigCount = record.AvgConfigCount
			existing.ReputationScore = record.ReputationScore
			existing.History = record.History
			existing.IsBlacklisted = record.IsBlacklisted
			existing.State = record.State
			existing.ConsecFailures = record.ConsecFailures
			existing.ConsecSuccesses = record.ConsecSuccesses
		} else {
			record.URL = url
			if record.State == "" {
				record.State = StateNew
			}
			s.sources[url] = record
		}
	}
	return nil
}

// Snapshot returns a copy of all source records.
func (s *Store) Snapshot() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Metadata, 0, len(s.sources))
	for _, m := range s.sources {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Get returns a copy of one source record.
func (s *Store) Get(url string) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.sources[url]
	if !ok {
		return Metadata{}, false
	}
	return *m, true
}

// Update applies fn to one source record under the writer lock and
// persists the performance file.
func (s *Store) Update(url string, fn func(*Metadata)) error {
	s.mu.Lock()
	m, ok := s.sources[url]
	if !ok {
		m = &Metadata{URL: url, Tier: TierExperimental, Weight: defaultTierWeight(TierExperimental), State: StateNew}
		s.sources[url] = m
	}
	fn(m)
	s.mu.Unlock()

	return s.SavePerformance()
}

// AddAtomic adds a new source and persists the YAML list. Either both
// the in-memory map and the file reflect the addition, or neither does.
func (s *Store) AddAtomic(url string, tier Tier, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[url]; ok {
		return fmt.Errorf("source %s already exists", url)
	}
	if weight <= 0 {
		weight = defaultTierWeight(tier)
	}

	m := &Metadata{URL: url, Tier: tier, Weight: weight, State: StateNew}
	s.sources[url] = m

	if err := s.saveSourcesLocked(); err != nil {
		delete(s.sources, url)
		return err
	}
	return nil
}

// Blacklist marks a source blacklisted and persists.
func (s *Store) Blacklist(url string) error {
	return s.Update(url, func(m *Metadata) { m.IsBlacklisted = true })
}

// Whitelist clears a source's blacklist flag and failure streak and
// persists.
func (s *Store) Whitelist(url string) error {
	return s.Update(url, func(m *Metadata) {
		m.IsBlacklisted = false
		m.ConsecFailures = 0
		if m.State == StateSuspended {
			m.State = StateProbation
		}
	})
}

// CleanupOlderThan removes sources not checked for the given number of
// days and persists both files. It returns the number removed.
func (s *Store) CleanupOlderThan(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	s.mu.Lock()
	removed := 0
	for url, m := range s.sources {
		if !m.LastCheck.IsZero() && m.LastCheck.Before(cutoff) {
			delete(s.sources, url)
			removed++
		}
	}
	var err error
	if removed > 0 {
		if err = s.saveSourcesLocked(); err == nil {
			err = s.savePerformanceLocked()
		}
	}
	s.mu.Unlock()
	return removed, err
}

// SaveSources persists the editable YAML list.
func (s *Store) SaveSources() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSourcesLocked()
}

// SavePerformance persists the engine-managed JSON state.
func (s *Store) SavePerformance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savePerformanceLocked()
}

func (s *Store) saveSourcesLocked() error {
	file := sourcesFile{Tiers: make(map[Tier][]sourceEntry)}
	for _, m := range s.sources {
		file.Tiers[m.Tier] = append(file.Tiers[m.Tier], sourceEntry{
			URL:       m.URL,
			Weight:    m.Weight,
			Protocols: m.Protocols,
			MinScore:  m.MinScore,
			Metadata:  m.Extra,
		})
	}
	for tier := range file.Tiers {
		entries := file.Tiers[tier]
		sort.Slice(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	return atomicWrite(s.sourcesPath, data)
}

func (s *Store) savePerformanceLocked() error {
	perf := make(map[string]*Metadata, len(s.sources))
	for url, m := range s.sources {
		perf[url] = m
	}

	data, err := json.MarshalIndent(perf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal performance state: %w", err)
	}
	return atomicWrite(s.perfPath, data)
}

// atomicWrite writes data to path via a temp file in the same directory
// with fsync before rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func defaultTierWeight(tier Tier) float64 {
	switch tier {
	case TierPremium:
		return 1.0
	case TierReliable:
		return 0.8
	case TierBulk:
		return 0.5
	case TierExperimental:
		return 0.3
	default:
		return 0.5
	}
}
