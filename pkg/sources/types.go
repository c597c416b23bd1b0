package sources

import (
	"time"
)

// Tier classifies sources by expected quality.
type Tier string

const (
	TierPremium      Tier = "premium"
	TierReliable     Tier = "reliable"
	TierBulk         Tier = "bulk"
	TierExperimental Tier = "experimental"
)

// State is the source reputation FSM state.
type State string

const (
	StateNew       State = "new"
	StateProbation State = "probation"
	StateTrusted   State = "trusted"
	StateSuspended State = "suspended"
)

// CheckRecord is one entry in a source's bounded check history.
type CheckRecord struct {
	TS      time.Time `json:"ts"`
	Success bool      `json:"success"`
}

// Metadata is the persistent per-URL source record. The validator and
// tester callbacks are the only mutators; the store persists it
// atomically after each update.
type Metadata struct {
	URL             string            `json:"url" yaml:"url"`
	Tier            Tier              `json:"tier" yaml:"tier"`
	Weight          float64           `json:"weight" yaml:"weight"`
	Protocols       []string          `json:"protocols,omitempty" yaml:"protocols,omitempty"`
	UpdateFrequency time.Duration     `json:"update_frequency,omitempty" yaml:"update_frequency,omitempty"`
	LastCheck       time.Time         `json:"last_check,omitempty" yaml:"-"`
	SuccessCount    int               `json:"success_count" yaml:"-"`
	FailureCount    int               `json:"failure_count" yaml:"-"`
	AvgResponseTime float64           `json:"avg_response_time_s" yaml:"-"`
	AvgConfigCount  float64           `json:"avg_config_count" yaml:"-"`
	ReputationScore float64           `json:"reputation_score" yaml:"-"`
	History         []CheckRecord     `json:"history,omitempty" yaml:"-"`
	IsBlacklisted   bool              `json:"is_blacklisted" yaml:"-"`
	State           State             `json:"state" yaml:"-"`
	ConsecFailures  int               `json:"consec_failures" yaml:"-"`
	ConsecSuccesses int               `json:"consec_successes" yaml:"-"`
	MinScore        float64           `json:"-" yaml:"min_score,omitempty"`
	Extra           map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// RecordCheck appends one check outcome, updating counters, consecutive
// streaks, rolling averages, and the bounded history ring. responseTime
// and configCount only contribute on success.
func (m *Metadata) RecordCheck(success bool, responseTime float64, configCount int, historyLimit int) {
	if historyLimit <= 0 {
		historyLimit = 100
	}

	m.LastCheck = time.Now()
	m.History = append(m.History, CheckRecord{TS: m.LastCheck, Success: success})
	if len(m.History) > historyLimit {
		m.History = m.History[len(m.History)-historyLimit:]
	}

	if success {
		m.SuccessCount++
		m.ConsecSuccesses++
		m.ConsecFailures = 0
		m.AvgResponseTime = rollingAvg(m.AvgResponseTime, responseTime, m.SuccessCount)
		m.AvgConfigCount = rollingAvg(m.AvgConfigCount, float64(configCount), m.SuccessCount)
	} else {
		m.FailureCount++
		m.ConsecFailures++
		m.ConsecSuccesses = 0
	}

	// Automatic blacklist for chronically failing sources.
	if m.FailureCount > 10 && float64(m.SuccessCount) < 0.2*float64(m.FailureCount) {
		m.IsBlacklisted = true
	}
}

// SuccessRate returns successes over total checks, or 0 with no checks.
func (m *Metadata) SuccessRate() float64 {
	total := m.SuccessCount + m.FailureCount
	if total == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(total)
}

// recentSuccessRate computes the success rate over the last n history
// entries.
func (m *Metadata) recentSuccessRate(n int) (float64, bool) {
	if len(m.History) == 0 {
		return 0, false
	}
	start := len(m.History) - n
	if start < 0 {
		start = 0
	}
	window := m.History[start:]
	ok := 0
	for _, rec := range window {
		if rec.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(window)), true
}

func rollingAvg(avg, sample float64, n int) float64 {
	if n <= 1 {
		return sample
	}
	return avg + (sample-avg)/float64(n)
}
