package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunDurations breaks a run's wall time down by stage, in seconds.
type RunDurations struct {
	Total    float64 `json:"total"`
	Discover float64 `json:"discover"`
	Validate float64 `json:"validate"`
	Fetch    float64 `json:"fetch"`
	Output   float64 `json:"output"`
}

// RunRecord is the compact per-run summary appended to the durable run
// log.
type RunRecord struct {
	RunID        string       `json:"run_id"`
	TS           time.Time    `json:"ts"`
	Status       string       `json:"status"`
	TotalConfigs int          `json:"total_configs"`
	Reachable    int          `json:"reachable"`
	Sources      int          `json:"sources"`
	Durations    RunDurations `json:"durations"`
}

// RunLog appends RunRecord entries to a JSONL file. When the file grows
// beyond maxBytes it is pruned to its most recent half. Appends are
// serialized behind a mutex.
type RunLog struct {
	path     string
	maxBytes int64
	mu       sync.Mutex
}

// NewRunLog creates a run log writing to path, pruning beyond maxBytes.
func NewRunLog(path string, maxBytes int64) *RunLog {
	return &RunLog{
		path:     path,
		maxBytes: maxBytes,
	}
}

// Append writes one record as a JSON line and prunes if oversized.
func (rl *RunLog) Append(record RunRecord) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	f, err := os.OpenFile(rl.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to append run record: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close run log: %w", err)
	}

	return rl.pruneLocked()
}

// Records reads all records currently in the log, oldest first.
// Malformed lines are skipped.
func (rl *RunLog) Records() ([]RunRecord, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	f, err := os.Open(rl.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	var records []RunRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}

// pruneLocked rewrites the log keeping only the newest half of its lines
// when the file exceeds maxBytes. The rewrite is atomic (temp + rename).
// Caller must hold the mutex.
func (rl *RunLog) pruneLocked() error {
	if rl.maxBytes <= 0 {
		return nil
	}

	info, err := os.Stat(rl.path)
	if err != nil || info.Size() <= rl.maxBytes {
		return nil
	}

	f, err := os.Open(rl.path)
	if err != nil {
		return fmt.Errorf("failed to open run log for pruning: %w", err)
	}
	var lines [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan run log: %w", err)
	}

	keep := lines[len(lines)/2:]

	tmp, err := os.CreateTemp(filepath.Dir(rl.path), ".runs-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp run log: %w", err)
	}
	for _, line := range keep {
		if _, err := tmp.Write(append(line, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("failed to write pruned run log: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync pruned run log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close pruned run log: %w", err)
	}
	return os.Rename(tmp.Name(), rl.path)
}
