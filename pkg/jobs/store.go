package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists job records.
type Store interface {
	// Save inserts or replaces a job record.
	Save(ctx context.Context, job *Job) error

	// Load returns one job by ID, or nil when absent.
	Load(ctx context.Context, id string) (*Job, error)

	// List returns up to limit jobs, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*Job, error)

	// Cleanup removes terminal jobs created before the cutoff and
	// returns the number removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-process Store for tests and ephemeral setups.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (m *MemoryStore) Save(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return job.clone(), nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.CreatedAt.Before(olderThan) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
