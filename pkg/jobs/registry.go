package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Registry tracks job lifecycles against a Store. It is an explicit
// value: callers construct one and pass it where needed.
type Registry struct {
	store  Store
	logger *slog.Logger
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		logger: logger.With("component", "jobs"),
	}
}

// Create registers a new pending job and persists it.
func (r *Registry) Create(ctx context.Context, name string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Start marks a job running.
func (r *Registry) Start(ctx context.Context, id string) error {
	return r.transition(ctx, id, func(job *Job) {
		now := time.Now().UTC()
		job.Status = StatusRunning
		job.StartedAt = &now
	})
}

// Finish marks a job done or failed. result is marshaled into the job's
// opaque result blob; a marshal failure only loses the blob, never the
// terminal status.
func (r *Registry) Finish(ctx context.Context, id string, result any, runErr error) error {
	return r.transition(ctx, id, func(job *Job) {
		now := time.Now().UTC()
		job.FinishedAt = &now

		if runErr != nil {
			job.Status = StatusFailed
			job.Error = runErr.Error()
		} else {
			job.Status = StatusDone
		}

		if result != nil {
			blob, err := json.Marshal(result)
			if err != nil {
				r.logger.Warn("job result marshal failed", "job_id", id, "error", err)
			} else {
				job.Result = blob
			}
		}
	})
}

// Get returns one job, or nil when unknown.
func (r *Registry) Get(ctx context.Context, id string) (*Job, error) {
	return r.store.Load(ctx, id)
}

// List returns up to limit jobs, newest first.
func (r *Registry) List(ctx context.Context, limit int) ([]*Job, error) {
	return r.store.List(ctx, limit)
}

// Cleanup removes terminal jobs older than the retention window.
func (r *Registry) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	return r.store.Cleanup(ctx, time.Now().Add(-retention))
}

// Run executes fn under a fresh job record: create, mark running, run,
// mark finished. It returns the terminal job state and fn's error.
func (r *Registry) Run(ctx context.Context, name string, fn func(context.Context) (any, error)) (*Job, error) {
	job, err := r.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx, job.ID); err != nil {
		return nil, err
	}

	result, runErr := fn(ctx)
	if err := r.Finish(ctx, job.ID, result, runErr); err != nil {
		r.logger.Warn("job finish failed", "job_id", job.ID, "error", err)
	}

	final, err := r.Get(ctx, job.ID)
	if err != nil || final == nil {
		return job, runErr
	}
	return final, runErr
}

func (r *Registry) transition(ctx context.Context, id string, mutate func(*Job)) error {
	job, err := r.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("unknown job %s", id)
	}
	mutate(job)
	return r.store.Save(ctx, job)
}
