package jobs

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers periodic pipeline runs from a cron expression.
// Schedules use the standard five-field cron syntax.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.With("component", "jobs.scheduler"),
	}
}

// Schedule registers fn to run on the given cron expression. An
// invalid expression is an error; the scheduler stays usable.
func (s *Scheduler) Schedule(spec string, fn func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.logger.Info("job scheduled", "spec", spec)
	return id, nil
}

// Start begins executing scheduled entries in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight entries to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
