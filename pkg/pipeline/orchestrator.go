package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"streamline-hq/streamline/pkg/cache"
	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/fetch"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/sources"
	"streamline-hq/streamline/pkg/telemetry/metrics"
	"streamline-hq/streamline/pkg/telemetry/tracing"
	"streamline-hq/streamline/pkg/tester"
	"streamline-hq/streamline/pkg/vpncfg"
)

// Stage is the orchestrator's run state.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageDiscovering Stage = "discovering"
	StageValidating  Stage = "validating"
	StageFetching    Stage = "fetching"
	StageDeduping    Stage = "deduping"
	StageTesting     Stage = "testing"
	StageScoring     Stage = "scoring"
	StageWriting     Stage = "writing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
	StageCancelled   Stage = "cancelled"
)

// Deps carries the orchestrator's collaborators. The orchestrator owns
// the run; collaborators never hold references back to it.
type Deps struct {
	Config    *config.Config
	Fetcher   *fetch.Fetcher
	Discovery *sources.Discovery
	Validator *sources.Validator
	Store     *sources.Store
	Tester    *tester.Tester
	Scorer    vpncfg.Scorer
	Formatter *output.Formatter
	Cache     *cache.Cache
	Bus       *events.Bus
	RunLog    *events.RunLog
	Metrics   *metrics.Collector
	Tracer    *tracing.Tracer
	Logger    *slog.Logger
}

// Orchestrator is the only component that owns a run. It drives the
// stage machine discovering → validating → fetching → deduping →
// testing → scoring → writing, publishing an event on every transition.
type Orchestrator struct {
	deps   Deps
	fsm    *sources.FSM
	logger *slog.Logger

	mu    sync.Mutex
	stage Stage
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	return &Orchestrator{
		deps:   deps,
		fsm:    sources.NewFSM(cfg.Sources.SuspendAfter, cfg.Sources.RecoverAfter),
		logger: logger.With("component", "pipeline"),
	}
}

// Stage returns the orchestrator's current stage.
func (o *Orchestrator) Stage() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

// setStage transitions the stage machine and publishes the stage's
// start event if it has one.
func (o *Orchestrator) setStage(stage Stage, runID string) {
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()

	if t, ok := stageStartEvents[stage]; ok {
		o.emit(t, map[string]any{"run_id": runID})
	}
}

var stageStartEvents = map[Stage]events.Type{
	StageDiscovering: events.DiscoverStart,
	StageValidating:  events.ValidateStart,
	StageFetching:    events.FetchStart,
}

func (o *Orchestrator) emit(t events.Type, data map[string]any) {
	if o.deps.Bus != nil {
		o.deps.Bus.Emit(t, "pipeline", data)
	}
}

// recordStage records a completed stage duration.
func (o *Orchestrator) recordStage(stage Stage, start time.Time) time.Duration {
	elapsed := time.Since(start)
	if o.deps.Metrics != nil {
		o.deps.Metrics.Pipeline().RecordStage(string(stage), elapsed)
	}
	return elapsed
}
