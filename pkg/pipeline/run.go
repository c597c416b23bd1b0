package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/vpncfg"
)

// RunOptions adjusts one run.
type RunOptions struct {
	// Formats overrides the configured output formats when non-empty.
	Formats []output.Format
	// ForceRefresh bypasses cached source bodies.
	ForceRefresh bool
	// SkipNetworkTests skips reachability probing even when the tester
	// is enabled.
	SkipNetworkTests bool
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID     string
	Status    string
	Total     int
	Reachable int
	Sources   int
	Durations events.RunDurations
	Written   []string
	Failed    map[output.Format]error
}

// Run statuses.
const (
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run executes one full aggregation run. Cancellation is honored at
// stage boundaries; a cancelled run still flushes whatever it collected
// into the raw artifact before returning ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	cfg := o.deps.Config
	runID := uuid.NewString()
	start := time.Now()

	if cfg.Pipeline.WallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.WallClock)
		defer cancel()
	}
	if o.deps.Tracer != nil {
		var span trace.Span
		ctx, span = o.deps.Tracer.Start(ctx, "pipeline.run")
		defer span.End()
	}

	formats := opts.Formats
	if len(formats) == 0 {
		var err error
		formats, err = output.ParseFormats(cfg.Output.Formats)
		if err != nil {
			return nil, err
		}
	}

	result := &RunResult{RunID: runID, Status: StatusFailed}
	o.logger.Info("run started", "run_id", runID)
	o.emit(events.RunStart, map[string]any{"run_id": runID})

	// Discover.
	o.setStage(StageDiscovering, runID)
	stageStart := time.Now()
	discovered := o.deps.Discovery.Discover(ctx, cfg.Pipeline.DiscoveryCap)
	result.Durations.Discover = o.recordStage(StageDiscovering, stageStart).Seconds()
	o.emit(events.DiscoverDone, map[string]any{"run_id": runID, "count": len(discovered)})

	if err := ctx.Err(); err != nil {
		return o.finish(result, nil, formats, start, err)
	}

	// Validate.
	o.setStage(StageValidating, runID)
	stageStart = time.Now()
	healths := o.validateAll(ctx, discovered)
	result.Durations.Validate = o.recordStage(StageValidating, stageStart).Seconds()
	accessible := 0
	for _, h := range healths {
		if h.Accessible {
			accessible++
		}
	}
	o.emit(events.ValidateDone, map[string]any{
		"run_id":     runID,
		"checked":    len(healths),
		"accessible": accessible,
	})

	if err := ctx.Err(); err != nil {
		return o.finish(result, nil, formats, start, err)
	}

	// Select and fetch.
	selected := o.selectSources(discovered, healths)
	result.Sources = len(selected)

	o.setStage(StageFetching, runID)
	stageStart = time.Now()
	perSource, parsed := o.fetchAll(ctx, runID, selected, opts.ForceRefresh)
	result.Durations.Fetch = o.recordStage(StageFetching, stageStart).Seconds()
	if o.deps.Metrics != nil {
		o.deps.Metrics.Pipeline().RecordConfigs("parsed", parsed)
	}
	o.emit(events.FetchDone, map[string]any{
		"run_id":  runID,
		"sources": len(selected),
		"configs": parsed,
	})

	if err := ctx.Err(); err != nil {
		return o.finish(result, flatten(perSource), formats, start, err)
	}

	// Dedup and filter.
	o.setStage(StageDeduping, runID)
	stageStart = time.Now()
	unique, err := o.dedup(perSource)
	o.recordStage(StageDeduping, stageStart)
	if err != nil {
		return o.fail(result, start, err)
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.Pipeline().RecordConfigs("deduped", len(unique))
	}
	o.emit(events.DedupDone, map[string]any{
		"run_id": runID,
		"unique": len(unique),
		"raw":    parsed,
	})

	if err := ctx.Err(); err != nil {
		return o.finish(result, unique, formats, start, err)
	}

	// Test.
	if cfg.Tester.Enabled && !opts.SkipNetworkTests && o.deps.Tester != nil {
		o.setStage(StageTesting, runID)
		stageStart = time.Now()
		o.test(ctx, unique)
		o.recordStage(StageTesting, stageStart)

		reachable := countReachable(unique)
		if o.deps.Metrics != nil {
			o.deps.Metrics.Pipeline().RecordConfigs("tested", len(unique))
		}
		o.emit(events.TestCompleted, map[string]any{
			"run_id":    runID,
			"tested":    len(unique),
			"reachable": reachable,
		})
	}

	if err := ctx.Err(); err != nil {
		return o.finish(result, unique, formats, start, err)
	}

	// Score and order.
	o.setStage(StageScoring, runID)
	stageStart = time.Now()
	o.score(unique)
	o.recordStage(StageScoring, stageStart)

	// Write artifacts.
	o.setStage(StageWriting, runID)
	stageStart = time.Now()
	summary, err := o.deps.Formatter.Write(unique, formats, o.writeOptions(runID, result.Sources))
	result.Durations.Output = o.recordStage(StageWriting, stageStart).Seconds()
	if err != nil {
		return o.fail(result, start, err)
	}
	result.Written = summary.Written
	result.Failed = summary.Failed
	if o.deps.Metrics != nil {
		o.deps.Metrics.Pipeline().RecordConfigs("written", len(unique))
	}
	o.emit(events.OutputWritten, map[string]any{
		"run_id":    runID,
		"artifacts": len(summary.Written),
		"failed":    len(summary.Failed),
	})

	result.Status = StatusDone
	result.Total = len(unique)
	result.Reachable = countReachable(unique)
	return o.complete(result, start, nil)
}

// finish handles a cancelled run: flush what we have into the raw
// artifact, record the run, and surface the cancellation.
func (o *Orchestrator) finish(result *RunResult, collected []*vpncfg.ConfigResult, formats []output.Format, start time.Time, cause error) (*RunResult, error) {
	result.Status = StatusCancelled
	result.Total = len(collected)
	result.Reachable = countReachable(collected)

	if len(collected) > 0 && hasFormat(formats, output.FormatRaw) {
		if summary, err := o.deps.Formatter.Write(collected, []output.Format{output.FormatRaw}, o.writeOptions(result.RunID, result.Sources)); err == nil {
			result.Written = summary.Written
		} else {
			o.logger.Warn("partial flush failed", "run_id", result.RunID, "error", err)
		}
	}

	return o.complete(result, start, cause)
}

// fail finalizes a failed run.
func (o *Orchestrator) fail(result *RunResult, start time.Time, cause error) (*RunResult, error) {
	result.Status = StatusFailed
	o.emit(events.ErrorOccurred, map[string]any{
		"run_id": result.RunID,
		"error":  cause.Error(),
	})
	return o.complete(result, start, cause)
}

// complete records the terminal state of a run: final stage, metrics,
// run log entry, and the RUN_DONE event.
func (o *Orchestrator) complete(result *RunResult, start time.Time, cause error) (*RunResult, error) {
	result.Durations.Total = time.Since(start).Seconds()

	switch result.Status {
	case StatusDone:
		o.setStage(StageDone, result.RunID)
	case StatusCancelled:
		o.setStage(StageCancelled, result.RunID)
	default:
		o.setStage(StageFailed, result.RunID)
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.Pipeline().RecordRun(result.Status)
		if result.Status == StatusDone {
			o.deps.Metrics.Pipeline().SetRunTotals(result.Total, result.Reachable)
		}
	}

	if o.deps.RunLog != nil {
		record := events.RunRecord{
			RunID:        result.RunID,
			TS:           time.Now().UTC(),
			Status:       result.Status,
			TotalConfigs: result.Total,
			Reachable:    result.Reachable,
			Sources:      result.Sources,
			Durations:    result.Durations,
		}
		if err := o.deps.RunLog.Append(record); err != nil {
			o.logger.Warn("run log append failed", "run_id", result.RunID, "error", err)
		}
	}

	o.emit(events.RunDone, map[string]any{
		"run_id":    result.RunID,
		"status":    result.Status,
		"total":     result.Total,
		"reachable": result.Reachable,
	})
	o.logger.Info("run finished",
		"run_id", result.RunID,
		"status", result.Status,
		"total", result.Total,
		"reachable", result.Reachable,
		"duration_s", fmt.Sprintf("%.2f", result.Durations.Total),
	)

	return result, cause
}

func (o *Orchestrator) writeOptions(runID string, sourceCount int) output.Options {
	opts := output.Options{
		RunID:            runID,
		SourceCount:      sourceCount,
		IncludeHandshake: o.deps.Config.Tester.TLSHandshake,
	}
	if o.deps.Tester != nil {
		opts.AppTestNames = o.deps.Tester.AppTestNames()
	}
	return opts
}

// test runs reachability probes, app tests, and tunnel tests on at most
// TestCap configs.
func (o *Orchestrator) test(ctx context.Context, unique []*vpncfg.ConfigResult) {
	subset := unique
	if testCap := o.deps.Config.Pipeline.TestCap; testCap > 0 && len(subset) > testCap {
		subset = subset[:testCap]
	}

	o.deps.Tester.TestAll(ctx, subset)
	o.deps.Tester.RunAppTests(ctx, subset)
	o.deps.Tester.RunTunnelTests(ctx, subset)
}

// score assigns quality scores and orders results best first. The sort
// is stable so equally scored configs keep their dedup insertion order.
func (o *Orchestrator) score(unique []*vpncfg.ConfigResult) {
	scorer := o.deps.Scorer
	if scorer == nil {
		scorer = vpncfg.NewHeuristicScorer()
	}
	for _, result := range unique {
		score := scorer.ScoreLine(result.RawConfig)
		result.QualityScore = &score
	}
	vpncfg.SortByQuality(unique)
}

func countReachable(results []*vpncfg.ConfigResult) int {
	n := 0
	for _, result := range results {
		if result.IsReachable {
			n++
		}
	}
	return n
}

func hasFormat(formats []output.Format, want output.Format) bool {
	for _, f := range formats {
		if f == want {
			return true
		}
	}
	return false
}

func flatten(perSource [][]*vpncfg.ConfigResult) []*vpncfg.ConfigResult {
	var out []*vpncfg.ConfigResult
	for _, results := range perSource {
		out = append(out, results...)
	}
	return out
}

// rawHash fingerprints an unparseable but keepable line by its exact
// bytes, so literal duplicates still collapse.
func rawHash(line string) vpncfg.Hash {
	sum := sha256.Sum256([]byte(line))
	var h vpncfg.Hash
	copy(h[:], sum[:16])
	return h
}

