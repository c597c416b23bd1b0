package pipeline

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"streamline-hq/streamline/pkg/dedup"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/fetch"
	"streamline-hq/streamline/pkg/sources"
	"streamline-hq/streamline/pkg/vpncfg"
)

// validateAll probes every discovered URL concurrently, records the
// outcome in the source store, and advances each source's state machine.
func (o *Orchestrator) validateAll(ctx context.Context, urls []string) []sources.Health {
	healths := make([]sources.Health, len(urls))

	var g errgroup.Group
	g.SetLimit(o.validateConcurrency())

	for i, url := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				healths[i] = sources.Health{URL: url}
				return nil
			}
			healths[i] = o.deps.Validator.Validate(ctx, url)
			return nil
		})
	}
	g.Wait()

	historyLimit := o.deps.Config.Sources.HistoryLimit
	for _, health := range healths {
		err := o.deps.Store.Update(health.URL, func(m *sources.Metadata) {
			m.RecordCheck(health.Accessible, health.ResponseTime, health.EstimatedConfigs, historyLimit)
			m.ReputationScore = health.ReliabilityScore
			o.fsm.Advance(m)
		})
		if err != nil {
			o.logger.Warn("source record update failed", "url", health.URL, "error", err)
		}
	}

	return healths
}

func (o *Orchestrator) validateConcurrency() int {
	limit := o.deps.Config.Fetcher.ConcurrentLimit
	if limit <= 0 {
		limit = 50
	}
	return limit
}

// selectSources orders fetchable sources by score times tier weight and
// applies the fetch budget. When scoring filters everything out the raw
// discovered list is used instead so a cold start still produces output.
func (o *Orchestrator) selectSources(discovered []string, healths []sources.Health) []string {
	type candidate struct {
		url  string
		rank float64
	}

	minScore := o.deps.Config.Pipeline.MinSourceScore
	var candidates []candidate

	for _, health := range healths {
		meta, ok := o.deps.Store.Get(health.URL)
		if ok && !sources.Fetchable(&meta) {
			continue
		}

		threshold := minScore
		if meta.MinScore > 0 {
			threshold = meta.MinScore
		}
		if health.ReliabilityScore < threshold {
			continue
		}

		weight := meta.Weight
		if weight <= 0 {
			weight = 1
		}
		candidates = append(candidates, candidate{
			url:  health.URL,
			rank: health.ReliabilityScore * weight,
		})
	}

	if len(candidates) == 0 {
		return capList(discovered, o.deps.Config.Pipeline.FetchCap)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank > candidates[j].rank
		}
		return candidates[i].url < candidates[j].url
	})

	selected := make([]string, len(candidates))
	for i, c := range candidates {
		selected[i] = c.url
	}
	return capList(selected, o.deps.Config.Pipeline.FetchCap)
}

func capList(urls []string, limit int) []string {
	if limit > 0 && len(urls) > limit {
		return urls[:limit]
	}
	return urls
}

// fetchAll downloads and parses every selected source concurrently.
// Results are collected per source in selection order, so the overall
// config order is deterministic regardless of completion order. It
// returns the per-source results and the total parsed line count.
func (o *Orchestrator) fetchAll(ctx context.Context, runID string, urls []string, forceRefresh bool) ([][]*vpncfg.ConfigResult, int) {
	perSource := make([][]*vpncfg.ConfigResult, len(urls))

	var g errgroup.Group
	g.SetLimit(o.validateConcurrency())

	for i, url := range urls {
		g.Go(func() error {
			perSource[i] = o.fetchOne(ctx, runID, url, forceRefresh)
			return nil
		})
	}
	g.Wait()

	total := 0
	for _, results := range perSource {
		total += len(results)
	}
	return perSource, total
}

const cacheKeyPrefix = "source_body:"

// fetchOne downloads one source body (through the cache), decodes it,
// and parses its lines. Failures isolate to this source: they update its
// reputation and emit an error event, never abort the run.
func (o *Orchestrator) fetchOne(ctx context.Context, runID, url string, forceRefresh bool) []*vpncfg.ConfigResult {
	var body []byte
	cached := false

	cacheKey := cacheKeyPrefix + url
	if o.deps.Cache != nil && !forceRefresh {
		if value, ok := o.deps.Cache.Get(ctx, cacheKey); ok {
			body = []byte(value)
			cached = true
		}
	}

	if body == nil {
		fetched, err := o.deps.Fetcher.Fetch(ctx, url)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				o.logger.Warn("source fetch failed", "url", url, "error", err)
				o.emit(events.ErrorOccurred, map[string]any{
					"run_id": runID,
					"url":    url,
					"error":  err.Error(),
				})
			}
			o.recordFetchOutcome(url, false, 0)
			return nil
		}
		body = fetched
		if o.deps.Cache != nil {
			o.deps.Cache.Set(ctx, cacheKey, string(body))
		}
	}

	lines := fetch.DecodePayload(body, o.deps.Config.Fetcher.MaxDecodeBytes)
	results := o.parseLines(runID, url, lines)
	if !cached {
		o.recordFetchOutcome(url, true, len(results))
	}

	o.emit(events.FetchProgress, map[string]any{
		"run_id":  runID,
		"url":     url,
		"configs": len(results),
		"cached":  cached,
	})
	return results
}

func (o *Orchestrator) recordFetchOutcome(url string, success bool, configCount int) {
	historyLimit := o.deps.Config.Sources.HistoryLimit
	err := o.deps.Store.Update(url, func(m *sources.Metadata) {
		m.RecordCheck(success, 0, configCount, historyLimit)
		o.fsm.Advance(m)
	})
	if err != nil {
		o.logger.Warn("source record update failed", "url", url, "error", err)
	}
}

// parseLines normalizes one source's lines into config results. Rejected
// hosts are counted and skipped; unparseable but well-formed lines are
// kept raw-only so they still reach the raw artifact.
func (o *Orchestrator) parseLines(runID, url string, lines []string) []*vpncfg.ConfigResult {
	var results []*vpncfg.ConfigResult

	for _, line := range lines {
		parsed, err := vpncfg.Parse(line)
		if err == nil {
			results = append(results, &vpncfg.ConfigResult{
				RawConfig:    line,
				Protocol:     parsed.Protocol,
				Host:         parsed.Host,
				Port:         parsed.Port,
				SourceURL:    url,
				SemanticHash: parsed.SemanticHash(),
			})
			continue
		}

		var reject *vpncfg.SecurityRejectError
		if errors.As(err, &reject) {
			if o.deps.Metrics != nil {
				o.deps.Metrics.Security().RecordHostReject()
			}
			o.emit(events.InvalidHost, map[string]any{
				"run_id": runID,
				"url":    url,
				"host":   reject.Host,
				"reason": reject.Reason,
			})
			continue
		}

		if vpncfg.IsValidConfig(line) {
			results = append(results, &vpncfg.ConfigResult{
				RawConfig:    line,
				Protocol:     vpncfg.Categorize(line),
				SourceURL:    url,
				SemanticHash: rawHash(line),
			})
		}
	}

	return results
}

// dedup filters and deduplicates the fetched configs, preserving source
// selection order and per-source line order.
func (o *Orchestrator) dedup(perSource [][]*vpncfg.ConfigResult) ([]*vpncfg.ConfigResult, error) {
	filter, err := dedup.NewFilter(&o.deps.Config.Dedup)
	if err != nil {
		return nil, err
	}

	d := dedup.New(o.deps.Config.Dedup.BloomCapacity, o.deps.Config.Dedup.BloomFPR)
	for _, results := range perSource {
		for _, result := range results {
			if !filter.Keep(result) {
				continue
			}
			d.Add(result)
		}
	}
	return d.Unique(), nil
}
