package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamline-hq/streamline/pkg/cache"
	"streamline-hq/streamline/pkg/cli"
	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/fetch"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/sources"
	"streamline-hq/streamline/pkg/tester"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDeps wires a full orchestrator against temp files. Network
// tests are disabled; sources come from the given seed URLs.
func newTestDeps(t *testing.T, seeds []string, mutate func(*config.Config)) Deps {
	t.Helper()

	cfg := config.NewDefault()
	dir := t.TempDir()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Formats = []string{"raw", "base64", "csv", "report"}
	cfg.Sources.File = filepath.Join(dir, "sources.yaml")
	cfg.Sources.PerformanceFile = filepath.Join(dir, "perf.json")
	cfg.Discovery.Seeds = seeds
	cfg.Tester.Enabled = false
	cfg.Cache.L2Enabled = false
	cfg.Fetcher.Retries = 0
	cfg.Fetcher.Timeout = 5 * time.Second
	cfg.Fetcher.HostRate = 1000
	cfg.Fetcher.HostBurst = 1000
	if mutate != nil {
		mutate(cfg)
	}

	logger := testLogger()

	fetcher, err := fetch.New(&cfg.Fetcher, nil, logger)
	if err != nil {
		t.Fatalf("fetch.New: %v", err)
	}
	store := sources.NewStore(cfg.Sources.File, cfg.Sources.PerformanceFile)
	if err := store.Load(); err != nil {
		t.Fatalf("store.Load: %v", err)
	}

	bus := events.NewBus(256, time.Second, logger)
	tiered := cache.New(&cfg.Cache, nil, logger)
	t.Cleanup(func() {
		bus.Close()
		tiered.Close()
	})

	return Deps{
		Config:    cfg,
		Fetcher:   fetcher,
		Discovery: sources.NewDiscovery(&cfg.Discovery, "", logger),
		Validator: sources.NewValidator(cfg.Sources.ValidateTimeout, cfg.Fetcher.UserAgent, cfg.Fetcher.MaxBodyBytes, logger),
		Store:     store,
		Tester:    tester.New(&cfg.Tester, nil, logger),
		Formatter: output.NewFormatter(&cfg.Output, logger),
		Cache:     tiered,
		Bus:       bus,
		RunLog:    events.NewRunLog(filepath.Join(dir, "runs.log"), 1<<20),
		Logger:    logger,
	}
}

// eventRecorder collects bus events for post-run assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *eventRecorder) has(t events.Type) bool {
	for _, got := range r.types() {
		if got == t {
			return true
		}
	}
	return false
}

func textServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const (
	highLine = "vless://6ba7b810-9dad-11d1-80b4-00c04fd430c8@h1.example:443?security=tls&sni=h1.example#alpha"
	lowLine  = "trojan://password@h2.example:9000#beta"
	ssLine   = "ss://YWVzLTEyOC1nY206cGFzc3dvcmQ=@h3.example:8388#b64"
	// Same endpoint as highLine: reordered params, different tag.
	dupLine = "vless://6ba7b810-9dad-11d1-80b4-00c04fd430c8@h1.example:443?sni=h1.example&security=tls#gamma"
)

// ============================================================================
// End-to-End Run Tests
// ============================================================================

func TestRun_EndToEnd(t *testing.T) {
	plain := textServer(t, highLine+"\n"+lowLine+"\n")
	encoded := textServer(t, base64.StdEncoding.EncodeToString([]byte(dupLine+"\n"+ssLine+"\n")))

	deps := newTestDeps(t, []string{plain.URL, encoded.URL}, nil)
	recorder := &eventRecorder{}
	deps.Bus.Subscribe(recorder.record)

	o := New(deps)
	result, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != StatusDone {
		t.Errorf("Expected status done, got %q", result.Status)
	}
	if result.Total != 3 {
		t.Errorf("Expected 3 unique configs after dedup, got %d", result.Total)
	}
	if result.Sources != 2 {
		t.Errorf("Expected 2 sources, got %d", result.Sources)
	}
	if o.Stage() != StageDone {
		t.Errorf("Expected final stage done, got %q", o.Stage())
	}

	// Raw artifact ordered best first; the cross-source duplicate kept
	// its first-seen form.
	raw, err := os.ReadFile(filepath.Join(deps.Config.Output.Dir, "vpn_subscription_raw.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(raw), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 raw lines, got %d: %q", len(lines), raw)
	}
	if lines[0] != highLine {
		t.Errorf("Expected best-scored config first, got %q", lines[0])
	}
	if strings.Contains(string(raw), "#gamma") {
		t.Error("Duplicate config surfaced under its second-seen tag")
	}

	if len(result.Written) != 4 {
		t.Errorf("Expected 4 artifacts, got %v", result.Written)
	}
	if len(result.Failed) != 0 {
		t.Errorf("Unexpected artifact failures: %v", result.Failed)
	}

	// Drain the bus, then check the event trail.
	deps.Bus.Close()
	for _, want := range []events.Type{
		events.RunStart, events.DiscoverStart, events.DiscoverDone,
		events.ValidateStart, events.ValidateDone, events.FetchStart,
		events.FetchProgress, events.FetchDone, events.DedupDone,
		events.OutputWritten, events.RunDone,
	} {
		if !recorder.has(want) {
			t.Errorf("Missing event %s", want)
		}
	}
	types := recorder.types()
	if types[0] != events.RunStart || types[len(types)-1] != events.RunDone {
		t.Errorf("Expected RUN_START first and RUN_DONE last, got %v", types)
	}

	records, err := deps.RunLog.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].RunID != result.RunID || records[0].Status != StatusDone {
		t.Errorf("Unexpected run log: %+v", records)
	}
	if records[0].TotalConfigs != 3 {
		t.Errorf("Expected 3 configs in run record, got %d", records[0].TotalConfigs)
	}
}

func TestRun_AllSourcesFailStillWritesEmptyRaw(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	deps := newTestDeps(t, []string{broken.URL}, nil)
	result, err := New(deps).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Status != StatusDone {
		t.Errorf("Expected status done despite source failures, got %q", result.Status)
	}
	if result.Total != 0 {
		t.Errorf("Expected 0 configs, got %d", result.Total)
	}

	raw, err := os.ReadFile(filepath.Join(deps.Config.Output.Dir, "vpn_subscription_raw.txt"))
	if err != nil {
		t.Fatalf("Raw artifact missing: %v", err)
	}
	if len(raw) != 0 {
		t.Errorf("Expected empty raw artifact, got %q", raw)
	}
}

func TestRun_InvalidHostSkipped(t *testing.T) {
	body := highLine + "\n" + "trojan://pw@evil$host.example:443#bad" + "\n"
	srv := textServer(t, body)

	deps := newTestDeps(t, []string{srv.URL}, nil)
	recorder := &eventRecorder{}
	deps.Bus.Subscribe(recorder.record)

	result, err := New(deps).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("Expected only the clean config, got %d", result.Total)
	}

	raw, _ := os.ReadFile(filepath.Join(deps.Config.Output.Dir, "vpn_subscription_raw.txt"))
	if strings.Contains(string(raw), "evil$host") {
		t.Error("Rejected host leaked into raw artifact")
	}

	deps.Bus.Close()
	if !recorder.has(events.InvalidHost) {
		t.Error("Expected INVALID_HOST_SKIPPED event")
	}
}

func TestRun_SecondRunServedFromCache(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, highLine+"\n")
	}))
	t.Cleanup(srv.Close)

	deps := newTestDeps(t, []string{srv.URL}, nil)
	o := New(deps)

	if _, err := o.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("First run: %v", err)
	}
	after1 := requests.Load()

	result, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Second run: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("Expected 1 config from cached body, got %d", result.Total)
	}

	// The second run still validates, but the fetch is a cache hit.
	if got := requests.Load(); got != after1+1 {
		t.Errorf("Expected exactly one extra request (validation) on the second run, got %d then %d", after1, got)
	}
}

func TestRun_ForceRefreshBypassesCache(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, highLine+"\n")
	}))
	t.Cleanup(srv.Close)

	deps := newTestDeps(t, []string{srv.URL}, nil)
	o := New(deps)

	if _, err := o.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	after1 := requests.Load()

	if _, err := o.Run(context.Background(), RunOptions{ForceRefresh: true}); err != nil {
		t.Fatal(err)
	}
	if got := requests.Load(); got != after1+2 {
		t.Errorf("Expected validation and fetch requests on refresh, got %d then %d", after1, got)
	}
}

func TestRun_CancelledFlushesPartialRaw(t *testing.T) {
	fast := textServer(t, highLine+"\n")

	var slowRequests atomic.Int64
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// First request is the validation probe; the fetch hangs until
		// the run is cancelled.
		if slowRequests.Add(1) > 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(10 * time.Second):
			}
			return
		}
		io.WriteString(w, lowLine+"\n")
	}))
	t.Cleanup(slow.Close)

	deps := newTestDeps(t, []string{fast.URL, slow.URL}, nil)
	o := New(deps)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(500 * time.Millisecond)
		cancel()
	}()

	result, err := o.Run(ctx, RunOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if result.Status != StatusCancelled {
		t.Errorf("Expected status cancelled, got %q", result.Status)
	}
	if o.Stage() != StageCancelled {
		t.Errorf("Expected final stage cancelled, got %q", o.Stage())
	}

	// The fast source's configs must still reach the raw artifact.
	raw, err := os.ReadFile(filepath.Join(deps.Config.Output.Dir, "vpn_subscription_raw.txt"))
	if err != nil {
		t.Fatalf("Partial raw artifact missing: %v", err)
	}
	if !strings.Contains(string(raw), "h1.example") {
		t.Errorf("Expected partial results in raw artifact, got %q", raw)
	}

	records, _ := deps.RunLog.Records()
	if len(records) != 1 || records[0].Status != StatusCancelled {
		t.Errorf("Expected one cancelled run record, got %+v", records)
	}
}

func TestRun_UnknownFormatIsConfigError(t *testing.T) {
	srv := textServer(t, highLine+"\n")
	deps := newTestDeps(t, []string{srv.URL}, func(cfg *config.Config) {
		cfg.Output.Formats = []string{"raw", "bogus"}
	})

	_, err := New(deps).Run(context.Background(), RunOptions{})
	var ce *cli.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigError for unknown format, got %v", err)
	}

	records, _ := deps.RunLog.Records()
	if len(records) != 0 {
		t.Errorf("Expected no run record for a rejected configuration, got %+v", records)
	}
}

// ============================================================================
// Source Selection Tests
// ============================================================================

func TestSelectSources_OrdersByScoreAndWeight(t *testing.T) {
	deps := newTestDeps(t, nil, nil)
	o := New(deps)

	deps.Store.Update("https://a.example/sub", func(m *sources.Metadata) { m.Weight = 1.0 })
	deps.Store.Update("https://b.example/sub", func(m *sources.Metadata) { m.Weight = 0.3 })

	healths := []sources.Health{
		{URL: "https://a.example/sub", Accessible: true, ReliabilityScore: 0.5},
		{URL: "https://b.example/sub", Accessible: true, ReliabilityScore: 0.9},
	}
	selected := o.selectSources([]string{"https://a.example/sub", "https://b.example/sub"}, healths)

	// 0.5*1.0 > 0.9*0.3, so the heavier source wins.
	if len(selected) != 2 || selected[0] != "https://a.example/sub" {
		t.Errorf("Unexpected selection order: %v", selected)
	}
}

func TestSelectSources_DropsBelowThresholdAndSuspended(t *testing.T) {
	deps := newTestDeps(t, nil, nil)
	o := New(deps)

	deps.Store.Update("https://suspended.example/sub", func(m *sources.Metadata) {
		m.State = sources.StateSuspended
	})

	discovered := []string{
		"https://good.example/sub",
		"https://weak.example/sub",
		"https://suspended.example/sub",
	}
	healths := []sources.Health{
		{URL: "https://good.example/sub", Accessible: true, ReliabilityScore: 0.7},
		{URL: "https://weak.example/sub", Accessible: true, ReliabilityScore: 0.1},
		{URL: "https://suspended.example/sub", Accessible: true, ReliabilityScore: 0.9},
	}

	selected := o.selectSources(discovered, healths)
	if len(selected) != 1 || selected[0] != "https://good.example/sub" {
		t.Errorf("Expected only the healthy source, got %v", selected)
	}
}

func TestSelectSources_FallsBackToDiscoveredWhenEmpty(t *testing.T) {
	deps := newTestDeps(t, nil, func(cfg *config.Config) {
		cfg.Pipeline.FetchCap = 2
	})
	o := New(deps)

	discovered := []string{"https://x.example/a", "https://x.example/b", "https://x.example/c"}
	healths := []sources.Health{
		{URL: "https://x.example/a", ReliabilityScore: 0},
		{URL: "https://x.example/b", ReliabilityScore: 0},
		{URL: "https://x.example/c", ReliabilityScore: 0},
	}

	selected := o.selectSources(discovered, healths)
	if len(selected) != 2 {
		t.Errorf("Expected fallback capped at fetch budget, got %v", selected)
	}
	if selected[0] != discovered[0] {
		t.Errorf("Expected fallback to preserve discovery order, got %v", selected)
	}
}
