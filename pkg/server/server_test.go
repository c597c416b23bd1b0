package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"streamline-hq/streamline/internal/sourcetest"
	"streamline-hq/streamline/pkg/cache"
	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/fetch"
	"streamline-hq/streamline/pkg/jobs"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/pipeline"
	"streamline-hq/streamline/pkg/sources"
	"streamline-hq/streamline/pkg/tester"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a real orchestrator against temp files and a
// stub subscription source, then returns the server and its config.
func newTestServer(t *testing.T, mutate func(*Deps)) (*Server, *config.Config) {
	t.Helper()

	src := sourcetest.New("vless://6ba7b810-9dad-11d1-80b4-00c04fd430c8@h1.example:443?security=tls#alpha")
	src.SetEncoded(true)
	t.Cleanup(src.Close)

	cfg := config.NewDefault()
	dir := t.TempDir()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Formats = []string{"raw", "base64"}
	cfg.Sources.File = filepath.Join(dir, "sources.yaml")
	cfg.Sources.PerformanceFile = filepath.Join(dir, "perf.json")
	cfg.Discovery.Seeds = []string{src.URL()}
	cfg.Tester.Enabled = false
	cfg.Cache.L2Enabled = false
	cfg.Fetcher.Retries = 0
	cfg.Fetcher.Timeout = 5 * time.Second
	cfg.Fetcher.HostRate = 1000
	cfg.Fetcher.HostBurst = 1000

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
	runLog := events.NewRunLog(filepath.Join(dir, "runs.log"), 1<<20)

	orchestrator := pipeline.New(pipeline.Deps{
		Config:    cfg,
		Fetcher:   fetcher,
		Discovery: sources.NewDiscovery(&cfg.Discovery, "", logger),
		Validator: sources.NewValidator(cfg.Sources.ValidateTimeout, cfg.Fetcher.UserAgent, cfg.Fetcher.MaxBodyBytes, logger),
		Store:     store,
		Tester:    tester.New(&cfg.Tester, nil, logger),
		Formatter: output.NewFormatter(&cfg.Output, logger),
		Cache:     tiered,
		Bus:       bus,
		RunLog:    runLog,
		Logger:    logger,
	})

	deps := Deps{
		Config:       cfg,
		Orchestrator: orchestrator,
		Jobs:         jobs.NewRegistry(jobs.NewMemoryStore(), logger),
		Store:        store,
		Bus:          bus,
		RunLog:       runLog,
		Logger:       logger,
	}
	if mutate != nil {
		mutate(&deps)
	}

	return New(deps), cfg
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Decode %s: %v", path, err)
		}
	}
	return resp
}

// waitForJob polls the job endpoint until the job reaches a terminal
// status or the deadline passes.
func waitForJob(t *testing.T, ts *httptest.Server, id string) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var job jobs.Job
		resp := getJSON(t, ts, "/api/jobs/"+id, &job)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET job returned %d", resp.StatusCode)
		}
		if job.Status.Terminal() {
			return &job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("Job never reached a terminal status")
	return nil
}

// ============================================================================
// Endpoint Tests
// ============================================================================

func TestHandler_Health(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	var body map[string]any
	resp := getJSON(t, ts, "/healthz", &body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "ok" || body["stage"] != "idle" {
		t.Errorf("Unexpected health body: %v", body)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("Expected request ID echoed in response headers")
	}
}

func TestHandler_RunCreatesJobAndArtifacts(t *testing.T) {
	s, cfg := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	var accepted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if accepted["job_id"] == "" {
		t.Fatal("Expected a job_id in the response")
	}

	job := waitForJob(t, ts, accepted["job_id"])
	if job.Status != jobs.StatusDone {
		t.Fatalf("Expected done job, got %q (error %q)", job.Status, job.Error)
	}

	var result pipeline.RunResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("Result unmarshal: %v", err)
	}
	if result.Status != pipeline.StatusDone || result.Total != 1 {
		t.Errorf("Unexpected run result: %+v", result)
	}

	// Run history reflects the completed run.
	var records []events.RunRecord
	getJSON(t, ts, "/api/runs", &records)
	if len(records) != 1 || records[0].Status != "done" {
		t.Errorf("Expected one done run record, got %+v", records)
	}

	// The raw artifact is downloadable.
	entries, err := os.ReadDir(cfg.Output.Dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("Expected artifacts in %s: %v", cfg.Output.Dir, err)
	}
	artResp, err := http.Get(ts.URL + "/artifacts/" + entries[0].Name())
	if err != nil {
		t.Fatalf("GET artifact: %v", err)
	}
	defer artResp.Body.Close()
	if artResp.StatusCode != http.StatusOK {
		t.Errorf("Expected artifact download 200, got %d", artResp.StatusCode)
	}
}

func TestHandler_RunConflictWhileBusy(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	s.mu.Lock()
	s.runInFlight = true
	s.mu.Unlock()

	resp, err := http.Post(ts.URL+"/api/run", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 while a run is in flight, got %d", resp.StatusCode)
	}
}

func TestHandler_RunRejectsUnknownFormat(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	body := bytes.NewReader([]byte(`{"formats":["xml"]}`))
	resp, err := http.Post(ts.URL+"/api/run", "application/json", body)
	if err != nil {
		t.Fatalf("POST /api/run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown format, got %d", resp.StatusCode)
	}
}

func TestHandler_JobNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := getJSON(t, ts, "/api/jobs/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", resp.StatusCode)
	}
}

func TestHandler_Sources(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	if err := s.deps.Store.AddAtomic("https://example.com/sub.txt", sources.TierReliable, 1.0); err != nil {
		t.Fatalf("AddAtomic: %v", err)
	}

	var records []sources.Metadata
	resp := getJSON(t, ts, "/api/sources", &records)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if len(records) != 1 || records[0].URL != "https://example.com/sub.txt" {
		t.Errorf("Unexpected source records: %+v", records)
	}
}

func TestHandler_Reload(t *testing.T) {
	reloaded := false
	s, _ := newTestServer(t, func(d *Deps) {
		d.Reload = func() error {
			reloaded = true
			return nil
		}
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/config/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !reloaded {
		t.Errorf("Expected reload to run, got status %d reloaded=%v", resp.StatusCode, reloaded)
	}
}

func TestHandler_ReloadUnavailable(t *testing.T) {
	s, _ := newTestServer(t, func(d *Deps) { d.Reload = nil })
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/config/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("POST reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when reload is not wired, got %d", resp.StatusCode)
	}
}

// ============================================================================
// Event Stream Tests
// ============================================================================

func TestHandler_EventsStreamDeliversBusEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected event-stream content type, got %q", ct)
	}

	// RUN_DONE is a terminal event and flushes through the aggregator
	// immediately.
	s.deps.Bus.Emit(events.RunDone, "test", map[string]any{"run_id": "r1"})

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("Stream ended without event: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event events.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &event); err != nil {
			t.Fatalf("Event unmarshal: %v", err)
		}
		if event.Type != events.RunDone {
			t.Errorf("Expected RUN_DONE, got %q", event.Type)
		}
		return
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestHandler_RecoversFromPanic(t *testing.T) {
	s, _ := newTestServer(t, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaput")
	})
	handler := recoveryMiddleware(s.logger)(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 after panic, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("Expected generic error body, got %q", rec.Body.String())
	}
}

func TestHandler_RequestIDHonorsClientValue(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "caller-supplied" {
		t.Errorf("Expected client request ID echoed, got %q", got)
	}
}

func TestServer_StartAndStop(t *testing.T) {
	s, cfg := newTestServer(t, nil)
	cfg.Server.ListenAddress = "127.0.0.1:0"

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !s.IsRunning() {
		t.Fatal("Server never reported running")
	}

	s.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error on clean stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not stop")
	}
	if s.IsRunning() {
		t.Error("Server still reports running after stop")
	}
}
