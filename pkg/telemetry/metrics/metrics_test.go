package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"streamline-hq/streamline/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestCollector() *Collector {
	cfg := &config.MetricsConfig{Enabled: true}
	return NewCollector(cfg, prometheus.NewRegistry())
}

func TestCollector_Defaults(t *testing.T) {
	c := newTestCollector()
	if c.config.Namespace != "streamline" {
		t.Errorf("Expected default namespace, got %q", c.config.Namespace)
	}
	if c.config.Subsystem != "pipeline" {
		t.Errorf("Expected default subsystem, got %q", c.config.Subsystem)
	}
}

func TestCollector_RecordAndExpose(t *testing.T) {
	c := newTestCollector()

	c.Fetch().RecordRequest("success", 120*time.Millisecond, 2048)
	c.Fetch().RecordRetry()
	c.Fetch().RecordBreakerState("s1.example", BreakerOpen)
	c.Pipeline().RecordRun("done")
	c.Pipeline().RecordStage("fetching", 2*time.Second)
	c.Pipeline().SetRunTotals(42, 17)
	c.Cache().RecordHit("l1")
	c.Cache().RecordMiss("l2")
	c.Cache().RecordEviction("l1", "lru")
	c.Tester().RecordProbe("vmess", "reachable", 80*time.Millisecond)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`streamline_fetch_requests_total{outcome="success"} 1`,
		`streamline_fetch_retries_total 1`,
		`streamline_fetch_breaker_state{host="s1.example"} 1`,
		`streamline_pipeline_runs_total{status="done"} 1`,
		`streamline_pipeline_unique_configs 42`,
		`streamline_pipeline_reachable_configs 17`,
		`streamline_cache_hits_total{tier="l1"} 1`,
		`streamline_cache_evictions_total{reason="lru",tier="l1"} 1`,
		`streamline_tester_probes_total{protocol="vmess",result="reachable"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Exposition missing %q", want)
		}
	}
}

func TestSecurityMetrics_RollingWindow(t *testing.T) {
	rc := newRollingCounter(50 * time.Millisecond)

	rc.Add()
	rc.Add()
	if got := rc.Count(); got != 2 {
		t.Errorf("Expected 2 recent events, got %d", got)
	}

	time.Sleep(80 * time.Millisecond)
	if got := rc.Count(); got != 0 {
		t.Errorf("Expected events to age out, got %d", got)
	}
}

func TestSecurityMetrics_Record(t *testing.T) {
	c := newTestCollector()
	c.Security().RecordHostReject()
	c.Security().RecordHostReject()

	if got := c.Security().RecentRejects(); got != 2 {
		t.Errorf("Expected 2 recent rejects, got %d", got)
	}
}
