package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"streamline-hq/streamline/pkg/config"
)

// ============================================================================
// Metadata Tests
// ============================================================================

func TestMetadata_AutoBlacklist(t *testing.T) {
	m := &Metadata{URL: "https://s.example/sub"}

	for i := 0; i < 11; i++ {
		m.RecordCheck(false, 0, 0, 100)
	}
	m.RecordCheck(true, 1, 10, 100)

	// 1 success < 0.2 × 11 failures.
	if !m.IsBlacklisted {
		t.Error("Expected chronically failing source to be blacklisted")
	}
}

func TestMetadata_HistoryBounded(t *testing.T) {
	m := &Metadata{}
	for i := 0; i < 150; i++ {
		m.RecordCheck(i%2 == 0, 1, 10, 100)
	}
	if len(m.History) != 100 {
		t.Errorf("Expected history capped at 100, got %d", len(m.History))
	}
}

func TestMetadata_RollingAverages(t *testing.T) {
	m := &Metadata{}
	m.RecordCheck(true, 2.0, 100, 100)
	m.RecordCheck(true, 4.0, 200, 100)

	if m.AvgResponseTime != 3.0 {
		t.Errorf("Expected avg response 3.0, got %f", m.AvgResponseTime)
	}
	if m.AvgConfigCount != 150 {
		t.Errorf("Expected avg configs 150, got %f", m.AvgConfigCount)
	}
}

// ============================================================================
// FSM Tests
// ============================================================================

func TestFSM_Lifecycle(t *testing.T) {
	fsm := NewFSM(3, 2)
	m := &Metadata{State: StateNew}

	// new → probation after 2 successes.
	m.RecordCheck(true, 1, 10, 100)
	fsm.Advance(m)
	if m.State != StateNew {
		t.Errorf("Expected new after 1 success, got %s", m.State)
	}
	m.RecordCheck(true, 1, 10, 100)
	fsm.Advance(m)
	if m.State != StateProbation {
		t.Errorf("Expected probation after 2 successes, got %s", m.State)
	}

	// probation → trusted at high reputation with enough checks.
	for i := 0; i < 4; i++ {
		m.RecordCheck(true, 1, 10, 100)
	}
	m.ReputationScore = 0.9
	fsm.Advance(m)
	if m.State != StateTrusted {
		t.Errorf("Expected trusted, got %s", m.State)
	}

	// trusted → probation on reputation drop.
	m.ReputationScore = 0.5
	fsm.Advance(m)
	if m.State != StateProbation {
		t.Errorf("Expected probation after reputation drop, got %s", m.State)
	}

	// probation → suspended after 3 consecutive failures.
	for i := 0; i < 3; i++ {
		m.RecordCheck(false, 0, 0, 100)
	}
	fsm.Advance(m)
	if m.State != StateSuspended {
		t.Errorf("Expected suspended, got %s", m.State)
	}
	if Fetchable(m) {
		t.Error("Expected suspended source to be unfetchable")
	}

	// suspended → probation after 2 consecutive successes.
	m.RecordCheck(true, 1, 10, 100)
	m.RecordCheck(true, 1, 10, 100)
	fsm.Advance(m)
	if m.State != StateProbation {
		t.Errorf("Expected probation after recovery, got %s", m.State)
	}
}

// ============================================================================
// Store Tests
// ============================================================================

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "sources.yaml"), filepath.Join(dir, "source_performance.json"))
}

func TestStore_AddAtomicAndReload(t *testing.T) {
	s := testStore(t)

	if err := s.AddAtomic("https://s1.example/sub", TierReliable, 0); err != nil {
		t.Fatalf("AddAtomic: %v", err)
	}
	if err := s.AddAtomic("https://s1.example/sub", TierReliable, 0); err == nil {
		t.Error("Expected duplicate add to fail")
	}

	// A fresh store over the same files sees the addition.
	s2 := NewStore(s.sourcesPath, s.perfPath)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, ok := s2.Get("https://s1.example/sub")
	if !ok {
		t.Fatal("Expected reloaded store to contain the source")
	}
	if m.Tier != TierReliable || m.Weight != 0.8 {
		t.Errorf("Unexpected reloaded record: %+v", m)
	}
}

func TestStore_PerformancePersistence(t *testing.T) {
	s := testStore(t)
	url := "https://s1.example/sub"

	err := s.Update(url, func(m *Metadata) {
		m.RecordCheck(true, 1.5, 250, 100)
		m.ReputationScore = 0.7
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	s2 := NewStore(s.sourcesPath, s.perfPath)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, ok := s2.Get(url)
	if !ok {
		t.Fatal("Expected performance record to survive reload")
	}
	if m.SuccessCount != 1 || m.ReputationScore != 0.7 {
		t.Errorf("Unexpected reloaded record: %+v", m)
	}
}

func TestStore_BlacklistWhitelist(t *testing.T) {
	s := testStore(t)
	url := "https://s1.example/sub"

	if err := s.Blacklist(url); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	m, _ := s.Get(url)
	if !m.IsBlacklisted {
		t.Error("Expected blacklisted")
	}

	if err := s.Whitelist(url); err != nil {
		t.Fatalf("Whitelist: %v", err)
	}
	m, _ = s.Get(url)
	if m.IsBlacklisted {
		t.Error("Expected whitelisted")
	}
}

func TestStore_CleanupOlderThan(t *testing.T) {
	s := testStore(t)

	s.Update("https://old.example/sub", func(m *Metadata) {
		m.LastCheck = time.Now().AddDate(0, 0, -90)
	})
	s.Update("https://new.example/sub", func(m *Metadata) {
		m.LastCheck = time.Now()
	})

	removed, err := s.CleanupOlderThan(30)
	if err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if _, ok := s.Get("https://old.example/sub"); ok {
		t.Error("Expected old source to be removed")
	}
	if _, ok := s.Get("https://new.example/sub"); !ok {
		t.Error("Expected recent source to survive")
	}
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 5; i++ {
		s.Update("https://s.example/sub", func(m *Metadata) {
			m.RecordCheck(true, 1, 10, 100)
		})
	}

	entries, err := os.ReadDir(filepath.Dir(s.perfPath))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("Stale temp file left behind: %s", entry.Name())
		}
	}
}

// ============================================================================
// Validator Tests
// ============================================================================

func TestValidator_ScoresAccessibleSource(t *testing.T) {
	var lines []string
	for i := 0; i < 150; i++ {
		lines = append(lines, "vmess://abc", "trojan://pw@h:443", "vless://u@h:443?x=1")
	}
	body := strings.Join(lines, "\n")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	v := NewValidator(5*time.Second, "test-agent", 1<<20, nil)
	health := v.Validate(context.Background(), server.URL)

	if !health.Accessible {
		t.Fatal("Expected accessible")
	}
	if health.EstimatedConfigs != 450 {
		t.Errorf("Expected 450 configs, got %d", health.EstimatedConfigs)
	}
	if len(health.ProtocolsFound) != 3 {
		t.Errorf("Expected 3 protocols, got %v", health.ProtocolsFound)
	}
	// 0.3 base + 0.2 latency + 0.1 count (≥100) + 0.1 diversity (≥3) + history.
	if health.ReliabilityScore < 0.7 || health.ReliabilityScore > 1 {
		t.Errorf("Unexpected score: %f", health.ReliabilityScore)
	}
}

func TestValidator_InaccessibleScoresLow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	v := NewValidator(5*time.Second, "", 1<<20, nil)
	health := v.Validate(context.Background(), server.URL)

	if health.Accessible {
		t.Error("Expected inaccessible")
	}
	if health.ReliabilityScore > 0.1 {
		t.Errorf("Expected near-zero score, got %f", health.ReliabilityScore)
	}
}

func TestValidator_ReputationMonotonicOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("vmess://abc\n"))
	}))
	defer server.Close()

	v := NewValidator(5*time.Second, "", 1<<20, nil)

	prev := 0.0
	for i := 0; i < 10; i++ {
		health := v.Validate(context.Background(), server.URL)
		if health.ReliabilityScore < prev {
			t.Fatalf("Score decreased on consecutive success: %f < %f", health.ReliabilityScore, prev)
		}
		prev = health.ReliabilityScore
	}
}

func TestValidator_KeywordAdjustments(t *testing.T) {
	v := NewValidator(time.Second, "", 1<<20, nil)

	official := v.keywordAdjustment("https://x.example/official/sub")
	temp := v.keywordAdjustment("https://x.example/temp/sub")
	plain := v.keywordAdjustment("https://x.example/sub")

	if official != 0.05 || temp != -0.1 || plain != 0 {
		t.Errorf("Unexpected adjustments: %f %f %f", official, temp, plain)
	}
}

// ============================================================================
// Discovery Tests
// ============================================================================

func TestDiscovery_SeedsAndCap(t *testing.T) {
	d := NewDiscovery(&config.DiscoveryConfig{
		Seeds: []string{
			"https://s1.example/sub",
			"https://s2.example/sub",
			"https://s1.example/sub", // duplicate
			"https://s3.example/sub",
		},
	}, "", nil)

	urls := d.Discover(context.Background(), 2)
	if len(urls) != 2 {
		t.Fatalf("Expected cap of 2, got %d", len(urls))
	}
	if urls[0] != "https://s1.example/sub" || urls[1] != "https://s2.example/sub" {
		t.Errorf("Unexpected order: %v", urls)
	}
}

func TestDiscovery_PathFilter(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"configs/sub.txt", true},
		{"v2ray/nodes.txt", true},
		{"README.md", false},
		{"LICENSE", false},
		{"clash/rules.yaml", false},
		{"misc/data.bin", false},
	}
	for _, tt := range tests {
		if got := plausibleSubscriptionPath(tt.path); got != tt.want {
			t.Errorf("plausibleSubscriptionPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
