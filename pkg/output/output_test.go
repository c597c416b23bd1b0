package output

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"streamline-hq/streamline/pkg/cli"
	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/vpncfg"
)

func testFormatter(t *testing.T) (*Formatter, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFormatter(&config.OutputConfig{Dir: dir}, nil), dir
}

func testResults(t *testing.T) []*vpncfg.ConfigResult {
	t.Helper()
	lines := []string{
		"vless://a2f5c9e1-0000-4000-8000-000000000001@h1.example:443?security=tls&type=ws&path=/a",
		"trojan://pw@h2.example:443#tag",
	}
	var results []*vpncfg.ConfigResult
	for _, line := range lines {
		parsed, err := vpncfg.Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q): %v", line, err)
		}
		ping := 0.1234
		results = append(results, &vpncfg.ConfigResult{
			RawConfig:    line,
			Protocol:     parsed.Protocol,
			Host:         parsed.Host,
			Port:         parsed.Port,
			SourceURL:    "https://s.example/sub",
			PingTime:     &ping,
			IsReachable:  true,
			SemanticHash: parsed.SemanticHash(),
		})
	}
	return results
}

// ============================================================================
// Format Selection Tests
// ============================================================================

func TestParseFormats(t *testing.T) {
	all, err := ParseFormats([]string{"all"})
	if err != nil {
		t.Fatalf("ParseFormats(all): %v", err)
	}
	if len(all) != len(AllFormats) {
		t.Errorf("Expected full set, got %v", all)
	}

	some, err := ParseFormats([]string{"raw", "CSV", "clash"})
	if err != nil {
		t.Fatalf("ParseFormats: %v", err)
	}
	if len(some) != 3 || some[1] != FormatCSV {
		t.Errorf("Unexpected formats: %v", some)
	}

	_, err = ParseFormats([]string{"raw", "bogus"})
	var ce *cli.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConfigError for unknown format, got %v", err)
	}
}

// ============================================================================
// Artifact Tests
// ============================================================================

func TestWrite_RawAndBase64RoundTrip(t *testing.T) {
	f, dir := testFormatter(t)
	results := testResults(t)

	summary, err := f.Write(results, []Format{FormatRaw, FormatBase64}, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(summary.Written) != 2 {
		t.Fatalf("Expected 2 artifacts, got %v", summary.Written)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "vpn_subscription_raw.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(raw), "\n")
	if len(lines) != 2 || lines[0] != results[0].RawConfig {
		t.Errorf("Unexpected raw content: %q", raw)
	}

	encoded, err := os.ReadFile(filepath.Join(dir, "vpn_subscription_base64.txt"))
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		t.Fatalf("Base64 decode: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Error("Base64 round trip does not equal raw bytes")
	}
}

func TestWrite_CSV(t *testing.T) {
	f, dir := testFormatter(t)
	results := testResults(t)
	results[1].PingTime = nil
	results[1].IsReachable = false

	_, err := f.Write(results, []Format{FormatCSV}, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	file, err := os.Open(filepath.Join(dir, "vpn_detailed.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("CSV parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "Config,Protocol,Host,Port,Ping_MS,Reachable,Source" {
		t.Errorf("Unexpected header: %v", rows[0])
	}
	if rows[1][1] != "VLESS" || rows[2][1] != "Trojan" {
		t.Errorf("Unexpected protocol cells: %v %v", rows[1][1], rows[2][1])
	}
	if rows[1][4] != "123.40" {
		t.Errorf("Expected Ping_MS 123.40, got %q", rows[1][4])
	}
	if rows[2][4] != "" {
		t.Errorf("Expected empty Ping_MS for untested config, got %q", rows[2][4])
	}
}

func TestWrite_Singbox(t *testing.T) {
	f, dir := testFormatter(t)
	results := testResults(t)

	_, err := f.Write(results, []Format{FormatSingbox}, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "vpn_singbox.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Outbounds []map[string]any `json:"outbounds"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("JSON parse: %v", err)
	}
	if len(doc.Outbounds) != 2 {
		t.Fatalf("Expected 2 outbounds, got %d", len(doc.Outbounds))
	}
	for _, ob := range doc.Outbounds {
		tag, _ := ob["tag"].(string)
		for _, r := range tag {
			valid := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
			if !valid {
				t.Errorf("Tag %q contains invalid character %q", tag, r)
			}
		}
	}
}

func TestWrite_Clash(t *testing.T) {
	f, dir := testFormatter(t)
	results := testResults(t)

	_, err := f.Write(results, []Format{FormatClash}, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "clash.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Proxies     []map[string]any `yaml:"proxies"`
		ProxyGroups []map[string]any `yaml:"proxy-groups"`
		Rules       []string         `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(doc.Proxies) != 2 {
		t.Fatalf("Expected 2 proxies, got %d", len(doc.Proxies))
	}
	if len(doc.ProxyGroups) != 2 {
		t.Fatalf("Expected 2 proxy groups, got %d", len(doc.ProxyGroups))
	}
	auto := doc.ProxyGroups[0]
	if auto["type"] != "url-test" || auto["interval"] != 300 || auto["url"] != urlTestTarget {
		t.Errorf("Unexpected auto group: %v", auto)
	}
	if len(doc.Rules) != 1 || !strings.HasPrefix(doc.Rules[0], "MATCH,") {
		t.Errorf("Unexpected rules: %v", doc.Rules)
	}
}

func TestWrite_EmptyInput(t *testing.T) {
	f, dir := testFormatter(t)

	summary, err := f.Write(nil, []Format{FormatRaw, FormatBase64, FormatReport}, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(summary.Written) != 3 {
		t.Fatalf("Expected 3 artifacts for empty input, got %v", summary.Written)
	}

	raw, _ := os.ReadFile(filepath.Join(dir, "vpn_subscription_raw.txt"))
	if len(raw) != 0 {
		t.Errorf("Expected empty raw file, got %q", raw)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "vpn_report.json"))
	var r map[string]any
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatal(err)
	}
	if r["total_configurations"] != float64(0) {
		t.Errorf("Expected total_configurations 0, got %v", r["total_configurations"])
	}
}

func TestWrite_XYZ(t *testing.T) {
	f, dir := testFormatter(t)
	results := testResults(t)

	_, err := f.Write(results, []Format{FormatXYZ}, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "xyz.txt"))
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	fields := strings.Split(lines[0], ",")
	if len(fields) != 3 || fields[1] != "h1.example" || fields[2] != "443" {
		t.Errorf("Unexpected xyz line: %q", lines[0])
	}
}

func TestWrite_NoStaleTemps(t *testing.T) {
	f, dir := testFormatter(t)

	// Simulate a crash leaving an old temp file behind.
	stale := filepath.Join(dir, ".vpn_subscription_raw.txt-123.tmp")
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := filepath.Join(dir, ".other-456.tmp")
	os.WriteFile(old, nil, 0o644)

	if _, err := f.Write(testResults(t), []Format{FormatRaw}, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Fresh temps (younger than the sweep age) survive; the sweep only
	// removes old ones, which we cannot age in a unit test. The write
	// itself must leave no temp of its own.
	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		name := entry.Name()
		if strings.Contains(name, "vpn_subscription_raw.txt-") && strings.HasSuffix(name, ".tmp") && name != filepath.Base(stale) {
			t.Errorf("Write left its own temp file: %s", name)
		}
	}
}

func TestWrite_Deterministic(t *testing.T) {
	f1, dir1 := testFormatter(t)
	f2, dir2 := testFormatter(t)
	results := testResults(t)

	formats := []Format{FormatRaw, FormatBase64, FormatCSV, FormatSingbox, FormatClash}
	if _, err := f1.Write(results, formats, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f2.Write(results, formats, Options{}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"vpn_subscription_raw.txt", "vpn_subscription_base64.txt", "vpn_detailed.csv", "vpn_singbox.json", "clash.yaml"} {
		a, _ := os.ReadFile(filepath.Join(dir1, name))
		b, _ := os.ReadFile(filepath.Join(dir2, name))
		if string(a) != string(b) {
			t.Errorf("Artifact %s is not deterministic", name)
		}
	}
}
