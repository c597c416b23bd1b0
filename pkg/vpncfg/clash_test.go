package vpncfg

import (
	"encoding/base64"
	"testing"
)

// ============================================================================
// Clash Expansion Tests
// ============================================================================

func TestParseToClash_Vmess(t *testing.T) {
	payload := `{"add":"1.2.3.4","port":"443","id":"a2f5c9e1-0000-4000-8000-000000000001","net":"ws","path":"/cdn","host":"front.example","tls":"tls","sni":"front.example"}`
	line := "vmess://" + base64.StdEncoding.EncodeToString([]byte(payload))

	proxy := ParseToClash(line, "p1")
	if proxy == nil {
		t.Fatal("Expected a proxy map")
	}
	if proxy["type"] != "vmess" || proxy["server"] != "1.2.3.4" || proxy["port"] != 443 {
		t.Errorf("Unexpected base fields: %v", proxy)
	}
	if proxy["cipher"] != "auto" {
		t.Errorf("Expected default cipher auto, got %v", proxy["cipher"])
	}
	if proxy["network"] != "ws" {
		t.Errorf("Expected ws network, got %v", proxy["network"])
	}
	opts, ok := proxy["ws-opts"].(map[string]any)
	if !ok {
		t.Fatal("Expected ws-opts")
	}
	if opts["path"] != "/cdn" {
		t.Errorf("Expected ws path /cdn, got %v", opts["path"])
	}
	headers, ok := opts["headers"].(map[string]any)
	if !ok || headers["Host"] != "front.example" {
		t.Errorf("Expected ws Host header, got %v", opts["headers"])
	}
	if proxy["tls"] != true || proxy["servername"] != "front.example" {
		t.Errorf("Expected TLS with servername, got %v", proxy)
	}
}

func TestParseToClash_VlessReality(t *testing.T) {
	line := "vless://a2f5c9e1-0000-4000-8000-000000000001@h.example:443?security=reality&pbk=PUBKEY&sid=ab12&flow=xtls-rprx-vision&fp=chrome&sni=cdn.example&type=tcp#tag"

	proxy := ParseToClash(line, "p2")
	if proxy == nil {
		t.Fatal("Expected a proxy map")
	}
	if proxy["uuid"] != "a2f5c9e1-0000-4000-8000-000000000001" {
		t.Errorf("Unexpected uuid: %v", proxy["uuid"])
	}
	opts, ok := proxy["reality-opts"].(map[string]any)
	if !ok {
		t.Fatal("Expected reality-opts")
	}
	if opts["public-key"] != "PUBKEY" || opts["short-id"] != "ab12" {
		t.Errorf("Unexpected reality-opts: %v", opts)
	}
	if proxy["flow"] != "xtls-rprx-vision" {
		t.Errorf("Expected flow, got %v", proxy["flow"])
	}
	if proxy["client-fingerprint"] != "chrome" {
		t.Errorf("Expected fingerprint, got %v", proxy["client-fingerprint"])
	}
	if proxy["servername"] != "cdn.example" {
		t.Errorf("Expected servername, got %v", proxy["servername"])
	}
}

func TestParseToClash_SS(t *testing.T) {
	auth := base64.RawURLEncoding.EncodeToString([]byte("aes-256-gcm:secret"))
	line := "ss://" + auth + "@h.example:8388#name"

	proxy := ParseToClash(line, "p3")
	if proxy == nil {
		t.Fatal("Expected a proxy map")
	}
	if proxy["cipher"] != "aes-256-gcm" || proxy["password"] != "secret" {
		t.Errorf("Unexpected ss credentials: %v", proxy)
	}
}

func TestParseToClash_Unsupported(t *testing.T) {
	if proxy := ParseToClash("wg://h.example:51820", "p4"); proxy != nil {
		t.Errorf("Expected nil for unsupported protocol, got %v", proxy)
	}
	if proxy := ParseToClash("garbage", "p5"); proxy != nil {
		t.Errorf("Expected nil for garbage, got %v", proxy)
	}
}

// ============================================================================
// Scorer Tests
// ============================================================================

func TestHeuristicScorer_Range(t *testing.T) {
	scorer := NewHeuristicScorer()
	lines := []string{
		"vless://a2f5c9e1-0000-4000-8000-000000000001@h:443?security=tls&sni=x.example",
		"trojan://pw@h:443",
		"ss://abc@h:8388",
		"vmess://bm90anNvbg==",
		"garbage line",
		"",
	}
	for _, line := range lines {
		score := scorer.ScoreLine(line)
		if score < 0 || score > 1 {
			t.Errorf("Score out of range for %q: %f", line, score)
		}
	}
}

func TestHeuristicScorer_Ordering(t *testing.T) {
	scorer := NewHeuristicScorer()

	strong := scorer.ScoreLine("vless://a2f5c9e1-0000-4000-8000-000000000001@h:443?security=tls&sni=x.example")
	weak := scorer.ScoreLine("ss://abc@h:12345")
	garbage := scorer.ScoreLine("something else entirely")

	if strong <= weak {
		t.Errorf("Expected TLS+UUID vless (%f) to outscore plain ss (%f)", strong, weak)
	}
	if garbage != 0 {
		t.Errorf("Expected unknown-scheme line to score 0, got %f", garbage)
	}
}
