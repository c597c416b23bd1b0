package vpncfg

import (
	"encoding/base64"
	"errors"
	"testing"
)

func vmessLine(t *testing.T, payload string) string {
	t.Helper()
	return "vmess://" + base64.StdEncoding.EncodeToString([]byte(payload))
}

// ============================================================================
// Categorize Tests
// ============================================================================

func TestCategorize(t *testing.T) {
	tests := []struct {
		line string
		want Protocol
	}{
		{"vmess://abc", ProtocolVMess},
		{"VLESS://u@h:443", ProtocolVLESS},
		{"trojan://pw@host:443", ProtocolTrojan},
		{"ss://xyz@h:8388", ProtocolSS},
		{"hy2://pw@h:443", ProtocolHysteria2},
		{"hysteria2://pw@h:443", ProtocolHysteria2},
		{"wg://h:51820", ProtocolWireGuard},
		{"socks5://u:p@h:1080", ProtocolSOCKS},
		{"https://example.com", ProtocolHTTP},
		{"ftp://h", ProtocolUnknown},
		{"not a uri", ProtocolUnknown},
		{"", ProtocolUnknown},
	}

	for _, tt := range tests {
		if got := Categorize(tt.line); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

// ============================================================================
// Endpoint Extraction Tests
// ============================================================================

func TestExtractEndpoint_Vmess(t *testing.T) {
	line := vmessLine(t, `{"add":"1.2.3.4","port":"443","id":"u1"}`)

	host, port, err := ExtractEndpoint(line)
	if err != nil {
		t.Fatalf("ExtractEndpoint: %v", err)
	}
	if host != "1.2.3.4" || port != 443 {
		t.Errorf("Expected 1.2.3.4:443, got %s:%d", host, port)
	}
}

func TestExtractEndpoint_VmessNumericPortAndURLSafe(t *testing.T) {
	payload := `{"add":"Host.Example","port":8443,"id":"u1"}`
	line := "vmess://" + base64.RawURLEncoding.EncodeToString([]byte(payload))

	host, port, err := ExtractEndpoint(line)
	if err != nil {
		t.Fatalf("ExtractEndpoint: %v", err)
	}
	if host != "host.example" {
		t.Errorf("Expected lowercased host, got %q", host)
	}
	if port != 8443 {
		t.Errorf("Expected port 8443, got %d", port)
	}
}

func TestExtractEndpoint_URI(t *testing.T) {
	host, port, err := ExtractEndpoint("trojan://pw@host.example:443#tag")
	if err != nil {
		t.Fatalf("ExtractEndpoint: %v", err)
	}
	if host != "host.example" || port != 443 {
		t.Errorf("Expected host.example:443, got %s:%d", host, port)
	}
}

func TestExtractEndpoint_Malformed(t *testing.T) {
	tests := []string{
		"vmess://!!!not-base64!!!",
		"vmess://" + base64.StdEncoding.EncodeToString([]byte("not json")),
		"vless://",
		"unknown://h:443",
	}
	for _, line := range tests {
		if _, _, err := ExtractEndpoint(line); err == nil {
			t.Errorf("Expected error for %q", line)
		}
	}
}

// ============================================================================
// Sanitizer Tests
// ============================================================================

func TestSanitizeHost_Rejects(t *testing.T) {
	bad := []string{"", "bad host", "host\nexample", "h'st", "a$b", "x;y"}
	for _, host := range bad {
		_, err := SanitizeHost(host)
		var sre *SecurityRejectError
		if !errors.As(err, &sre) {
			t.Errorf("Expected SecurityRejectError for %q, got %v", host, err)
		}
	}

	if got, err := SanitizeHost("Host.Example"); err != nil || got != "host.example" {
		t.Errorf("SanitizeHost(Host.Example) = %q, %v", got, err)
	}
}

func TestSanitizePort_Rejects(t *testing.T) {
	bad := []string{"0", "65536", "-1", "abc", ""}
	for _, port := range bad {
		_, err := SanitizePort(port)
		var sre *SecurityRejectError
		if !errors.As(err, &sre) {
			t.Errorf("Expected SecurityRejectError for port %q, got %v", port, err)
		}
	}

	if n, err := SanitizePort("65535"); err != nil || n != 65535 {
		t.Errorf("SanitizePort(65535) = %d, %v", n, err)
	}
}

func TestParse_SecurityReject(t *testing.T) {
	_, err := Parse("vless://u@bad%20host:443")
	if err == nil {
		t.Fatal("Expected rejection of host containing whitespace")
	}
}

// ============================================================================
// Semantic Hash Tests
// ============================================================================

func TestSemanticHash_ParamOrderAndFragment(t *testing.T) {
	a := "vless://u@h:443?security=tls&type=ws&path=/a#s1"
	b := "vless://u@h:443?type=ws&security=tls&path=/a#s2"

	ha, err := SemanticHash(a)
	if err != nil {
		t.Fatalf("SemanticHash: %v", err)
	}
	hb, err := SemanticHash(b)
	if err != nil {
		t.Fatalf("SemanticHash: %v", err)
	}
	if ha != hb {
		t.Errorf("Expected identical hashes, got %s vs %s", ha, hb)
	}
}

func TestSemanticHash_VmessRemarkIgnored(t *testing.T) {
	a := vmessLine(t, `{"add":"1.2.3.4","port":"443","id":"u1","ps":"Name One"}`)
	b := vmessLine(t, `{"add":"1.2.3.4","port":"443","id":"u1","ps":"Other"}`)

	ha, _ := SemanticHash(a)
	hb, _ := SemanticHash(b)
	if ha != hb {
		t.Error("Expected vmess remark to be excluded from the hash")
	}
}

func TestSemanticHash_Distinguishes(t *testing.T) {
	base := "trojan://pw@h:443"
	variants := []string{
		"trojan://pw@h:444",
		"trojan://pw@other:443",
		"trojan://pw2@h:443",
		"vless://pw@h:443",
	}

	hBase, err := SemanticHash(base)
	if err != nil {
		t.Fatalf("SemanticHash: %v", err)
	}
	for _, v := range variants {
		hv, err := SemanticHash(v)
		if err != nil {
			t.Fatalf("SemanticHash(%q): %v", v, err)
		}
		if hv == hBase {
			t.Errorf("Expected %q to hash differently from %q", v, base)
		}
	}
}

func TestSemanticHash_HostCaseInsensitive(t *testing.T) {
	ha, _ := SemanticHash("trojan://pw@Host.Example:443")
	hb, _ := SemanticHash("trojan://pw@host.example:443")
	if ha != hb {
		t.Error("Expected host case to be normalized")
	}
}

// ============================================================================
// Validity Tests
// ============================================================================

func TestIsValidConfig(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"vmess://abc123", true},
		{"trojan://pw@h:443#tag", true},
		{"vmess://", false},
		{"random text", false},
		{"vless://u@bad host:443", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidConfig(tt.line); got != tt.want {
			t.Errorf("IsValidConfig(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
