package vpncfg

import (
	"strings"

	"github.com/google/uuid"
)

// Scorer orders configs for output. Higher is better.
type Scorer interface {
	ScoreLine(line string) float64
}

// HeuristicScorer is the default Scorer. It rewards secure protocols,
// TLS parameters, common ports, valid UUIDs, and well-formed base64
// payloads, and penalizes noisy lines. Scores fall in [0, 1].
type HeuristicScorer struct{}

// NewHeuristicScorer creates the default scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// commonPorts are ports routinely used by real proxy deployments.
var commonPorts = map[int]bool{
	443: true, 8443: true, 2053: true, 2083: true,
	2087: true, 2096: true, 80: true, 8080: true,
}

// ScoreLine scores one config line in [0, 1].
func (s *HeuristicScorer) ScoreLine(line string) float64 {
	line = strings.TrimSpace(line)
	score := 0.3

	protocol := Categorize(line)
	switch protocol {
	case ProtocolVLESS, ProtocolReality, ProtocolTrojan:
		score += 0.2
	case ProtocolVMess, ProtocolHysteria2, ProtocolTUIC:
		score += 0.1
	case ProtocolUnknown:
		return 0
	}

	parsed, err := Parse(line)
	if err != nil {
		// Unparseable but recognized lines keep a floor score so they
		// can still appear late in raw output.
		return clamp(score - 0.2)
	}

	if commonPorts[parsed.Port] {
		score += 0.1
	}
	if parsed.Params["security"] == "tls" || parsed.Params["security"] == "reality" || parsed.Params["tls"] == "tls" {
		score += 0.15
	}
	if parsed.Params["sni"] != "" {
		score += 0.05
	}

	// A valid UUID credential signals a real generator, not noise.
	if id := credentialOf(parsed); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			score += 0.15
		}
	}

	if protocol == ProtocolVMess {
		score += 0.05 // survived a structured base64 JSON decode
	}

	score -= specialCharPenalty(line)
	return clamp(score)
}

func credentialOf(p *Parsed) string {
	if id := p.Params["id"]; id != "" {
		return id
	}
	auth := p.Params["auth"]
	if idx := strings.IndexByte(auth, ':'); idx >= 0 {
		return auth[:idx]
	}
	return auth
}

// specialCharPenalty penalizes lines cluttered with characters that
// rarely appear in machine-generated configs.
func specialCharPenalty(line string) float64 {
	noisy := 0
	for _, r := range line {
		if strings.ContainsRune("<>{}|^\"'`", r) {
			noisy++
		}
	}
	return float64(noisy) * 0.05
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
