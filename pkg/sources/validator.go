package sources

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"streamline-hq/streamline/pkg/vpncfg"
)

// Health is the outcome of one source validation probe.
type Health struct {
	URL              string
	Accessible       bool
	ResponseTime     float64
	EstimatedConfigs int
	ProtocolsFound   []string
	ReliabilityScore float64
}

// Validator probes candidate sources and scores their reliability.
type Validator struct {
	timeout   time.Duration
	userAgent string
	maxBody   int64
	logger    *slog.Logger

	mu      sync.Mutex
	history map[string][]bool // last 10 probe outcomes per URL
}

// NewValidator creates a validator. timeout defaults to 12s.
func NewValidator(timeout time.Duration, userAgent string, maxBody int64, logger *slog.Logger) *Validator {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		timeout:   timeout,
		userAgent: userAgent,
		maxBody:   maxBody,
		logger:    logger.With("component", "sources.validator"),
		history:   make(map[string][]bool),
	}
}

// Validate probes one source with a single GET and scores it. Probe
// failures are not errors; they produce an inaccessible Health record.
func (v *Validator) Validate(ctx context.Context, url string) Health {
	health := Health{URL: url}

	probeCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	body, status := v.probe(probeCtx, url)
	health.ResponseTime = time.Since(start).Seconds()
	health.Accessible = status == http.StatusOK

	if health.Accessible {
		health.EstimatedConfigs, health.ProtocolsFound = countConfigs(body)
	}

	v.recordHistory(url, health.Accessible)
	health.ReliabilityScore = v.score(&health)

	v.logger.Debug("source validated",
		"url", url,
		"accessible", health.Accessible,
		"configs", health.EstimatedConfigs,
		"score", health.ReliabilityScore,
	)
	return health
}

func (v *Validator) probe(ctx context.Context, url string) (string, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBody))
	if err != nil {
		return "", 0
	}
	return string(body), resp.StatusCode
}

// score computes the reliability score:
// 0.3 base for accessible, up to 0.2 for latency, up to 0.3 for config
// count (thresholds 100/500/1000), up to 0.1 for protocol diversity,
// up to 0.1 for historical success over the last 10 checks, plus small
// URL keyword adjustments. Clamped to [0, 1].
func (v *Validator) score(h *Health) float64 {
	if !h.Accessible {
		return clamp(v.keywordAdjustment(h.URL))
	}

	score := 0.3

	// Faster responses earn more of the 0.2 latency budget.
	switch {
	case h.ResponseTime <= 1:
		score += 0.2
	case h.ResponseTime <= 3:
		score += 0.15
	case h.ResponseTime <= 6:
		score += 0.1
	case h.ResponseTime <= 10:
		score += 0.05
	}

	switch {
	case h.EstimatedConfigs >= 1000:
		score += 0.3
	case h.EstimatedConfigs >= 500:
		score += 0.2
	case h.EstimatedConfigs >= 100:
		score += 0.1
	}

	switch {
	case len(h.ProtocolsFound) >= 3:
		score += 0.1
	case len(h.ProtocolsFound) >= 2:
		score += 0.05
	}

	if rate, ok := v.historicalRate(h.URL); ok {
		score += 0.1 * rate
	}

	score += v.keywordAdjustment(h.URL)
	return clamp(score)
}

func (v *Validator) keywordAdjustment(url string) float64 {
	lower := strings.ToLower(url)
	adj := 0.0
	if strings.Contains(lower, "official") || strings.Contains(lower, "main") {
		adj += 0.05
	}
	if strings.Contains(lower, "temp") || strings.Contains(lower, "test") || strings.Contains(lower, "dev") {
		adj -= 0.1
	}
	return adj
}

func (v *Validator) recordHistory(url string, success bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ring := append(v.history[url], success)
	if len(ring) > 10 {
		ring = ring[len(ring)-10:]
	}
	v.history[url] = ring
}

func (v *Validator) historicalRate(url string) (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ring := v.history[url]
	if len(ring) == 0 {
		return 0, false
	}
	ok := 0
	for _, success := range ring {
		if success {
			ok++
		}
	}
	return float64(ok) / float64(len(ring)), true
}

// countConfigs counts lines starting with a known protocol scheme and
// collects the set of protocols seen.
func countConfigs(body string) (int, []string) {
	count := 0
	seen := make(map[vpncfg.Protocol]bool)

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		protocol := vpncfg.Categorize(line)
		if protocol == vpncfg.ProtocolUnknown {
			continue
		}
		count++
		seen[protocol] = true
	}

	protocols := make([]string, 0, len(seen))
	for protocol := range seen {
		protocols = append(protocols, string(protocol))
	}
	return count, protocols
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
