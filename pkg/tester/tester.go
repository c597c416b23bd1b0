package tester

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/telemetry/metrics"
	"streamline-hq/streamline/pkg/vpncfg"
)

// Tester probes config endpoints for reachability.
//
// Each probe is a TCP connect, optionally followed by a TLS handshake
// for TLS-like protocols. Concurrency is bounded per protocol: each
// lowercase protocol name gets its own semaphore, sized by the default
// concurrency or a per-protocol override.
type Tester struct {
	cfg     *config.TesterConfig
	metrics *metrics.TesterMetrics
	logger  *slog.Logger

	mu   sync.Mutex
	sems map[string]chan struct{}
}

// New creates a tester. metrics may be nil.
func New(cfg *config.TesterConfig, m *metrics.TesterMetrics, logger *slog.Logger) *Tester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tester{
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "tester"),
		sems:    make(map[string]chan struct{}),
	}
}

// TestAll probes every config concurrently, bounded per protocol, and
// updates each result in place. Completion order is not deterministic.
func (t *Tester) TestAll(ctx context.Context, results []*vpncfg.ConfigResult) {
	var wg sync.WaitGroup
	for _, result := range results {
		if result.Host == "" || result.Port == 0 {
			continue
		}
		wg.Add(1)
		go func(r *vpncfg.ConfigResult) {
			defer wg.Done()
			t.Test(ctx, r)
		}(result)
	}
	wg.Wait()
}

// Test probes one config, blocking on its protocol's semaphore, and
// updates the result in place. Failures never return an error; they mark
// the result unreachable.
func (t *Tester) Test(ctx context.Context, result *vpncfg.ConfigResult) {
	sem := t.semaphore(result.Protocol)
	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		return
	}

	start := time.Now()
	err := t.probe(ctx, result)
	elapsed := time.Since(start)

	if err != nil {
		result.PingTime = nil
		result.IsReachable = false
		if t.metrics != nil {
			t.metrics.RecordProbe(string(result.Protocol), "error", elapsed)
		}
		return
	}

	ping := elapsed.Seconds()
	result.PingTime = &ping
	result.IsReachable = elapsed <= time.Duration(t.cfg.MaxPingMS)*time.Millisecond

	if t.metrics != nil {
		outcome := "unreachable"
		if result.IsReachable {
			outcome = "reachable"
		}
		t.metrics.RecordProbe(string(result.Protocol), outcome, elapsed)
	}
}

// probe performs the TCP connect and optional TLS handshake under a
// per-probe deadline.
func (t *Tester) probe(ctx context.Context, result *vpncfg.ConfigResult) error {
	timeout := t.connectTimeout(result.Protocol)
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{}
	addr := net.JoinHostPort(result.Host, strconv.Itoa(result.Port))
	conn, err := dialer.DialContext(probeCtx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if t.cfg.TLSHandshake && result.Protocol.TLSLike() {
		ok := t.handshake(ctx, conn, result.Host)
		result.HandshakeOK = &ok
	}
	return nil
}

// handshake attempts a TLS handshake on an established connection.
// Certificate verification is skipped: proxy endpoints routinely present
// self-signed or mismatched certificates, and reachability is the only
// question here.
func (t *Tester) handshake(ctx context.Context, conn net.Conn, host string) bool {
	timeout := t.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
	})
	return tlsConn.HandshakeContext(hsCtx) == nil
}

// semaphore returns the protocol's semaphore, creating it on first use.
func (t *Tester) semaphore(protocol vpncfg.Protocol) chan struct{} {
	key := strings.ToLower(string(protocol))

	t.mu.Lock()
	defer t.mu.Unlock()

	sem, ok := t.sems[key]
	if !ok {
		capacity := t.cfg.Concurrency
		if override, ok := t.cfg.ProtocolConcurrency[key]; ok && override > 0 {
			capacity = override
		}
		if capacity <= 0 {
			capacity = 50
		}
		sem = make(chan struct{}, capacity)
		t.sems[key] = sem
	}
	return sem
}

func (t *Tester) connectTimeout(protocol vpncfg.Protocol) time.Duration {
	key := strings.ToLower(string(protocol))
	if override, ok := t.cfg.ProtocolTimeouts[key]; ok && override > 0 {
		return override
	}
	if t.cfg.ConnectTimeout > 0 {
		return t.cfg.ConnectTimeout
	}
	return 5 * time.Second
}
