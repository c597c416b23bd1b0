package tester

import (
	"context"
	"os/exec"
	"time"

	"streamline-hq/streamline/pkg/vpncfg"
)

// RunTunnelTests launches the configured external runner once per config
// for at most TunnelTestCap configs. The runner receives the raw config
// line as its single argument; exit status zero marks the tunnel test
// passed. Disabled when no runner is configured.
func (t *Tester) RunTunnelTests(ctx context.Context, results []*vpncfg.ConfigResult) {
	if t.cfg.TunnelRunner == "" {
		return
	}

	limit := t.cfg.TunnelTestCap
	if limit <= 0 {
		limit = 10
	}

	tested := 0
	for _, result := range results {
		if tested >= limit {
			break
		}
		if !result.IsReachable {
			continue
		}
		ok := t.tunnelProbe(ctx, result.RawConfig)
		if result.AppTestResults == nil {
			result.AppTestResults = make(map[string]*bool, 1)
		}
		result.AppTestResults["tunnel"] = &ok
		tested++

		if ctx.Err() != nil {
			return
		}
	}
}

func (t *Tester) tunnelProbe(ctx context.Context, line string) bool {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.cfg.TunnelRunner, line)
	err := cmd.Run()
	if err != nil {
		t.logger.Debug("tunnel test failed", "error", err)
		return false
	}
	return true
}
