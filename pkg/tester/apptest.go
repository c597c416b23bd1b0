package tester

import (
	"context"
	"net/http"
	"time"

	"streamline-hq/streamline/pkg/vpncfg"
)

// RunAppTests performs the configured named HTTP probes and records each
// outcome on the result. App tests measure general internet reachability
// from this machine, not per-config tunnel quality; they run at most
// once per run and the outcome is stamped onto every result.
func (t *Tester) RunAppTests(ctx context.Context, results []*vpncfg.ConfigResult) {
	if len(t.cfg.AppTests) == 0 || len(results) == 0 {
		return
	}

	outcomes := make(map[string]*bool, len(t.cfg.AppTests))
	client := &http.Client{Timeout: t.connectTimeout("")}

	for name, target := range t.cfg.AppTests {
		ok := t.appProbe(ctx, client, target)
		outcomes[name] = &ok
	}

	for _, result := range results {
		if result.AppTestResults == nil {
			result.AppTestResults = make(map[string]*bool, len(outcomes))
		}
		for name, ok := range outcomes {
			result.AppTestResults[name] = ok
		}
	}
}

func (t *Tester) appProbe(ctx context.Context, client *http.Client, target string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}

// AppTestNames returns the configured app test names, for CSV column
// headers.
func (t *Tester) AppTestNames() []string {
	names := make([]string, 0, len(t.cfg.AppTests))
	for name := range t.cfg.AppTests {
		names = append(names, name)
	}
	return names
}
