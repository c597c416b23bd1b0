package cli

import (
	"fmt"
	"io"
	"time"
)

// RunSummary is the compact per-run summary printed after a pipeline run.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Status         string        `json:"status"`
	SourcesChecked int           `json:"sources_checked"`
	ConfigsFetched int           `json:"configs_fetched"`
	UniqueConfigs  int           `json:"unique_configs"`
	Reachable      int           `json:"reachable"`
	Elapsed        time.Duration `json:"elapsed"`
}

// PrintSummary writes the compact run summary to w.
func PrintSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "\nRun %s: %s\n", s.RunID, s.Status)
	fmt.Fprintf(w, "  Sources checked:  %d\n", s.SourcesChecked)
	fmt.Fprintf(w, "  Configs fetched:  %d\n", s.ConfigsFetched)
	fmt.Fprintf(w, "  Unique configs:   %d\n", s.UniqueConfigs)
	fmt.Fprintf(w, "  Reachable:        %d\n", s.Reachable)
	fmt.Fprintf(w, "  Elapsed:          %s\n", s.Elapsed.Round(time.Millisecond))
}

// PrintStep writes a checked step line, matching the startup banner style.
func PrintStep(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ "+format+"\n", args...)
}
