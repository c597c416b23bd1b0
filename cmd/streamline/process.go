package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"streamline-hq/streamline/pkg/cli"
	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/pipeline"
)

var processFlags struct {
	formats      []string
	forceRefresh bool
	skipTests    bool
	outputDir    string
	concurrent   int
	timeout      time.Duration
	quiet        bool
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the aggregation pipeline once",
	Long: `Run the full aggregation pipeline: discover and validate sources,
fetch and parse subscription payloads, deduplicate, optionally test
reachability, score, and write the configured output artifacts.

Examples:
  # Full run with configured formats
  streamline process

  # Only the raw and base64 artifacts, bypassing the source cache
  streamline process --formats raw,base64 --force-refresh

  # Skip reachability testing (also implied by SKIP_NETWORK=true or CI)
  streamline process --skip-tests`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringSliceVar(&processFlags.formats, "formats", nil, "override output formats (comma-separated, or 'all')")
	processCmd.Flags().BoolVar(&processFlags.forceRefresh, "force-refresh", false, "bypass the source body cache")
	processCmd.Flags().BoolVar(&processFlags.skipTests, "skip-tests", false, "skip reachability testing")
	processCmd.Flags().StringVarP(&processFlags.outputDir, "output-dir", "o", "", "override output directory")
	processCmd.Flags().IntVar(&processFlags.concurrent, "concurrent", 0, "override fetch concurrency")
	processCmd.Flags().DurationVar(&processFlags.timeout, "timeout", 0, "override per-request fetch timeout")
	processCmd.Flags().BoolVarP(&processFlags.quiet, "quiet", "q", false, "suppress the progress bar")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if processFlags.outputDir != "" {
		cfg.Output.Dir = processFlags.outputDir
	}
	if processFlags.concurrent > 0 {
		cfg.Fetcher.ConcurrentLimit = processFlags.concurrent
	}
	if processFlags.timeout > 0 {
		cfg.Fetcher.Timeout = processFlags.timeout
	}

	// Fail on a bad format selection before wiring anything.
	var formats []output.Format
	if len(processFlags.formats) > 0 {
		if formats, err = output.ParseFormats(processFlags.formats); err != nil {
			return err
		}
	}

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if !processFlags.quiet {
		app.bus.Subscribe(fetchProgressSubscriber())
	}

	// Interrupting a run flushes the configs collected so far.
	ctx := cli.SetupSignalHandler()

	opts := pipeline.RunOptions{
		Formats:          formats,
		ForceRefresh:     processFlags.forceRefresh,
		SkipNetworkTests: processFlags.skipTests || config.SkipNetwork(),
	}

	start := time.Now()
	var result *pipeline.RunResult
	_, runErr := app.jobs.Run(ctx, "process", func(ctx context.Context) (any, error) {
		var err error
		result, err = app.orchestrator.Run(ctx, opts)
		return result, err
	})
	if runErr != nil && result == nil {
		return runErr
	}

	cli.PrintSummary(os.Stdout, cli.RunSummary{
		RunID:          result.RunID,
		Status:         result.Status,
		SourcesChecked: result.Sources,
		UniqueConfigs:  result.Total,
		Reachable:      result.Reachable,
		Elapsed:        time.Since(start),
	})
	for _, path := range result.Written {
		cli.PrintStep(os.Stdout, "wrote %s", path)
	}
	for format, ferr := range result.Failed {
		fmt.Printf("  FAILED %s: %v\n", format, ferr)
	}
	return runErr
}

// fetchProgressSubscriber renders a progress bar over the fetch stage,
// using the validated source count as the total.
func fetchProgressSubscriber() events.Subscriber {
	progress := cli.NewProgressReporter(os.Stdout)
	var fetched atomic.Int64

	return func(e events.Event) {
		switch e.Type {
		case events.ValidateDone:
			if checked, ok := e.Data["checked"].(int); ok && checked > 0 {
				progress.Start(int64(checked))
			}
		case events.FetchProgress:
			progress.Update(fetched.Add(1))
		case events.FetchDone:
			progress.Finish()
		}
	}
}
