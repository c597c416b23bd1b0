package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"streamline-hq/streamline/pkg/fetch"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/vpncfg"
)

var retestFlags struct {
	input   string
	formats []string
}

var retestCmd = &cobra.Command{
	Use:   "retest [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Re-test configs from an existing raw artifact",
	Long: `Re-probe the configs of a previous run without fetching sources.

The raw artifact (or the file given with --input) is parsed, every
config is reachability-tested, quality scores are recomputed, and the
output artifacts are rewritten.

Examples:
  # Re-test the configured raw artifact
  streamline retest

  # Re-test an arbitrary subscription file, writing only the CSV
  streamline retest --input backup.txt --formats csv`,
	RunE: runRetest,
}

func init() {
	rootCmd.AddCommand(retestCmd)

	retestCmd.Flags().StringVarP(&retestFlags.input, "input", "i", "", "subscription file to re-test (default: the raw artifact)")
	retestCmd.Flags().StringSliceVar(&retestFlags.formats, "formats", nil, "override output formats (comma-separated, or 'all')")
}

func runRetest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	input := retestFlags.input
	if len(args) == 1 {
		input = args[0]
	}
	if input == "" {
		input = app.formatter.Path(output.FormatRaw)
	}

	results, skipped, err := readConfigLines(input, cfg.Fetcher.MaxDecodeBytes)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no usable configs in %s", input)
	}
	if skipped > 0 {
		app.logger.Warn("skipped unusable lines", "file", input, "count", skipped)
	}

	formatNames := retestFlags.formats
	if len(formatNames) == 0 {
		formatNames = cfg.Output.Formats
	}
	formats, err := output.ParseFormats(formatNames)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app.tester.TestAll(ctx, results)
	app.tester.RunAppTests(ctx, results)

	scorer := vpncfg.NewHeuristicScorer()
	for _, result := range results {
		score := scorer.ScoreLine(result.RawConfig)
		result.QualityScore = &score
	}
	vpncfg.SortByQuality(results)

	summary, err := app.formatter.Write(results, formats, output.Options{
		IncludeHandshake: cfg.Tester.TLSHandshake,
		AppTestNames:     app.tester.AppTestNames(),
	})
	if err != nil {
		return err
	}

	reachable := 0
	for _, result := range results {
		if result.IsReachable {
			reachable++
		}
	}
	fmt.Printf("Re-tested %d configs, %d reachable\n", len(results), reachable)
	for _, path := range summary.Written {
		fmt.Printf("  wrote %s\n", path)
	}
	return nil
}

// readConfigLines parses a subscription file into results. The body is
// decoded the same way fetched source bodies are, so a base64 blob works
// as input just like a plain line list. Lines that parse keep their
// endpoint; valid-looking lines that do not still flow through raw
// outputs.
func readConfigLines(path string, maxDecode int64) ([]*vpncfg.ConfigResult, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var results []*vpncfg.ConfigResult
	skipped := 0

	for _, line := range fetch.DecodePayload(data, maxDecode) {
		if strings.HasPrefix(line, "#") {
			continue
		}

		parsed, err := vpncfg.Parse(line)
		if err != nil {
			if vpncfg.IsValidConfig(line) {
				results = append(results, &vpncfg.ConfigResult{
					RawConfig: line,
					Protocol:  vpncfg.Categorize(line),
				})
			} else {
				skipped++
			}
			continue
		}

		results = append(results, &vpncfg.ConfigResult{
			RawConfig:    line,
			Protocol:     parsed.Protocol,
			Host:         parsed.Host,
			Port:         parsed.Port,
			SemanticHash: parsed.SemanticHash(),
		})
	}
	return results, skipped, nil
}
