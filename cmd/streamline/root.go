package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"streamline-hq/streamline/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "streamline",
	Short: "Streamline - VPN subscription aggregation pipeline",
	Long: `Streamline collects VPN proxy configurations from public subscription
sources and turns them into deduplicated, quality-ranked artifacts.

It provides:
  - Source discovery, validation, and persistent reputation tracking
  - Rate-limited fetching with retries and per-host circuit breaking
  - Protocol-aware parsing and semantic deduplication
  - Optional TCP/TLS reachability testing and quality scoring
  - Atomic multi-format output (raw, base64, CSV, sing-box, Clash, ...)

For more information, visit: https://github.com/streamline-hq/streamline`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Configuration errors exit 2, runtime
// failures exit 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
