package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"streamline-hq/streamline/pkg/cli"
	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/sources"
)

var validateFlags struct {
	probeSources bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and optionally probe sources",
	Long: `Validate the configuration file: defaults are applied, environment
overrides are honored, and the result is checked for consistency.

With --sources, every source in the store is also probed and its
accessibility and estimated config count are printed. Probes update
the persistent reputation records.

Examples:
  # Validate the config file only
  streamline validate

  # Also probe every known source
  streamline validate --sources`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.probeSources, "sources", false, "probe every source in the store")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}
	fmt.Printf("Configuration valid: %s\n", cfgFile)

	if !validateFlags.probeSources {
		return nil
	}

	store := sources.NewStore(cfg.Sources.File, cfg.Sources.PerformanceFile)
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading source store: %w", err)
	}

	validator := sources.NewValidator(cfg.Sources.ValidateTimeout, cfg.Fetcher.UserAgent, cfg.Fetcher.MaxBodyBytes, nil)

	accessible := 0
	records := store.Snapshot()
	for _, m := range records {
		health := validator.Validate(cmd.Context(), m.URL)

		status := "DOWN"
		if health.Accessible {
			status = "OK"
			accessible++
		}
		fmt.Printf("  %-4s %s (score %.2f, ~%d configs)\n",
			status, m.URL, health.ReliabilityScore, health.EstimatedConfigs)

		if err := store.Update(m.URL, func(rec *sources.Metadata) {
			rec.RecordCheck(health.Accessible, health.ResponseTime, health.EstimatedConfigs, cfg.Sources.HistoryLimit)
			rec.ReputationScore = health.ReliabilityScore
		}); err != nil {
			return err
		}
	}

	fmt.Printf("%d/%d sources accessible\n", accessible, len(records))
	return nil
}
