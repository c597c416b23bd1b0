package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"streamline-hq/streamline/pkg/cli"
	"streamline-hq/streamline/pkg/sources"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage the subscription source list",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sources with their state and reputation",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSourceStore()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "URL\tTIER\tSTATE\tSCORE\tOK\tFAIL")
		for _, m := range store.Snapshot() {
			state := string(m.State)
			if m.IsBlacklisted {
				state = "blacklisted"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%d\n",
				m.URL, m.Tier, state, m.ReputationScore, m.SuccessCount, m.FailureCount)
		}
		return w.Flush()
	},
}

var sourcesAddFlags struct {
	tier   string
	weight float64
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a source URL to the tiered list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tier := sources.Tier(sourcesAddFlags.tier)
		switch tier {
		case sources.TierPremium, sources.TierReliable, sources.TierBulk, sources.TierExperimental:
		default:
			return cli.NewConfigError("tier", fmt.Sprintf("unknown tier %q", sourcesAddFlags.tier))
		}

		store, err := openSourceStore()
		if err != nil {
			return err
		}
		if err := store.AddAtomic(args[0], tier, sourcesAddFlags.weight); err != nil {
			return err
		}
		fmt.Printf("Added %s (tier %s)\n", args[0], tier)
		return nil
	},
}

var sourcesBlacklistCmd = &cobra.Command{
	Use:   "blacklist <url>",
	Short: "Blacklist a source so it is never fetched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSourceStore()
		if err != nil {
			return err
		}
		if err := store.Blacklist(args[0]); err != nil {
			return err
		}
		fmt.Printf("Blacklisted %s\n", args[0])
		return nil
	},
}

var sourcesWhitelistCmd = &cobra.Command{
	Use:   "whitelist <url>",
	Short: "Remove a source from the blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSourceStore()
		if err != nil {
			return err
		}
		if err := store.Whitelist(args[0]); err != nil {
			return err
		}
		fmt.Printf("Whitelisted %s\n", args[0])
		return nil
	},
}

func openSourceStore() (*sources.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store := sources.NewStore(cfg.Sources.File, cfg.Sources.PerformanceFile)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading source store: %w", err)
	}
	return store, nil
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesBlacklistCmd)
	sourcesCmd.AddCommand(sourcesWhitelistCmd)

	sourcesAddCmd.Flags().StringVar(&sourcesAddFlags.tier, "tier", "experimental", "source tier: premium, reliable, bulk, experimental")
	sourcesAddCmd.Flags().Float64Var(&sourcesAddFlags.weight, "weight", 0.5, "source weight in [0,1]")
}
