package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/jobs"
	"streamline-hq/streamline/pkg/pipeline"
	"streamline-hq/streamline/pkg/server"
)

var serverFlags struct {
	listenAddress string
}

var serverCmd = &cobra.Command{
	Use:       "server [api|all]",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"api", "all"},
	Short:     "Start the HTTP server",
	Long: `Start the HTTP server exposing run control, job and run history,
source records, artifact downloads, Prometheus metrics, and a live
event stream.

When jobs.schedule is configured, the pipeline also runs on that cron
schedule. Configuration is reloaded on file change and on demand via
POST /api/config/reload.

Examples:
  # Start with default config
  streamline server

  # Override the listen address
  streamline server --listen 0.0.0.0:8080

  # API only, without static artifact downloads
  streamline server api`,
	RunE: runServerCmd,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&serverFlags.listenAddress, "listen", "l", "", "override listen address")
}

func runServerCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serverFlags.listenAddress
	}

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Drop terminal jobs older than a week.
	if removed, err := app.jobs.Cleanup(ctx, 7*24*time.Hour); err != nil {
		app.logger.Warn("job cleanup failed", "error", err)
	} else if removed > 0 {
		app.logger.Info("pruned old jobs", "removed", removed)
	}

	// Scheduled runs share the job registry with the API.
	if cfg.Jobs.Schedule != "" {
		scheduler := jobs.NewScheduler(app.logger)
		_, err := scheduler.Schedule(cfg.Jobs.Schedule, func() {
			_, err := app.jobs.Run(ctx, "scheduled", func(ctx context.Context) (any, error) {
				return app.orchestrator.Run(ctx, pipeline.RunOptions{
					SkipNetworkTests: config.SkipNetwork(),
				})
			})
			if err != nil {
				app.logger.Error("scheduled run failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Reload on config file changes; failures keep the old config.
	reload := func() error { return config.ReloadConfig(cfgFile) }
	if watcher, err := config.NewWatcher(cfgFile, app.logger); err == nil {
		go func() {
			if err := watcher.Watch(ctx, reload); err != nil {
				app.logger.Warn("config watch stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	} else {
		app.logger.Warn("config watch unavailable", "error", err)
	}

	fmt.Printf("Streamline %s listening on %s\n", Version, cfg.Server.ListenAddress)

	srv := server.New(server.Deps{
		Config:           cfg,
		Orchestrator:     app.orchestrator,
		Jobs:             app.jobs,
		Store:            app.store,
		Bus:              app.bus,
		RunLog:           app.runLog,
		Metrics:          app.collector,
		Reload:           reload,
		DisableArtifacts: len(args) == 1 && args[0] == "api",
		Logger:           app.logger,
	})
	return srv.Start(ctx)
}
