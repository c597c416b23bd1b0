package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"streamline-hq/streamline/pkg/cache"
	"streamline-hq/streamline/pkg/cli"
	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/fetch"
	"streamline-hq/streamline/pkg/jobs"
	"streamline-hq/streamline/pkg/output"
	"streamline-hq/streamline/pkg/pipeline"
	"streamline-hq/streamline/pkg/sources"
	"streamline-hq/streamline/pkg/telemetry/logging"
	"streamline-hq/streamline/pkg/telemetry/metrics"
	"streamline-hq/streamline/pkg/telemetry/tracing"
	"streamline-hq/streamline/pkg/tester"
)

// app holds the wired pipeline components shared by the CLI commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	collector    *metrics.Collector
	tracer       *tracing.Tracer
	store        *sources.Store
	bus          *events.Bus
	cache        *cache.Cache
	runLog       *events.RunLog
	tester       *tester.Tester
	formatter    *output.Formatter
	orchestrator *pipeline.Orchestrator
	jobs         *jobs.Registry
	jobsStore    jobs.Store
}

// loadConfig initializes the global configuration from the --config
// flag and returns it. Load or validation failures are configuration
// errors (exit 2).
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// buildApp wires every pipeline component from the configuration.
func buildApp(cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing setup failed: %w", err)
	}

	fetcher, err := fetch.New(&cfg.Fetcher, fetchMetrics(collector), logger)
	if err != nil {
		return nil, cli.NewConfigError("fetcher", err.Error())
	}

	store := sources.NewStore(cfg.Sources.File, cfg.Sources.PerformanceFile)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading source store: %w", err)
	}

	bus := events.NewBus(cfg.Events.QueueSize, cfg.Events.PublishTimeout, logger)
	tiered := cache.New(&cfg.Cache, cacheMetrics(collector), logger)
	runLog := events.NewRunLog(filepath.Join(cfg.Output.Dir, "runs.log"), cfg.Output.RunsLogMaxBytes)
	probe := tester.New(&cfg.Tester, testerMetrics(collector), logger)
	formatter := output.NewFormatter(&cfg.Output, logger)

	orchestrator := pipeline.New(pipeline.Deps{
		Config:    cfg,
		Fetcher:   fetcher,
		Discovery: sources.NewDiscovery(&cfg.Discovery, config.GitHubToken(), logger),
		Validator: sources.NewValidator(cfg.Sources.ValidateTimeout, cfg.Fetcher.UserAgent, cfg.Fetcher.MaxBodyBytes, logger),
		Store:     store,
		Tester:    probe,
		Formatter: formatter,
		Cache:     tiered,
		Bus:       bus,
		RunLog:    runLog,
		Metrics:   collector,
		Tracer:    tracer,
		Logger:    logger,
	})

	jobsStore, err := jobs.NewSQLiteStore(cfg.Jobs.Path)
	if err != nil {
		return nil, fmt.Errorf("opening job store: %w", err)
	}

	return &app{
		cfg:          cfg,
		logger:       logger,
		collector:    collector,
		tracer:       tracer,
		store:        store,
		bus:          bus,
		cache:        tiered,
		runLog:       runLog,
		tester:       probe,
		formatter:    formatter,
		orchestrator: orchestrator,
		jobs:         jobs.NewRegistry(jobsStore, logger),
		jobsStore:    jobsStore,
	}, nil
}

// Close releases every component. Safe to call once after any command.
func (a *app) Close() {
	a.bus.Close()
	a.cache.Close()
	if a.jobsStore != nil {
		if err := a.jobsStore.Close(); err != nil {
			a.logger.Warn("job store close failed", "error", err)
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}
}

func fetchMetrics(c *metrics.Collector) *metrics.FetchMetrics {
	if c == nil {
		return nil
	}
	return c.Fetch()
}

func cacheMetrics(c *metrics.Collector) *metrics.CacheMetrics {
	if c == nil {
		return nil
	}
	return c.Cache()
}

func testerMetrics(c *metrics.Collector) *metrics.TesterMetrics {
	if c == nil {
		return nil
	}
	return c.Tester()
}
