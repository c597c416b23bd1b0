package config

import "time"

// DefaultUserAgent is the browser User-Agent sent with outbound requests.
// Many subscription hosts reject obvious non-browser clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultFormats is the artifact set written when no formats are
// configured.
var DefaultFormats = []string{"raw", "base64", "csv", "singbox", "clash", "report"}

// ApplyDefaults fills in default values for any unset configuration
// fields. It is called automatically by LoadConfig.
func ApplyDefaults(cfg *Config) {
	// Pipeline defaults
	if cfg.Pipeline.DiscoveryCap <= 0 {
		cfg.Pipeline.DiscoveryCap = 200
	}
	if cfg.Pipeline.FetchCap <= 0 {
		cfg.Pipeline.FetchCap = 200
	}
	if cfg.Pipeline.MinSourceScore <= 0 {
		cfg.Pipeline.MinSourceScore = 0.3
	}

	// Fetcher defaults
	if cfg.Fetcher.Timeout <= 0 {
		cfg.Fetcher.Timeout = 30 * time.Second
	}
	if cfg.Fetcher.Retries <= 0 {
		cfg.Fetcher.Retries = 3
	}
	if cfg.Fetcher.BaseDelay <= 0 {
		cfg.Fetcher.BaseDelay = time.Second
	}
	if cfg.Fetcher.MaxDelay <= 0 {
		cfg.Fetcher.MaxDelay = 8 * time.Second
	}
	if cfg.Fetcher.ConcurrentLimit <= 0 {
		cfg.Fetcher.ConcurrentLimit = 50
	}
	if cfg.Fetcher.HostRate <= 0 {
		cfg.Fetcher.HostRate = 5
	}
	if cfg.Fetcher.HostBurst <= 0 {
		cfg.Fetcher.HostBurst = 10
	}
	if cfg.Fetcher.BreakerThreshold <= 0 {
		cfg.Fetcher.BreakerThreshold = 3
	}
	if cfg.Fetcher.BreakerCooldown <= 0 {
		cfg.Fetcher.BreakerCooldown = 30 * time.Second
	}
	if cfg.Fetcher.MaxBodyBytes <= 0 {
		cfg.Fetcher.MaxBodyBytes = 2 << 20 // 2 MiB
	}
	if cfg.Fetcher.MaxDecodeBytes <= 0 {
		cfg.Fetcher.MaxDecodeBytes = 256 << 10 // 256 KiB
	}
	if cfg.Fetcher.UserAgent == "" {
		cfg.Fetcher.UserAgent = DefaultUserAgent
	}

	// Sources defaults
	if cfg.Sources.File == "" {
		cfg.Sources.File = "sources.yaml"
	}
	if cfg.Sources.PerformanceFile == "" {
		cfg.Sources.PerformanceFile = "source_performance.json"
	}
	if cfg.Sources.ValidateTimeout <= 0 {
		cfg.Sources.ValidateTimeout = 12 * time.Second
	}
	if cfg.Sources.HistoryLimit <= 0 {
		cfg.Sources.HistoryLimit = 100
	}
	if cfg.Sources.SuspendAfter <= 0 {
		cfg.Sources.SuspendAfter = 3
	}
	if cfg.Sources.RecoverAfter <= 0 {
		cfg.Sources.RecoverAfter = 2
	}

	// Discovery defaults
	if cfg.Discovery.CodeSearchEndpoint == "" {
		cfg.Discovery.CodeSearchEndpoint = "https://api.github.com/search/code"
	}
	if cfg.Discovery.CodeSearchPages <= 0 {
		cfg.Discovery.CodeSearchPages = 2
	}
	if cfg.Discovery.QuotaFloor <= 0 {
		cfg.Discovery.QuotaFloor = 3
	}

	// Dedup defaults
	if cfg.Dedup.BloomCapacity == 0 {
		cfg.Dedup.BloomCapacity = 1_000_000
	}
	if cfg.Dedup.BloomFPR <= 0 {
		cfg.Dedup.BloomFPR = 0.01
	}

	// Tester defaults
	if cfg.Tester.ConnectTimeout <= 0 {
		cfg.Tester.ConnectTimeout = 5 * time.Second
	}
	if cfg.Tester.HandshakeTimeout <= 0 {
		cfg.Tester.HandshakeTimeout = 5 * time.Second
	}
	if cfg.Tester.MaxPingMS <= 0 {
		cfg.Tester.MaxPingMS = 1000
	}
	if cfg.Tester.Concurrency <= 0 {
		cfg.Tester.Concurrency = 50
	}
	if cfg.Tester.TunnelTestCap <= 0 {
		cfg.Tester.TunnelTestCap = 10
	}

	// Cache defaults
	if cfg.Cache.L1MaxEntries <= 0 {
		cfg.Cache.L1MaxEntries = 1000
	}
	if cfg.Cache.L1MaxBytes <= 0 {
		cfg.Cache.L1MaxBytes = 100 << 20 // 100 MiB
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.SweepInterval <= 0 {
		cfg.Cache.SweepInterval = 60 * time.Second
	}
	if cfg.Cache.L2Address == "" {
		cfg.Cache.L2Address = "127.0.0.1:6379"
	}
	if cfg.Cache.L2Timeout <= 0 {
		cfg.Cache.L2Timeout = 2 * time.Second
	}

	// Output defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "output"
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = append([]string(nil), DefaultFormats...)
	}
	if cfg.Output.RunsLogMaxBytes <= 0 {
		cfg.Output.RunsLogMaxBytes = 1 << 20 // 1 MiB
	}

	// Events defaults
	if cfg.Events.QueueSize <= 0 {
		cfg.Events.QueueSize = 1024
	}
	if cfg.Events.PublishTimeout <= 0 {
		cfg.Events.PublishTimeout = time.Second
	}

	// Jobs defaults
	if cfg.Jobs.Path == "" {
		cfg.Jobs.Path = "streamline_jobs.db"
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "streamline"
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = "pipeline"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = "streamline"
	}
	if cfg.Telemetry.Tracing.SampleRatio <= 0 {
		cfg.Telemetry.Tracing.SampleRatio = 1.0
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
}

// NewDefault returns a Config populated entirely with defaults.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Tester.Enabled = true
	return cfg
}
