package config

import "time"

// Config is the root configuration structure for Streamline.
// It contains all configuration sections for the aggregation pipeline,
// source management, output generation, caching, and telemetry.
type Config struct {
	// Pipeline contains run-level budgets and stage toggles for the
	// aggregation pipeline.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Fetcher contains HTTP fetching configuration including rate limits,
	// retries, circuit breaking, and body size caps.
	Fetcher FetcherConfig `yaml:"fetcher"`

	// Sources contains configuration for the persistent source store and
	// source validation.
	Sources SourcesConfig `yaml:"sources"`

	// Discovery contains configuration for source discovery (seed lists
	// and the bounded code-search harvester).
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Dedup contains deduplication and filtering configuration.
	Dedup DedupConfig `yaml:"dedup"`

	// Tester contains connection testing configuration.
	Tester TesterConfig `yaml:"tester"`

	// Cache contains the tiered cache configuration (in-process L1 and
	// optional remote L2).
	Cache CacheConfig `yaml:"cache"`

	// Output contains output artifact configuration: target directory,
	// enabled formats, and file name overrides.
	Output OutputConfig `yaml:"output"`

	// Events contains event bus configuration.
	Events EventsConfig `yaml:"events"`

	// Jobs contains the job registry configuration (SQLite persistence
	// and optional cron scheduling).
	Jobs JobsConfig `yaml:"jobs"`

	// Telemetry contains observability configuration: logging, metrics,
	// and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server contains configuration for the external HTTP interface.
	Server ServerConfig `yaml:"server"`
}

// PipelineConfig contains run-level budgets for the aggregation pipeline.
type PipelineConfig struct {
	// DiscoveryCap is the maximum number of candidate source URLs a run
	// will consider from discovery.
	// Default: 200
	DiscoveryCap int `yaml:"discovery_cap"`

	// FetchCap is the maximum number of sources fetched per run.
	// Default: 200
	FetchCap int `yaml:"fetch_cap"`

	// TestCap bounds the number of configs passed to the connection
	// tester. Zero means no cap.
	// Default: 0
	TestCap int `yaml:"test_cap"`

	// WallClock is an optional total run deadline. Zero means unlimited.
	// Default: 0
	WallClock time.Duration `yaml:"wall_clock"`

	// MinSourceScore is the minimum reliability score a source must reach
	// to be fetched. Per-URL overrides in sources.yaml take precedence.
	// Default: 0.3
	MinSourceScore float64 `yaml:"min_source_score"`
}

// FetcherConfig contains HTTP fetcher configuration.
type FetcherConfig struct {
	// Timeout is the per-request timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the number of retry attempts for retryable failures.
	// Default: 3
	Retries int `yaml:"retries"`

	// BaseDelay is the base delay for exponential backoff between retries.
	// Default: 1s
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the exponential backoff delay.
	// Default: 8s
	MaxDelay time.Duration `yaml:"max_delay"`

	// ConcurrentLimit is the global cap on in-flight fetches.
	// Default: 50
	ConcurrentLimit int `yaml:"concurrent_limit"`

	// HostRate is the per-host token refill rate in requests per second.
	// Default: 5
	HostRate float64 `yaml:"host_rate"`

	// HostBurst is the per-host token bucket capacity.
	// Default: 10
	HostBurst int `yaml:"host_burst"`

	// BreakerThreshold is the number of consecutive failures that opens
	// a per-host circuit breaker.
	// Default: 3
	BreakerThreshold int `yaml:"breaker_threshold"`

	// BreakerCooldown is how long an open breaker blocks requests before
	// allowing a half-open trial.
	// Default: 30s
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`

	// MaxBodyBytes caps source body sizes. Larger bodies are truncated
	// at the cap and counted as failures.
	// Default: 2097152 (2 MiB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// MaxDecodeBytes caps bodies routed through base64 decode paths.
	// Default: 262144 (256 KiB)
	MaxDecodeBytes int64 `yaml:"max_decode_bytes"`

	// Proxy is an optional proxy URL for outbound requests.
	Proxy string `yaml:"proxy"`

	// UserAgent is the User-Agent header sent with every request.
	// Default: a current desktop browser UA string.
	UserAgent string `yaml:"user_agent"`
}

// SourcesConfig contains source store and validator configuration.
type SourcesConfig struct {
	// File is the path of the editable tiered source list.
	// Default: "sources.yaml"
	File string `yaml:"file"`

	// PerformanceFile is the path of the engine-managed per-URL
	// performance and state file.
	// Default: "source_performance.json"
	PerformanceFile string `yaml:"performance_file"`

	// ValidateTimeout is the per-source validation probe timeout.
	// Default: 12s
	ValidateTimeout time.Duration `yaml:"validate_timeout"`

	// HistoryLimit bounds the per-source check history ring.
	// Default: 100
	HistoryLimit int `yaml:"history_limit"`

	// SuspendAfter is the number of consecutive failures that suspends
	// a source.
	// Default: 3
	SuspendAfter int `yaml:"suspend_after"`

	// RecoverAfter is the number of consecutive successes that moves a
	// suspended source back to probation.
	// Default: 2
	RecoverAfter int `yaml:"recover_after"`
}

// DiscoveryConfig contains source discovery configuration.
type DiscoveryConfig struct {
	// Seeds is the static list of seed subscription URLs.
	Seeds []string `yaml:"seeds"`

	// CodeSearch enables the bounded code-search harvester.
	// Default: false
	CodeSearch bool `yaml:"code_search"`

	// CodeSearchEndpoint is the code-search API endpoint.
	// Default: "https://api.github.com/search/code"
	CodeSearchEndpoint string `yaml:"code_search_endpoint"`

	// CodeSearchQueries are the search queries issued against the index.
	CodeSearchQueries []string `yaml:"code_search_queries"`

	// CodeSearchPages bounds the number of result pages per query.
	// Default: 2
	CodeSearchPages int `yaml:"code_search_pages"`

	// QuotaFloor pauses code search when the remaining API quota drops
	// to or below this value.
	// Default: 3
	QuotaFloor int `yaml:"quota_floor"`
}

// DedupConfig contains deduplication and filter pipeline configuration.
type DedupConfig struct {
	// BloomCapacity sizes the bloom filter for the expected number of
	// unique configs.
	// Default: 1000000
	BloomCapacity uint `yaml:"bloom_capacity"`

	// BloomFPR is the bloom filter's target false positive rate.
	// Default: 0.01
	BloomFPR float64 `yaml:"bloom_fpr"`

	// TLSFragment, when set, keeps only configs containing this
	// substring.
	TLSFragment string `yaml:"tls_fragment"`

	// IncludeProtocols restricts output to these protocols when
	// non-empty.
	IncludeProtocols []string `yaml:"include_protocols"`

	// ExcludeProtocols drops these protocols.
	ExcludeProtocols []string `yaml:"exclude_protocols"`

	// IncludeCountries restricts output to these countries when
	// non-empty (requires enrichment).
	IncludeCountries []string `yaml:"include_countries"`

	// ExcludeCountries drops these countries.
	ExcludeCountries []string `yaml:"exclude_countries"`

	// IncludePatterns keeps only configs matching at least one of these
	// regular expressions when non-empty.
	IncludePatterns []string `yaml:"include_patterns"`

	// ExcludePatterns drops configs matching any of these regular
	// expressions.
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

// TesterConfig contains connection tester configuration.
type TesterConfig struct {
	// Enabled turns on reachability testing.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ConnectTimeout is the per-probe TCP connect timeout.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// HandshakeTimeout is the TLS handshake timeout for TLS-like
	// protocols.
	// Default: 5s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// MaxPingMS is the reachability ceiling: a config is reachable only
	// if its measured ping is at or below this many milliseconds.
	// Default: 1000
	MaxPingMS int `yaml:"max_ping_ms"`

	// Concurrency is the default per-protocol probe concurrency.
	// Default: 50
	Concurrency int `yaml:"concurrency"`

	// ProtocolConcurrency overrides probe concurrency per protocol,
	// keyed by lowercase protocol name.
	ProtocolConcurrency map[string]int `yaml:"protocol_concurrency"`

	// ProtocolTimeouts overrides connect timeouts per protocol, keyed by
	// lowercase protocol name.
	ProtocolTimeouts map[string]time.Duration `yaml:"protocol_timeouts"`

	// TLSHandshake enables TLS handshake probes for TLS-like protocols.
	// Default: false
	TLSHandshake bool `yaml:"tls_handshake"`

	// AppTests lists named HTTP probe targets (name -> URL) used for
	// optional application-level checks.
	AppTests map[string]string `yaml:"app_tests"`

	// TunnelRunner is the path of an external per-config tunnel test
	// runner. Empty disables tunnel tests.
	TunnelRunner string `yaml:"tunnel_runner"`

	// TunnelTestCap bounds the number of tunnel tests per run.
	// Default: 10
	TunnelTestCap int `yaml:"tunnel_test_cap"`
}

// CacheConfig contains tiered cache configuration.
type CacheConfig struct {
	// L1MaxEntries bounds the in-process cache entry count.
	// Default: 1000
	L1MaxEntries int `yaml:"l1_max_entries"`

	// L1MaxBytes bounds the in-process cache's estimated memory use.
	// Default: 104857600 (100 MiB)
	L1MaxBytes int64 `yaml:"l1_max_bytes"`

	// TTL is the default entry time-to-live.
	// Default: 1h
	TTL time.Duration `yaml:"ttl"`

	// SweepInterval is how often the background sweeper evicts expired
	// entries.
	// Default: 60s
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// L2Enabled turns on the remote L2 tier.
	// Default: false
	L2Enabled bool `yaml:"l2_enabled"`

	// L2Address is the redis address of the L2 tier.
	// Default: "127.0.0.1:6379"
	L2Address string `yaml:"l2_address"`

	// L2Password is the optional redis password.
	L2Password string `yaml:"l2_password"`

	// L2DB is the redis database number.
	// Default: 0
	L2DB int `yaml:"l2_db"`

	// L2Timeout is the per-operation L2 timeout. L2 failures are never
	// fatal.
	// Default: 2s
	L2Timeout time.Duration `yaml:"l2_timeout"`
}

// OutputConfig contains output artifact configuration.
type OutputConfig struct {
	// Dir is the output directory for all artifacts.
	// Default: "output"
	Dir string `yaml:"dir"`

	// Formats selects the artifacts to write. The literal "all" expands
	// to the full format set. Unknown formats are configuration errors.
	// Default: ["raw", "base64", "csv", "singbox", "clash", "report"]
	Formats []string `yaml:"formats"`

	// Files overrides artifact file names, keyed by format name.
	Files map[string]string `yaml:"files"`

	// RunsLogMaxBytes prunes runs.log when it grows beyond this size.
	// Default: 1048576 (1 MiB)
	RunsLogMaxBytes int64 `yaml:"runs_log_max_bytes"`
}

// EventsConfig contains event bus configuration.
type EventsConfig struct {
	// QueueSize bounds the bus queue. Publishers block (bounded wait)
	// when the queue is full.
	// Default: 1024
	QueueSize int `yaml:"queue_size"`

	// PublishTimeout is the bounded wait for a full queue before an
	// event is dropped.
	// Default: 1s
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// JobsConfig contains job registry configuration.
type JobsConfig struct {
	// Path is the SQLite database path for job persistence.
	// Default: "streamline_jobs.db"
	Path string `yaml:"path"`

	// Schedule is an optional cron expression for periodic pipeline
	// runs. Empty disables scheduling.
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text", "console").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled turns on metrics collection.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "streamline"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "pipeline"
	Subsystem string `yaml:"subsystem"`

	// Path is the metrics endpoint path on the server.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled turns on tracing. When disabled a noop tracer is used.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName identifies this service in traces.
	// Default: "streamline"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the trace sampling ratio in [0,1].
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ServerConfig contains the external HTTP interface configuration.
type ServerConfig struct {
	// ListenAddress is the address the server listens on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
