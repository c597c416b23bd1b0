package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. A missing file is not an error: defaults are used.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	// On-by-default booleans are seeded before unmarshalling; yaml only
	// overwrites fields the file actually names, so an absent key keeps
	// the feature on while an explicit "enabled: false" wins.
	cfg.Tester.Enabled = true
	cfg.Telemetry.Metrics.Enabled = true

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Run entirely from defaults when no config file exists.
	default:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow the
// naming convention STREAMLINE_SECTION_FIELD
// (e.g. STREAMLINE_OUTPUT_DIR); a handful of legacy keys
// (VPN_CONCURRENT_LIMIT, OUTPUT_DIR, SKIP_NETWORK, CI) are also honored.
// Environment variables always take precedence over file-based
// configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// SkipNetwork reports whether network-dependent stages should be skipped.
// It is true when SKIP_NETWORK is set truthy, or when running under CI
// without an explicit SKIP_NETWORK=false.
func SkipNetwork() bool {
	if val := os.Getenv("SKIP_NETWORK"); val != "" {
		b, err := strconv.ParseBool(val)
		return err == nil && b
	}
	if val := os.Getenv("CI"); val != "" {
		b, err := strconv.ParseBool(val)
		return err == nil && b
	}
	return false
}

// GitHubToken returns the token used by the discovery code search, if any.
func GitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Legacy keys, kept for compatibility with existing deployments.
	if val := os.Getenv("VPN_CONCURRENT_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			cfg.Fetcher.ConcurrentLimit = i
		}
	}
	if val := os.Getenv("OUTPUT_DIR"); val != "" {
		cfg.Output.Dir = val
	}

	// Pipeline overrides
	if val := os.Getenv("STREAMLINE_PIPELINE_DISCOVERY_CAP"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Pipeline.DiscoveryCap = i
		}
	}
	if val := os.Getenv("STREAMLINE_PIPELINE_FETCH_CAP"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Pipeline.FetchCap = i
		}
	}
	if val := os.Getenv("STREAMLINE_PIPELINE_TEST_CAP"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Pipeline.TestCap = i
		}
	}
	if val := os.Getenv("STREAMLINE_PIPELINE_WALL_CLOCK"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Pipeline.WallClock = d
		}
	}
	if val := os.Getenv("STREAMLINE_PIPELINE_MIN_SOURCE_SCORE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Pipeline.MinSourceScore = f
		}
	}

	// Fetcher overrides
	if val := os.Getenv("STREAMLINE_FETCHER_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Fetcher.Timeout = d
		}
	}
	if val := os.Getenv("STREAMLINE_FETCHER_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Fetcher.Retries = i
		}
	}
	if val := os.Getenv("STREAMLINE_FETCHER_CONCURRENT_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			cfg.Fetcher.ConcurrentLimit = i
		}
	}
	if val := os.Getenv("STREAMLINE_FETCHER_PROXY"); val != "" {
		cfg.Fetcher.Proxy = val
	}

	// Sources overrides
	if val := os.Getenv("STREAMLINE_SOURCES_FILE"); val != "" {
		cfg.Sources.File = val
	}
	if val := os.Getenv("STREAMLINE_SOURCES_PERFORMANCE_FILE"); val != "" {
		cfg.Sources.PerformanceFile = val
	}

	// Discovery overrides
	if val := os.Getenv("STREAMLINE_DISCOVERY_CODE_SEARCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Discovery.CodeSearch = b
		}
	}

	// Tester overrides
	if val := os.Getenv("STREAMLINE_TESTER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Tester.Enabled = b
		}
	}
	if val := os.Getenv("STREAMLINE_TESTER_MAX_PING_MS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Tester.MaxPingMS = i
		}
	}

	// Cache overrides
	if val := os.Getenv("STREAMLINE_CACHE_L2_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Cache.L2Enabled = b
		}
	}
	if val := os.Getenv("STREAMLINE_CACHE_L2_ADDRESS"); val != "" {
		cfg.Cache.L2Address = val
	}

	// Output overrides
	if val := os.Getenv("STREAMLINE_OUTPUT_DIR"); val != "" {
		cfg.Output.Dir = val
	}
	if val := os.Getenv("STREAMLINE_OUTPUT_FORMATS"); val != "" {
		cfg.Output.Formats = splitList(val)
	}

	// Telemetry overrides
	if val := os.Getenv("STREAMLINE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("STREAMLINE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("STREAMLINE_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("STREAMLINE_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("STREAMLINE_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}

	// Server overrides
	if val := os.Getenv("STREAMLINE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}

	// Jobs overrides
	if val := os.Getenv("STREAMLINE_JOBS_PATH"); val != "" {
		cfg.Jobs.Path = val
	}
	if val := os.Getenv("STREAMLINE_JOBS_SCHEDULE"); val != "" {
		cfg.Jobs.Schedule = val
	}
}

// splitList splits a comma-separated environment value into trimmed,
// non-empty elements.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
