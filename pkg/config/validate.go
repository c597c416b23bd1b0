package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns the first error found, or nil if the configuration is valid.
func Validate(cfg *Config) error {
	if cfg.Pipeline.MinSourceScore < 0 || cfg.Pipeline.MinSourceScore > 1 {
		return fmt.Errorf("pipeline.min_source_score must be in [0,1], got %v",
			cfg.Pipeline.MinSourceScore)
	}

	if cfg.Fetcher.Proxy != "" {
		if _, err := url.Parse(cfg.Fetcher.Proxy); err != nil {
			return fmt.Errorf("fetcher.proxy is not a valid URL: %w", err)
		}
	}
	if cfg.Fetcher.MaxDecodeBytes > cfg.Fetcher.MaxBodyBytes {
		return fmt.Errorf("fetcher.max_decode_bytes (%d) exceeds fetcher.max_body_bytes (%d)",
			cfg.Fetcher.MaxDecodeBytes, cfg.Fetcher.MaxBodyBytes)
	}

	for _, seed := range cfg.Discovery.Seeds {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("discovery.seeds contains invalid URL %q", seed)
		}
	}

	if cfg.Dedup.BloomFPR >= 1 {
		return fmt.Errorf("dedup.bloom_fpr must be below 1, got %v", cfg.Dedup.BloomFPR)
	}
	for _, pattern := range cfg.Dedup.IncludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("dedup.include_patterns: invalid regexp %q: %w", pattern, err)
		}
	}
	for _, pattern := range cfg.Dedup.ExcludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("dedup.exclude_patterns: invalid regexp %q: %w", pattern, err)
		}
	}

	if cfg.Tester.MaxPingMS <= 0 {
		return fmt.Errorf("tester.max_ping_ms must be positive, got %d", cfg.Tester.MaxPingMS)
	}
	for proto, n := range cfg.Tester.ProtocolConcurrency {
		if n <= 0 {
			return fmt.Errorf("tester.protocol_concurrency[%s] must be positive, got %d", proto, n)
		}
	}

	if cfg.Telemetry.Tracing.SampleRatio < 0 || cfg.Telemetry.Tracing.SampleRatio > 1 {
		return fmt.Errorf("telemetry.tracing.sample_ratio must be in [0,1], got %v",
			cfg.Telemetry.Tracing.SampleRatio)
	}

	switch cfg.Telemetry.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level: unknown level %q", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("telemetry.logging.format: unknown format %q", cfg.Telemetry.Logging.Format)
	}

	return nil
}
