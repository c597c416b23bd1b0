// Package config provides configuration loading, validation, and hot
// reloading for Streamline.
//
// Configuration is loaded from a YAML file, filled in with defaults, and
// then overridden by STREAMLINE_* environment variables. A small set of
// legacy keys (VPN_CONCURRENT_LIMIT, OUTPUT_DIR, SKIP_NETWORK, CI,
// GITHUB_TOKEN) is also recognized for compatibility.
//
// The package exposes both an explicit API (LoadConfig,
// LoadConfigWithEnvOverrides) and a process-wide singleton (Initialize,
// GetConfig, ReloadConfig) used by the CLI entry points. A fsnotify-based
// Watcher triggers ReloadConfig when the file changes on disk.
package config
