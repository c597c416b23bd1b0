package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// global holds the process-wide configuration. Readers load it
	// lock-free; Initialize and ReloadConfig swap whole instances.
	global atomic.Pointer[Config]

	initOnce sync.Once
)

// Initialize loads the configuration at path, with environment variable
// overrides, and installs it as the process-wide instance. Only the
// first call does anything; later calls return nil without reloading.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		global.Store(cfg)
	})

	return initErr
}

// GetConfig returns the process-wide configuration, or nil before a
// successful Initialize. Callers must treat the result as read-only;
// configuration changes arrive as whole replacement instances.
func GetConfig() *Config {
	return global.Load()
}

// SetConfig installs cfg as the process-wide configuration. Tests use
// it to inject fixtures; production code goes through Initialize.
func SetConfig(cfg *Config) {
	global.Store(cfg)
}

// ReloadConfig re-reads the configuration at path and swaps it in. On
// error the running configuration is left untouched. In-flight readers
// keep the instance they already loaded.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	global.Store(cfg)
	return nil
}
