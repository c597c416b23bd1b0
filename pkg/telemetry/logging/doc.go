// Package logging configures structured logging for Streamline.
//
// All components log through log/slog. This package turns the
// configuration section into a concrete handler (JSON, text, or console)
// and installs it as the process default. Components derive their own
// loggers with a "component" attribute:
//
//	logger := slog.Default().With("component", "fetch")
package logging
