// Streamline aggregates VPN proxy configurations from public
// subscription sources into deduplicated, quality-ranked artifacts.
//
// It fetches hundreds of untrusted subscription URLs, validates and
// scores the sources, parses and semantically deduplicates the configs,
// optionally probes reachability, and writes client-ready outputs
// (raw, base64, CSV, sing-box, Clash, Surge, and more).
//
// Usage:
//
//	# Run the full aggregation pipeline once
//	streamline process
//
//	# Run with a custom configuration file
//	streamline process --config /path/to/config.yaml
//
//	# Start the HTTP server with run control and live events
//	streamline server
//
//	# Manage the source list
//	streamline sources list
//	streamline sources add https://example.com/sub.txt --tier reliable
//
//	# Re-test configs from an existing raw artifact
//	streamline retest
//
//	# Validate configuration and source accessibility
//	streamline validate --sources
package main

func main() {
	Execute()
}
