package dedup

import (
	"fmt"
	"regexp"
	"strings"

	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/vpncfg"
)

// Filter is the pre-dedup filter pipeline: TLS fragment substring,
// protocol include/exclude sets, country include/exclude sets, regex
// include/exclude lists, and the validity check.
type Filter struct {
	tlsFragment      string
	includeProtocols map[vpncfg.Protocol]bool
	excludeProtocols map[vpncfg.Protocol]bool
	includeCountries map[string]bool
	excludeCountries map[string]bool
	includePatterns  []*regexp.Regexp
	excludePatterns  []*regexp.Regexp
}

// NewFilter compiles a filter pipeline from configuration. Invalid
// regular expressions fail construction.
func NewFilter(cfg *config.DedupConfig) (*Filter, error) {
	f := &Filter{
		tlsFragment:      cfg.TLSFragment,
		includeProtocols: protocolSet(cfg.IncludeProtocols),
		excludeProtocols: protocolSet(cfg.ExcludeProtocols),
		includeCountries: upperSet(cfg.IncludeCountries),
		excludeCountries: upperSet(cfg.ExcludeCountries),
	}

	for _, pattern := range cfg.IncludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		f.includePatterns = append(f.includePatterns, re)
	}
	for _, pattern := range cfg.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		f.excludePatterns = append(f.excludePatterns, re)
	}

	return f, nil
}

// Keep reports whether a config passes every filter stage.
func (f *Filter) Keep(result *vpncfg.ConfigResult) bool {
	line := result.RawConfig

	if !vpncfg.IsValidConfig(line) {
		return false
	}
	if f.tlsFragment != "" && !strings.Contains(line, f.tlsFragment) {
		return false
	}
	if len(f.includeProtocols) > 0 && !f.includeProtocols[result.Protocol] {
		return false
	}
	if f.excludeProtocols[result.Protocol] {
		return false
	}

	country := strings.ToUpper(result.Metadata.Country)
	if len(f.includeCountries) > 0 && !f.includeCountries[country] {
		return false
	}
	if country != "" && f.excludeCountries[country] {
		return false
	}

	if len(f.includePatterns) > 0 && !matchesAny(f.includePatterns, line) {
		return false
	}
	if matchesAny(f.excludePatterns, line) {
		return false
	}

	return true
}

func matchesAny(patterns []*regexp.Regexp, line string) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func protocolSet(names []string) map[vpncfg.Protocol]bool {
	set := make(map[vpncfg.Protocol]bool, len(names))
	for _, name := range names {
		set[vpncfg.Categorize(strings.ToLower(name)+"://x")] = true
	}
	return set
}

func upperSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToUpper(strings.TrimSpace(v))] = true
	}
	return set
}
