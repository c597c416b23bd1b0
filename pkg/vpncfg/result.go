package vpncfg

import "sort"

// Metadata is the fixed-schema per-config annotation map.
type Metadata struct {
	Country string `json:"country,omitempty"`
}

// ConfigResult is one parsed configuration flowing through the pipeline.
// The parser creates it; the tester and scorer enrich it; the formatters
// consume it. Results never persist across runs.
type ConfigResult struct {
	RawConfig      string           `json:"raw_config"`
	Protocol       Protocol         `json:"protocol"`
	Host           string           `json:"host,omitempty"`
	Port           int              `json:"port,omitempty"`
	SourceURL      string           `json:"source_url"`
	PingTime       *float64         `json:"ping_time_s,omitempty"`
	IsReachable    bool             `json:"is_reachable"`
	HandshakeOK    *bool            `json:"handshake_ok,omitempty"`
	AppTestResults map[string]*bool `json:"app_test_results,omitempty"`
	QualityScore   *float64         `json:"quality_score,omitempty"`
	SemanticHash   Hash             `json:"-"`
	Metadata       Metadata         `json:"metadata,omitempty"`
}

// SortByQuality orders results best first. The sort is stable, so
// equally scored configs keep their prior order; unscored results sort
// as zero.
func SortByQuality(results []*ConfigResult) {
	sort.SliceStable(results, func(i, j int) bool {
		var si, sj float64
		if results[i].QualityScore != nil {
			si = *results[i].QualityScore
		}
		if results[j].QualityScore != nil {
			sj = *results[j].QualityScore
		}
		return si > sj
	})
}

// PingMS returns the measured latency in milliseconds, or false when the
// config was never successfully probed.
func (r *ConfigResult) PingMS() (float64, bool) {
	if r.PingTime == nil {
		return 0, false
	}
	return *r.PingTime * 1000, true
}
