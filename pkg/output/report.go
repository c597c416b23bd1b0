package output

import (
	"encoding/json"
	"time"

	"streamline-hq/streamline/pkg/vpncfg"
)

// report is the generation report artifact.
type report struct {
	RunID               string         `json:"run_id,omitempty"`
	GeneratedAt         time.Time      `json:"generated_at"`
	TotalConfigurations int            `json:"total_configurations"`
	Reachable           int            `json:"reachable"`
	Sources             int            `json:"sources"`
	ByProtocol          map[string]int `json:"by_protocol"`
	OutputFiles         []string       `json:"output_files"`
}

func (f *Formatter) reportContent(results []*vpncfg.ConfigResult, written []string, opts Options) ([]byte, error) {
	r := report{
		RunID:               opts.RunID,
		GeneratedAt:         time.Now().UTC(),
		TotalConfigurations: len(results),
		Sources:             opts.SourceCount,
		ByProtocol:          make(map[string]int),
		OutputFiles:         written,
	}

	for _, result := range results {
		r.ByProtocol[string(result.Protocol)]++
		if result.IsReachable {
			r.Reachable++
		}
	}

	return json.MarshalIndent(&r, "", "  ")
}
