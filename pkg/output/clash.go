package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"streamline-hq/streamline/pkg/vpncfg"
)

const (
	urlTestInterval = 300
	urlTestTarget   = "http://www.gstatic.com/generate_204"
	autoGroupName   = "auto-select"
	manualGroupName = "manual"
)

// clashDocument is the full Clash config artifact.
type clashDocument struct {
	Proxies     []map[string]any `yaml:"proxies"`
	ProxyGroups []map[string]any `yaml:"proxy-groups,omitempty"`
	Rules       []string         `yaml:"rules,omitempty"`
}

// clashContent renders the Clash YAML artifact. proxiesOnly emits the
// provider-style document carrying just the proxies list. Configs that
// cannot expand to a Clash proxy are skipped.
func clashContent(results []*vpncfg.ConfigResult, proxiesOnly bool) ([]byte, error) {
	doc := clashDocument{Proxies: []map[string]any{}}

	var names []string
	for i, result := range results {
		name := fmt.Sprintf("proxy-%d", i)
		proxy := vpncfg.ParseToClash(result.RawConfig, name)
		if proxy == nil {
			continue
		}
		doc.Proxies = append(doc.Proxies, proxy)
		names = append(names, name)
	}

	if !proxiesOnly {
		doc.ProxyGroups = []map[string]any{
			{
				"name":     autoGroupName,
				"type":     "url-test",
				"proxies":  names,
				"url":      urlTestTarget,
				"interval": urlTestInterval,
			},
			{
				"name":    manualGroupName,
				"type":    "select",
				"proxies": append([]string{autoGroupName}, names...),
			},
		}
		doc.Rules = []string{"MATCH," + manualGroupName}
	}

	return yaml.Marshal(&doc)
}
