package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"streamline-hq/streamline/pkg/vpncfg"
)

// singboxOutbound is one entry in the sing-box outbounds array.
type singboxOutbound struct {
	Type       string `json:"type"`
	Tag        string `json:"tag"`
	Server     string `json:"server,omitempty"`
	ServerPort int    `json:"server_port,omitempty"`
	Raw        string `json:"raw"`
}

type singboxDocument struct {
	Outbounds []singboxOutbound `json:"outbounds"`
}

// singboxContent renders the sing-box JSON artifact. Tags are safe
// slugs, unique within the document.
func singboxContent(results []*vpncfg.ConfigResult) ([]byte, error) {
	doc := singboxDocument{Outbounds: make([]singboxOutbound, 0, len(results))}

	for i, result := range results {
		doc.Outbounds = append(doc.Outbounds, singboxOutbound{
			Type:       string(result.Protocol),
			Tag:        slugTag(result, i),
			Server:     result.Host,
			ServerPort: result.Port,
			Raw:        result.RawConfig,
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// slugTag builds a unique [A-Za-z0-9_-]+ tag for an outbound.
func slugTag(result *vpncfg.ConfigResult, index int) string {
	base := fmt.Sprintf("%s-%s-%d", result.Protocol, result.Host, result.Port)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == '.':
			b.WriteByte('-')
		}
	}
	slug := b.String()
	if slug == "" || strings.Trim(slug, "-_") == "" {
		slug = "proxy"
	}
	return fmt.Sprintf("%s-%d", slug, index)
}
