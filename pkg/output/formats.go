package output

import (
	"strings"

	"streamline-hq/streamline/pkg/cli"
)

// Format names one output artifact kind.
type Format string

const (
	FormatRaw          Format = "raw"
	FormatBase64       Format = "base64"
	FormatCSV          Format = "csv"
	FormatSingbox      Format = "singbox"
	FormatClash        Format = "clash"
	FormatClashProxies Format = "clash_proxies"
	FormatSurge        Format = "surge"
	FormatQX           Format = "qx"
	FormatXYZ          Format = "xyz"
	FormatReport       Format = "report"
)

// AllFormats is the full format set, in emission order.
var AllFormats = []Format{
	FormatRaw,
	FormatBase64,
	FormatCSV,
	FormatSingbox,
	FormatClash,
	FormatClashProxies,
	FormatSurge,
	FormatQX,
	FormatXYZ,
	FormatReport,
}

// defaultFiles maps each format to its artifact file name.
var defaultFiles = map[Format]string{
	FormatRaw:          "vpn_subscription_raw.txt",
	FormatBase64:       "vpn_subscription_base64.txt",
	FormatCSV:          "vpn_detailed.csv",
	FormatSingbox:      "vpn_singbox.json",
	FormatClash:        "clash.yaml",
	FormatClashProxies: "vpn_clash_proxies.yaml",
	FormatSurge:        "surge.conf",
	FormatQX:           "qx.conf",
	FormatXYZ:          "xyz.txt",
	FormatReport:       "vpn_report.json",
}

// ParseFormats expands a format selection: the literal "all" means the
// full set; otherwise each name must be a known format. Unknown names
// are configuration errors, never silently dropped.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 1 && strings.EqualFold(strings.TrimSpace(names[0]), "all") {
		return AllFormats, nil
	}

	known := make(map[Format]bool, len(AllFormats))
	for _, f := range AllFormats {
		known[f] = true
	}

	var formats []Format
	seen := make(map[Format]bool)
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		if !known[f] {
			return nil, &cli.ConfigError{
				Field:   "formats",
				Message: "unknown format " + strings.TrimSpace(name),
			}
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}
