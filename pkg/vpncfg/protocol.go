package vpncfg

import "strings"

// Protocol is the closed set of recognized proxy protocols.
type Protocol string

const (
	ProtocolVMess      Protocol = "vmess"
	ProtocolVLESS      Protocol = "vless"
	ProtocolReality    Protocol = "reality"
	ProtocolTrojan     Protocol = "trojan"
	ProtocolSS         Protocol = "ss"
	ProtocolSSR        Protocol = "ssr"
	ProtocolHysteria   Protocol = "hysteria"
	ProtocolHysteria2  Protocol = "hysteria2"
	ProtocolTUIC       Protocol = "tuic"
	ProtocolWireGuard  Protocol = "wireguard"
	ProtocolNaive      Protocol = "naive"
	ProtocolBrook      Protocol = "brook"
	ProtocolSnell      Protocol = "snell"
	ProtocolShadowTLS  Protocol = "shadowtls"
	ProtocolJuicity    Protocol = "juicity"
	ProtocolSOCKS      Protocol = "socks"
	ProtocolHTTP       Protocol = "http"
	ProtocolUnknown    Protocol = ""
)

// schemeToProtocol maps URI schemes (lowercase) to protocols, folding
// aliases into their canonical protocol.
var schemeToProtocol = map[string]Protocol{
	"vmess":     ProtocolVMess,
	"vless":     ProtocolVLESS,
	"reality":   ProtocolReality,
	"trojan":    ProtocolTrojan,
	"ss":        ProtocolSS,
	"ssr":       ProtocolSSR,
	"hysteria":  ProtocolHysteria,
	"hysteria2": ProtocolHysteria2,
	"hy2":       ProtocolHysteria2,
	"tuic":      ProtocolTUIC,
	"wireguard": ProtocolWireGuard,
	"wg":        ProtocolWireGuard,
	"naive":     ProtocolNaive,
	"brook":     ProtocolBrook,
	"snell":     ProtocolSnell,
	"shadowtls": ProtocolShadowTLS,
	"juicity":   ProtocolJuicity,
	"socks5":    ProtocolSOCKS,
	"socks4":    ProtocolSOCKS,
	"socks":     ProtocolSOCKS,
	"https":     ProtocolHTTP,
	"http":      ProtocolHTTP,
}

// displayNames are the human-facing protocol names used in CSV and
// report output.
var displayNames = map[Protocol]string{
	ProtocolVMess:     "VMess",
	ProtocolVLESS:     "VLESS",
	ProtocolReality:   "Reality",
	ProtocolTrojan:    "Trojan",
	ProtocolSS:        "Shadowsocks",
	ProtocolSSR:       "ShadowsocksR",
	ProtocolHysteria:  "Hysteria",
	ProtocolHysteria2: "Hysteria2",
	ProtocolTUIC:      "TUIC",
	ProtocolWireGuard: "WireGuard",
	ProtocolNaive:     "Naive",
	ProtocolBrook:     "Brook",
	ProtocolSnell:     "Snell",
	ProtocolShadowTLS: "ShadowTLS",
	ProtocolJuicity:   "Juicity",
	ProtocolSOCKS:     "SOCKS",
	ProtocolHTTP:      "HTTP",
}

// tlsLikeProtocols are protocols whose transport includes a TLS
// handshake layer.
var tlsLikeProtocols = map[Protocol]bool{
	ProtocolVMess:   true,
	ProtocolVLESS:   true,
	ProtocolTrojan:  true,
	ProtocolReality: true,
}

// Categorize determines a line's protocol by case-insensitive URI scheme
// prefix match. Lines with no recognized scheme return ProtocolUnknown.
func Categorize(line string) Protocol {
	idx := strings.Index(line, "://")
	if idx <= 0 {
		return ProtocolUnknown
	}
	scheme := strings.ToLower(line[:idx])
	if p, ok := schemeToProtocol[scheme]; ok {
		return p
	}
	return ProtocolUnknown
}

// DisplayName returns the human-facing protocol name.
func (p Protocol) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

// TLSLike reports whether the protocol's transport includes TLS.
func (p Protocol) TLSLike() bool {
	return tlsLikeProtocols[p]
}
