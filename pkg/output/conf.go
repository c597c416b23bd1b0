package output

import (
	"fmt"
	"strings"

	"streamline-hq/streamline/pkg/vpncfg"
)

// surgeContent renders a minimal Surge proxy list. Only protocols Surge
// understands are emitted.
func surgeContent(results []*vpncfg.ConfigResult) []byte {
	var b strings.Builder
	b.WriteString("[Proxy]\n")

	for i, result := range results {
		if result.Host == "" || result.Port == 0 {
			continue
		}
		name := fmt.Sprintf("proxy-%d", i)
		switch result.Protocol {
		case vpncfg.ProtocolTrojan:
			fmt.Fprintf(&b, "%s = trojan, %s, %d\n", name, result.Host, result.Port)
		case vpncfg.ProtocolSS:
			fmt.Fprintf(&b, "%s = ss, %s, %d\n", name, result.Host, result.Port)
		case vpncfg.ProtocolVMess:
			fmt.Fprintf(&b, "%s = vmess, %s, %d\n", name, result.Host, result.Port)
		case vpncfg.ProtocolHTTP:
			fmt.Fprintf(&b, "%s = http, %s, %d\n", name, result.Host, result.Port)
		case vpncfg.ProtocolSOCKS:
			fmt.Fprintf(&b, "%s = socks5, %s, %d\n", name, result.Host, result.Port)
		}
	}
	return []byte(b.String())
}

// qxContent renders a minimal Quantumult X server list.
func qxContent(results []*vpncfg.ConfigResult) []byte {
	var b strings.Builder
	b.WriteString("[server_local]\n")

	for i, result := range results {
		if result.Host == "" || result.Port == 0 {
			continue
		}
		tag := fmt.Sprintf("proxy-%d", i)
		switch result.Protocol {
		case vpncfg.ProtocolTrojan:
			fmt.Fprintf(&b, "trojan=%s:%d, tag=%s\n", result.Host, result.Port, tag)
		case vpncfg.ProtocolSS:
			fmt.Fprintf(&b, "shadowsocks=%s:%d, tag=%s\n", result.Host, result.Port, tag)
		case vpncfg.ProtocolVMess:
			fmt.Fprintf(&b, "vmess=%s:%d, tag=%s\n", result.Host, result.Port, tag)
		}
	}
	return []byte(b.String())
}

// xyzContent renders the plain name,server,port list.
func xyzContent(results []*vpncfg.ConfigResult) []byte {
	var b strings.Builder
	for i, result := range results {
		if result.Host == "" || result.Port == 0 {
			continue
		}
		fmt.Fprintf(&b, "proxy-%d,%s,%d\n", i, result.Host, result.Port)
	}
	return []byte(b.String())
}
