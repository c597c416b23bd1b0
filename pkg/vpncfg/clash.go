package vpncfg

import (
	"strconv"
	"strings"
)

// ParseToClash expands a config line into a Clash/Meta proxy map.
// Unsupported protocols and malformed lines return nil; callers treat
// nil as "skip this proxy".
func ParseToClash(line, name string) map[string]any {
	parsed, err := Parse(line)
	if err != nil {
		return nil
	}

	switch parsed.Protocol {
	case ProtocolVMess:
		return vmessToClash(line, name, parsed)
	case ProtocolVLESS, ProtocolReality:
		return vlessToClash(name, parsed)
	case ProtocolTrojan:
		return trojanToClash(name, parsed)
	case ProtocolSS:
		return ssToClash(name, parsed)
	case ProtocolHysteria2:
		return hysteria2ToClash(name, parsed)
	case ProtocolTUIC:
		return tuicToClash(name, parsed)
	default:
		return nil
	}
}

func baseProxy(name, typ string, p *Parsed) map[string]any {
	return map[string]any{
		"name":   name,
		"type":   typ,
		"server": p.Host,
		"port":   p.Port,
	}
}

func vmessToClash(line, name string, p *Parsed) map[string]any {
	payload, err := decodeVmess(line)
	if err != nil {
		return nil
	}

	proxy := baseProxy(name, "vmess", p)
	proxy["uuid"] = payload.ID
	proxy["cipher"] = payload.cipher()
	aid := 0
	if payload.Aid != "" {
		if n, err := strconv.Atoi(string(payload.Aid)); err == nil {
			aid = n
		}
	}
	proxy["alterId"] = aid
	proxy["network"] = payload.network()
	if payload.TLS == "tls" {
		proxy["tls"] = true
		if payload.SNI != "" {
			proxy["servername"] = payload.SNI
		}
	}
	if payload.network() == "ws" {
		opts := map[string]any{}
		if payload.Path != "" {
			opts["path"] = payload.Path
		}
		if payload.Host != "" {
			opts["headers"] = map[string]any{"Host": payload.Host}
		}
		proxy["ws-opts"] = opts
	}
	if payload.FP != "" {
		proxy["client-fingerprint"] = payload.FP
	}
	return proxy
}

func vlessToClash(name string, p *Parsed) map[string]any {
	proxy := baseProxy(name, "vless", p)
	proxy["uuid"] = p.Params["auth"]

	network := p.Params["type"]
	if network == "" {
		network = "tcp"
	}
	proxy["network"] = network

	security := p.Params["security"]
	if security == "tls" || security == "reality" {
		proxy["tls"] = true
	}
	if sni := p.Params["sni"]; sni != "" {
		proxy["servername"] = sni
	}
	if flow := p.Params["flow"]; flow != "" {
		proxy["flow"] = flow
	}
	if fp := p.Params["fp"]; fp != "" {
		proxy["client-fingerprint"] = fp
	}
	if alpn := p.Params["alpn"]; alpn != "" {
		proxy["alpn"] = strings.Split(alpn, ",")
	}
	if security == "reality" {
		opts := map[string]any{
			"public-key": p.Params["pbk"],
		}
		if sid := p.Params["sid"]; sid != "" {
			opts["short-id"] = sid
		}
		proxy["reality-opts"] = opts
	}
	if network == "ws" {
		opts := map[string]any{}
		if path := p.Params["path"]; path != "" {
			opts["path"] = path
		}
		if host := p.Params["host"]; host != "" {
			opts["headers"] = map[string]any{"Host": host}
		}
		proxy["ws-opts"] = opts
	}
	if network == "grpc" {
		if svc := p.Params["serviceName"]; svc != "" {
			proxy["grpc-opts"] = map[string]any{"grpc-service-name": svc}
		}
	}
	return proxy
}

func trojanToClash(name string, p *Parsed) map[string]any {
	proxy := baseProxy(name, "trojan", p)
	proxy["password"] = p.Params["auth"]
	if sni := p.Params["sni"]; sni != "" {
		proxy["sni"] = sni
	}
	if alpn := p.Params["alpn"]; alpn != "" {
		proxy["alpn"] = strings.Split(alpn, ",")
	}
	if typ := p.Params["type"]; typ == "ws" {
		opts := map[string]any{}
		if path := p.Params["path"]; path != "" {
			opts["path"] = path
		}
		proxy["network"] = "ws"
		proxy["ws-opts"] = opts
	}
	return proxy
}

func ssToClash(name string, p *Parsed) map[string]any {
	auth := p.Params["auth"]
	method, password, ok := splitSSAuth(auth)
	if !ok {
		return nil
	}
	proxy := baseProxy(name, "ss", p)
	proxy["cipher"] = method
	proxy["password"] = password
	return proxy
}

// splitSSAuth splits shadowsocks userinfo into method and password. The
// userinfo may be plain "method:password" or base64 of the same.
func splitSSAuth(auth string) (string, string, bool) {
	if auth == "" {
		return "", "", false
	}
	if !strings.Contains(auth, ":") {
		decoded, err := decodeBase64Flexible(auth)
		if err != nil {
			return "", "", false
		}
		auth = string(decoded)
	}
	method, password, found := strings.Cut(auth, ":")
	if !found || method == "" {
		return "", "", false
	}
	return method, password, true
}

func hysteria2ToClash(name string, p *Parsed) map[string]any {
	proxy := baseProxy(name, "hysteria2", p)
	proxy["password"] = p.Params["auth"]
	if sni := p.Params["sni"]; sni != "" {
		proxy["sni"] = sni
	}
	if p.Params["insecure"] == "1" {
		proxy["skip-cert-verify"] = true
	}
	return proxy
}

func tuicToClash(name string, p *Parsed) map[string]any {
	proxy := baseProxy(name, "tuic", p)
	if auth := p.Params["auth"]; auth != "" {
		uuid, password, found := strings.Cut(auth, ":")
		proxy["uuid"] = uuid
		if found {
			proxy["password"] = password
		}
	}
	if sni := p.Params["sni"]; sni != "" {
		proxy["sni"] = sni
	}
	if alpn := p.Params["alpn"]; alpn != "" {
		proxy["alpn"] = strings.Split(alpn, ",")
	}
	return proxy
}
