package vpncfg

import (
	"net/url"
	"strings"
)

// Parsed is the normalized view of a config line used for hashing and
// format expansion. Params holds the operational parameters only; tags
// and remarks never appear in it.
type Parsed struct {
	Protocol Protocol
	Host     string
	Port     int
	Params   map[string]string
}

// Parse normalizes one config line. Malformed lines return a ParseError;
// hosts and ports failing sanitization return a SecurityRejectError.
func Parse(line string) (*Parsed, error) {
	line = strings.TrimSpace(line)
	protocol := Categorize(line)
	if protocol == ProtocolUnknown {
		return nil, &ParseError{Line: line, Reason: "unknown protocol scheme"}
	}

	if protocol == ProtocolVMess {
		return parseVmess(line)
	}
	return parseURI(line, protocol)
}

// ExtractEndpoint returns the sanitized host and port of a config line.
func ExtractEndpoint(line string) (string, int, error) {
	parsed, err := Parse(line)
	if err != nil {
		return "", 0, err
	}
	return parsed.Host, parsed.Port, nil
}

func parseVmess(line string) (*Parsed, error) {
	payload, err := decodeVmess(line)
	if err != nil {
		return nil, err
	}

	host, err := SanitizeHost(payload.endpointHost())
	if err != nil {
		return nil, err
	}
	port, err := SanitizePort(string(payload.Port))
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"id":     payload.ID,
		"cipher": payload.cipher(),
		"net":    payload.network(),
	}
	if payload.Aid != "" {
		params["aid"] = string(payload.Aid)
	}
	if payload.Type != "" {
		params["type"] = payload.Type
	}
	if payload.Path != "" {
		params["path"] = payload.Path
	}
	if payload.TLS != "" {
		params["tls"] = payload.TLS
	}
	if payload.SNI != "" {
		params["sni"] = payload.SNI
	}
	if payload.ALPN != "" {
		params["alpn"] = payload.ALPN
	}
	if payload.FP != "" {
		params["fp"] = payload.FP
	}
	if payload.Host != "" && payload.Host != payload.endpointHost() {
		params["host"] = payload.Host
	}

	return &Parsed{
		Protocol: ProtocolVMess,
		Host:     host,
		Port:     port,
		Params:   params,
	}, nil
}

func parseURI(line string, protocol Protocol) (*Parsed, error) {
	u, err := url.Parse(line)
	if err != nil {
		return nil, &ParseError{Line: line, Reason: "invalid URI"}
	}
	if u.Host == "" {
		return nil, &ParseError{Line: line, Reason: "missing host"}
	}

	host, err := SanitizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}
	port, err := SanitizePort(u.Port())
	if err != nil {
		return nil, err
	}

	params := make(map[string]string)
	for key, values := range u.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	// Credentials are operational, not cosmetic.
	if u.User != nil {
		params["auth"] = u.User.String()
	}

	return &Parsed{
		Protocol: protocol,
		Host:     host,
		Port:     port,
		Params:   params,
	}, nil
}

// IsValidConfig reports whether a line is keepable for raw output: a
// recognized scheme with a non-empty body and no embedded whitespace.
func IsValidConfig(line string) bool {
	line = strings.TrimSpace(line)
	if Categorize(line) == ProtocolUnknown {
		return false
	}
	idx := strings.Index(line, "://")
	body := line[idx+3:]
	if body == "" {
		return false
	}
	return !strings.ContainsAny(line, " \t")
}
