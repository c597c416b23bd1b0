package vpncfg

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// vmessPayload is the decoded JSON body of a vmess:// URI. Remote
// generators are sloppy about types, so numeric fields accept both
// strings and numbers.
type vmessPayload struct {
	V    flexString `json:"v"`
	PS   string     `json:"ps"` // remark, excluded from hashing
	Add  string     `json:"add"`
	Host string     `json:"host"`
	Port flexString `json:"port"`
	ID   string     `json:"id"`
	Aid  flexString `json:"aid"`
	Scy  string     `json:"scy"`
	Net  string     `json:"net"`
	Type string     `json:"type"`
	Path string     `json:"path"`
	TLS  string     `json:"tls"`
	SNI  string     `json:"sni"`
	ALPN string     `json:"alpn"`
	FP   string     `json:"fp"`
}

// flexString unmarshals from either a JSON string or a JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(data)))
	return nil
}

// decodeVmess decodes the base64 JSON payload of a vmess:// line.
// Standard and URL-safe alphabets are both accepted; missing padding is
// tolerated.
func decodeVmess(line string) (*vmessPayload, error) {
	payload := strings.TrimPrefix(line, "vmess://")
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, &ParseError{Line: line, Reason: "empty vmess payload"}
	}

	raw, err := decodeBase64Flexible(payload)
	if err != nil {
		return nil, &ParseError{Line: line, Reason: "vmess payload is not base64"}
	}

	var p vmessPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ParseError{Line: line, Reason: "vmess payload is not JSON"}
	}
	return &p, nil
}

// decodeBase64Flexible decodes with the standard then URL-safe alphabet,
// padding the input to a multiple of 4 first.
func decodeBase64Flexible(payload string) ([]byte, error) {
	if n := len(payload) % 4; n != 0 {
		payload += strings.Repeat("=", 4-n)
	}
	if raw, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return raw, nil
	}
	return base64.URLEncoding.DecodeString(payload)
}

// hostFromVmess picks the endpoint host: the "add" field, falling back
// to "host".
func (p *vmessPayload) endpointHost() string {
	if p.Add != "" {
		return p.Add
	}
	return p.Host
}

// cipher returns the vmess cipher, defaulting to "auto" when absent.
// The "type" field is the transport, never the cipher.
func (p *vmessPayload) cipher() string {
	if p.Scy != "" {
		return p.Scy
	}
	return "auto"
}

// network returns the transport network, defaulting to "tcp".
func (p *vmessPayload) network() string {
	if p.Net != "" {
		return p.Net
	}
	return "tcp"
}
