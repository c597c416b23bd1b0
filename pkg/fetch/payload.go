package fetch

import (
	"encoding/base64"
	"strings"
)

// DecodePayload normalizes a fetched subscription body into individual
// lines. Bodies that look like a base64 blob (no URI scheme separator,
// only base64 alphabet characters) are decoded first; both standard and
// URL-safe alphabets are accepted, with or without padding. Decoded
// output is capped at maxDecode bytes; a blob whose decoded size would
// exceed the cap is treated as opaque and returned as-is.
func DecodePayload(body []byte, maxDecode int64) []string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return nil
	}

	if !strings.Contains(text, "://") && looksBase64(text) {
		if decoded, ok := decodeBase64(text, maxDecode); ok {
			text = decoded
		}
	}

	return splitLines(text)
}

// looksBase64 reports whether the text consists only of base64 alphabet
// characters and whitespace.
func looksBase64(text string) bool {
	seen := 0
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			seen++
		case r == '+', r == '/', r == '-', r == '_', r == '=':
			seen++
		case r == '\n', r == '\r', r == ' ', r == '\t':
		default:
			return false
		}
	}
	return seen > 0
}

// decodeBase64 tries the standard then URL-safe alphabets, tolerating
// missing padding.
func decodeBase64(text string, maxDecode int64) (string, bool) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, text)

	if maxDecode > 0 && int64(len(compact))/4*3 > maxDecode {
		return "", false
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(compact); err == nil {
			return string(decoded), true
		}
	}
	return "", false
}

// splitLines splits on newlines, trimming whitespace and dropping empty
// lines.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
