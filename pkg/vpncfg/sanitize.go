package vpncfg

import (
	"strconv"
	"strings"
	"unicode"
)

// SanitizeHost validates a parsed hostname. Hosts containing whitespace,
// control characters, or shell-significant characters are rejected with
// a SecurityRejectError. The returned host is lowercased.
func SanitizeHost(host string) (string, error) {
	if host == "" {
		return "", &SecurityRejectError{Host: host, Reason: "empty host"}
	}
	if len(host) > 253 {
		return "", &SecurityRejectError{Host: host, Reason: "host too long"}
	}

	for _, r := range host {
		switch {
		case unicode.IsSpace(r):
			return "", &SecurityRejectError{Host: host, Reason: "whitespace in host"}
		case unicode.IsControl(r):
			return "", &SecurityRejectError{Host: host, Reason: "control character in host"}
		case strings.ContainsRune("<>\"'`\\$;|&{}", r):
			return "", &SecurityRejectError{Host: host, Reason: "forbidden character in host"}
		}
	}

	return strings.ToLower(host), nil
}

// SanitizePort validates a port string. Port 0, ports above 65535, and
// non-numeric ports are rejected with a SecurityRejectError.
func SanitizePort(port string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return 0, &SecurityRejectError{Host: port, Reason: "non-numeric port"}
	}
	if n < 1 || n > 65535 {
		return 0, &SecurityRejectError{Host: port, Reason: "port out of range"}
	}
	return n, nil
}
