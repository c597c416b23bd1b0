package vpncfg

import "fmt"

// ParseError indicates a malformed config line.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > 64 {
		line = line[:64] + "..."
	}
	return fmt.Sprintf("parse %q: %s", line, e.Reason)
}

// SecurityRejectError indicates a host or port failed sanitization.
type SecurityRejectError struct {
	Host   string
	Reason string
}

func (e *SecurityRejectError) Error() string {
	return fmt.Sprintf("rejected host %q: %s", e.Host, e.Reason)
}
