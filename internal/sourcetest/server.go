// Package sourcetest provides a stub subscription source server for
// tests. It simulates the HTTP endpoints the fetcher and validator
// probe: plain and base64 payloads, errors, and slow responses.
package sourcetest

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Server is a stub subscription source backed by httptest.
type Server struct {
	server       *httptest.Server
	mu           sync.Mutex
	lines        []string
	encoded      bool
	statusCode   int
	delay        time.Duration
	requestCount int
}

// New creates a stub source serving the given config lines as plain
// text.
func New(lines ...string) *Server {
	s := &Server{
		lines:      lines,
		statusCode: http.StatusOK,
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

// URL returns the source's subscription URL.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the stub down.
func (s *Server) Close() {
	s.server.Close()
}

// SetLines replaces the served config lines.
func (s *Server) SetLines(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = lines
}

// SetEncoded switches the payload to base64 form.
func (s *Server) SetEncoded(encoded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoded = encoded
}

// SetStatusCode makes every response use the given status.
func (s *Server) SetStatusCode(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCode = code
}

// SetDelay delays every response, bounded by request cancellation.
func (s *Server) SetDelay(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = delay
}

// RequestCount returns the number of requests received so far.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requestCount++
	body := strings.Join(s.lines, "\n") + "\n"
	encoded := s.encoded
	status := s.statusCode
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if encoded {
		body = base64.StdEncoding.EncodeToString([]byte(body))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(body))
}
