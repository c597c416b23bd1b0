package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running stages.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

// fetchProgress renders a single-line bar tracking sources fetched.
type fetchProgress struct {
	mu      sync.Mutex
	total   int64
	current int64
	started time.Time
	w       io.Writer
}

// NewProgressReporter creates a progress reporter writing to w, or to
// os.Stdout when w is nil.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stdout
	}
	return &fetchProgress{w: w}
}

// Start begins a new bar over total sources.
func (p *fetchProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.started = time.Now()
	p.render()
}

// Update moves the bar. Values beyond the total are clamped; cached
// sources can report ahead of the announced count.
func (p *fetchProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current > p.total {
		current = p.total
	}
	p.current = current
	p.render()
}

// Finish completes the bar and reports the elapsed time.
func (p *fetchProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.render()
	fmt.Fprintf(p.w, "  done in %s\n", time.Since(p.started).Round(time.Millisecond))
}

// Error breaks the bar line and reports the failure.
func (p *fetchProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\nfetch aborted: %v\n", err)
}

func (p *fetchProgress) render() {
	if p.total <= 0 {
		return
	}

	const width = 30
	filled := int(width * p.current / p.total)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	fmt.Fprintf(p.w, "\rFetching sources [%s] %d/%d", bar, p.current, p.total)
}
