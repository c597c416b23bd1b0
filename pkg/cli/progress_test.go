package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ============================================================================
// Progress Reporter Tests
// ============================================================================

func TestProgress_RendersBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	p.Start(4)
	p.Update(2)
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "Fetching sources") {
		t.Errorf("Expected bar label, got %q", out)
	}
	if !strings.Contains(out, "2/4") {
		t.Errorf("Expected midway count, got %q", out)
	}
	if !strings.Contains(out, "4/4") || !strings.Contains(out, "done in") {
		t.Errorf("Expected completion line, got %q", out)
	}
}

func TestProgress_ClampsOvershoot(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	// Cached sources can report past the announced total.
	p.Start(3)
	p.Update(5)

	if strings.Contains(buf.String(), "5/3") {
		t.Errorf("Expected overshoot to clamp, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "3/3") {
		t.Errorf("Expected clamped count, got %q", buf.String())
	}
}

func TestProgress_ZeroTotalSilent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	p.Start(0)
	p.Update(1)

	if got := buf.String(); strings.Contains(got, "Fetching") {
		t.Errorf("Expected no bar without a total, got %q", got)
	}
}

func TestProgress_Error(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf)

	p.Start(2)
	p.Error(errors.New("source unreachable"))

	if !strings.Contains(buf.String(), "source unreachable") {
		t.Errorf("Expected error to surface, got %q", buf.String())
	}
}

func TestNewProgressReporter_NilWriter(t *testing.T) {
	if NewProgressReporter(nil) == nil {
		t.Error("Expected a reporter for a nil writer")
	}
}
