package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestSpinner(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "Analyzing shop",
		NoColor:  true,
		Interval: 5 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(50 * time.Millisecond)
	spinner.Stop()

	output := buf.String()
	if !strings.Contains(output, "Analyzing shop") {
		t.Errorf("expected spinner message in output, got: %q", output)
	}
	if !strings.Contains(output, "\r") {
		t.Errorf("expected carriage returns in output, got: %q", output)
	}
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{Message: "idle", NoColor: true})

	// Must not block or write anything
	spinner.Stop()

	if buf.String() != "" {
		t.Errorf("expected no output from unstarted spinner, got: %q", buf.String())
	}
}

func TestSpinnerDoubleStop(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "working",
		NoColor:  true,
		Interval: 5 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(10 * time.Millisecond)
	spinner.Stop()
	spinner.Stop()
}

func TestSpinnerSuccess(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "working",
		NoColor:  true,
		Interval: 5 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(10 * time.Millisecond)
	spinner.Success("Analyzed shop")

	if !strings.Contains(buf.String(), "✓ Analyzed shop") {
		t.Errorf("expected success message, got: %q", buf.String())
	}
}

func TestSpinnerError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "working",
		NoColor:  true,
		Interval: 5 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(10 * time.Millisecond)
	spinner.Error("analysis failed")

	if !strings.Contains(buf.String(), "❌ analysis failed") {
		t.Errorf("expected error message, got: %q", buf.String())
	}
}

func TestSpinnerUpdateMessage(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "scanning sources",
		NoColor:  true,
		Interval: 5 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(50 * time.Millisecond)
	spinner.UpdateMessage("resolving entities")
	time.Sleep(50 * time.Millisecond)
	spinner.Stop()

	output := buf.String()
	if !strings.Contains(output, "scanning sources") {
		t.Errorf("expected initial message, got: %q", output)
	}
	if !strings.Contains(output, "resolving entities") {
		t.Errorf("expected updated message, got: %q", output)
	}
}
