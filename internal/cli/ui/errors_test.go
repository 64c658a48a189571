package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestFormatError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	output := FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "run not found",
		Problem:     "No recorded run matches '3f2a91c'.",
		Suggestions: []string{"3f2a91cb", "3f2091aa"},
		HelpCommands: []string{
			"See recorded runs: schemalens runs list",
		},
		NoColor: true,
	})

	if !strings.Contains(output, "RUN NOT FOUND") {
		t.Errorf("expected uppercased context, got: %q", output)
	}
	if !strings.Contains(output, "No recorded run matches '3f2a91c'.") {
		t.Errorf("expected problem text, got: %q", output)
	}
	if !strings.Contains(output, "Did you mean: 3f2a91cb, 3f2091aa?") {
		t.Errorf("expected suggestions, got: %q", output)
	}
	if !strings.Contains(output, "→ See recorded runs: schemalens runs list") {
		t.Errorf("expected help command, got: %q", output)
	}
}

func TestFormatErrorWithoutContext(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	output := FormatError(ErrorOptions{
		Level:   ErrorLevelWarning,
		Problem: "staging directory partially removed",
		NoColor: true,
	})

	if !strings.Contains(output, "staging directory partially removed") {
		t.Errorf("expected problem text, got: %q", output)
	}
	// Without a context, the problem appears exactly once
	if strings.Count(output, "staging directory partially removed") != 1 {
		t.Errorf("expected problem to appear once, got: %q", output)
	}
}

func TestFormatErrorConsequence(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	output := FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "analysis failed",
		Problem:     "output directory is not writable",
		Consequence: "No schema document was produced.",
		NoColor:     true,
	})

	if !strings.Contains(output, "No schema document was produced.") {
		t.Errorf("expected consequence text, got: %q", output)
	}
}

func TestWriteError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{
		Level:   ErrorLevelInfo,
		Problem: "nothing to clean",
		NoColor: true,
	})

	if !strings.Contains(buf.String(), "nothing to clean") {
		t.Errorf("expected written error output, got: %q", buf.String())
	}
}

func TestFormatSuccess(t *testing.T) {
	output := FormatSuccess("Analyzed shop", true)

	if !strings.Contains(output, "✓") {
		t.Errorf("expected check mark, got: %q", output)
	}
	if !strings.Contains(output, "Analyzed shop") {
		t.Errorf("expected message, got: %q", output)
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "Removed 2 staging directories", true)

	output := buf.String()
	if !strings.Contains(output, "Removed 2 staging directories") {
		t.Errorf("expected message, got: %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("expected trailing newline, got: %q", output)
	}
}

func TestRunNotFoundError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	output := RunNotFoundError("deadbeef", []string{"deadbee0"}, true)

	if !strings.Contains(output, "RUN NOT FOUND") {
		t.Errorf("expected context header, got: %q", output)
	}
	if !strings.Contains(output, "deadbeef") {
		t.Errorf("expected run id, got: %q", output)
	}
	if !strings.Contains(output, "schemalens runs list") {
		t.Errorf("expected help command, got: %q", output)
	}
}

func TestAnalysisError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	output := AnalysisError("source path does not exist", nil, true)

	if !strings.Contains(output, "ANALYSIS FAILED") {
		t.Errorf("expected context header, got: %q", output)
	}
	if !strings.Contains(output, "schemalens analyze --help") {
		t.Errorf("expected help command, got: %q", output)
	}
}

func TestConfigError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	output := ConfigError("server.port must be between 0 and 65535", nil, true)

	if !strings.Contains(output, "CONFIGURATION ERROR") {
		t.Errorf("expected context header, got: %q", output)
	}
	if !strings.Contains(output, "schemalens init") {
		t.Errorf("expected help command, got: %q", output)
	}
}

func TestWarningAndInfo(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	warn := Warning("2 files could not be staged", nil, true)
	if !strings.Contains(warn, "2 files could not be staged") {
		t.Errorf("expected warning text, got: %q", warn)
	}

	info := Info("No runs recorded.", true)
	if !strings.Contains(info, "No runs recorded.") {
		t.Errorf("expected info text, got: %q", info)
	}
}
