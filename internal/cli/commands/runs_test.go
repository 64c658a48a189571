package commands

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/schemalens/schemalens/internal/ledger"
)

// seedRun records one completed run in the ledger at the default path
func seedRun(t *testing.T, l *ledger.Ledger, repository string) *ledger.Run {
	t.Helper()

	ctx := context.Background()
	run, err := l.Create(ctx, repository, "/src/"+repository)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.MarkRunning(ctx, run.ID); err != nil {
		t.Fatal(err)
	}
	if err := l.Complete(ctx, run.ID, ledger.Outcome{
		DocumentPath: "schemas/schema-" + repository + ".json",
		EntityCount:  3,
	}); err != nil {
		t.Fatal(err)
	}

	run, err = l.Get(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	return run
}

func TestRunsListCommand(t *testing.T) {
	workDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(workDir)
	defer os.Chdir(oldWd)

	l, err := ledger.Open("schemalens.db")
	if err != nil {
		t.Fatal(err)
	}
	seedRun(t, l, "shop")
	seedRun(t, l, "billing")
	l.Close()

	cmd := newRunsListCommand()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("runs list failed: %v", err)
	}

	// JSON mode and status filtering parse cleanly too
	cmd = newRunsListCommand()
	cmd.SetArgs([]string{"--status", "completed", "--limit", "1", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("runs list with filters failed: %v", err)
	}
}

func TestRunsListBadStatus(t *testing.T) {
	workDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(workDir)
	defer os.Chdir(oldWd)

	cmd := newRunsListCommand()
	cmd.SetArgs([]string{"--status", "bogus"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestRunsShowCommand(t *testing.T) {
	workDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(workDir)
	defer os.Chdir(oldWd)

	l, err := ledger.Open("schemalens.db")
	if err != nil {
		t.Fatal(err)
	}
	run := seedRun(t, l, "shop")
	l.Close()

	cmd := newRunsShowCommand()
	cmd.SetArgs([]string{run.ID})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("runs show failed: %v", err)
	}

	// An unambiguous prefix resolves too
	cmd = newRunsShowCommand()
	cmd.SetArgs([]string{run.ID[:8]})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("runs show with prefix failed: %v", err)
	}
}

func TestFindRun(t *testing.T) {
	workDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(workDir)
	defer os.Chdir(oldWd)

	l, err := ledger.Open("schemalens.db")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	ctx := context.Background()
	first := seedRun(t, l, "shop")
	second := seedRun(t, l, "billing")

	// Exact id
	got, err := findRun(ctx, l, first.ID)
	if err != nil {
		t.Fatalf("exact lookup failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("got run %s, want %s", got.ID, first.ID)
	}

	// Unique prefix
	got, err = findRun(ctx, l, second.ID[:8])
	if err != nil {
		t.Fatalf("prefix lookup failed: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("got run %s, want %s", got.ID, second.ID)
	}

	// Unknown id
	_, err = findRun(ctx, l, "ffffffff")
	if err == nil {
		t.Fatal("expected error for unknown run id")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got: %v", err)
	}

	// The empty prefix matches everything
	_, err = findRun(ctx, l, "")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("expected ambiguous error, got: %v", err)
	}
}

func TestRunsPurgeCommand(t *testing.T) {
	workDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(workDir)
	defer os.Chdir(oldWd)

	ctx := context.Background()

	l, err := ledger.Open("schemalens.db")
	if err != nil {
		t.Fatal(err)
	}
	seedRun(t, l, "shop")
	pending, err := l.Create(ctx, "billing", "/src/billing")
	if err != nil {
		t.Fatal(err)
	}
	l.Close()

	// A zero cutoff purges every finished run
	cmd := newRunsPurgeCommand()
	cmd.SetArgs([]string{"--older-than", "0s"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("runs purge failed: %v", err)
	}

	l, err = ledger.Open("schemalens.db")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	runs, err := l.List(ctx, ledger.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected only the pending run to survive, got %d runs", len(runs))
	}
	if runs[0].ID != pending.ID {
		t.Errorf("expected pending run %s to survive, got %s", pending.ID, runs[0].ID)
	}
}
