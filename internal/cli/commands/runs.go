package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemalens/schemalens/internal/cli/config"
	"github.com/schemalens/schemalens/internal/cli/ui"
	"github.com/schemalens/schemalens/internal/ledger"
)

var (
	runsStatus    string
	runsLimit     int
	runsJSON      bool
	runsOlderThan time.Duration
)

// NewRunsCommand creates the runs command
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded analysis runs",
		Long: `Browse the run ledger: every analysis recorded by the CLI or the
service, with its status, counts, and output paths.

Available subcommands:
  list  - Show recorded runs, newest first
  show  - Show one run in detail
  purge - Delete old finished runs`,
	}

	cmd.AddCommand(newRunsListCommand())
	cmd.AddCommand(newRunsShowCommand())
	cmd.AddCommand(newRunsPurgeCommand())

	return cmd
}

func newRunsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recorded runs, newest first",
		RunE:  runRunsList,
	}

	cmd.Flags().StringVar(&runsStatus, "status", "", "Keep only runs with this status (pending, running, completed, failed, cancelled)")
	cmd.Flags().IntVar(&runsLimit, "limit", 0, "Show at most this many runs (0 = all)")
	cmd.Flags().BoolVar(&runsJSON, "json", false, "Print runs as JSON")

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in detail",
		Long: `Show everything recorded about one run. The id may be abbreviated
to any unique prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: runRunsShow,
	}

	cmd.Flags().BoolVar(&runsJSON, "json", false, "Print the run as JSON")

	return cmd
}

func newRunsPurgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete old finished runs",
		Long: `Delete completed, failed, and cancelled runs older than the cutoff
from the ledger. Pending and running rows always survive. Output
documents on disk are not touched.`,
		RunE: runRunsPurge,
	}

	cmd.Flags().DurationVar(&runsOlderThan, "older-than", 30*24*time.Hour, "Delete finished runs created before this long ago")

	return cmd
}

// openLedger opens the configured run ledger database
func openLedger() (*ledger.Ledger, error) {
	path := "schemalens.db"
	if cfg, err := config.Load(); err == nil && cfg.Ledger.Path != "" {
		path = cfg.Ledger.Path
	}

	l, err := ledger.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run ledger %s: %w", path, err)
	}
	return l, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	filter := ledger.Filter{Limit: runsLimit}
	if runsStatus != "" {
		st, err := ledger.ParseStatus(runsStatus)
		if err != nil {
			return err
		}
		filter.Status = st
	}

	runs, err := l.List(context.Background(), filter)
	if err != nil {
		return err
	}

	if runsJSON {
		return printRunsJSON(runs)
	}

	if len(runs) == 0 {
		infoColor := color.New(color.FgCyan)
		infoColor.Println("No runs recorded.")
		return nil
	}

	table := ui.NewTable(os.Stdout, []string{"ID", "REPOSITORY", "STATUS", "ENTITIES", "DIAGS", "CREATED", "DURATION"}, nil)
	for _, run := range runs {
		table.AddRow(
			shortRunID(run.ID),
			run.Repository,
			string(run.Status),
			strconv.Itoa(run.EntityCount),
			strconv.Itoa(run.DiagnosticCount),
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			runDuration(run),
		)
	}
	table.Render()

	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	run, err := findRun(context.Background(), l, args[0])
	if err != nil {
		return err
	}

	if runsJSON {
		return printRunsJSON([]*ledger.Run{run})
	}

	kv := ui.NewKeyValueTable(os.Stdout, false)
	kv.AddRow("ID", run.ID)
	kv.AddRow("Repository", run.Repository)
	kv.AddRow("Source", run.SourcePath)
	kv.AddRow("Status", ui.StatusColor(string(run.Status)).Sprint(string(run.Status)))
	if run.DocumentPath != "" {
		kv.AddRow("Document", run.DocumentPath)
	}
	if run.StagingPath != "" {
		kv.AddRow("Staged", run.StagingPath)
	}
	kv.AddRow("Entities", strconv.Itoa(run.EntityCount))
	kv.AddRow("Diagnostics", strconv.Itoa(run.DiagnosticCount))
	if run.Error != "" {
		kv.AddRow("Error", run.Error)
	}
	kv.AddRow("Created", run.CreatedAt.Local().Format(time.RFC3339))
	if run.StartedAt != nil {
		kv.AddRow("Started", run.StartedAt.Local().Format(time.RFC3339))
	}
	if run.FinishedAt != nil {
		kv.AddRow("Finished", run.FinishedAt.Local().Format(time.RFC3339))
		kv.AddRow("Duration", runDuration(run))
	}
	kv.Render()

	return nil
}

func runRunsPurge(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	n, err := l.Purge(context.Background(), runsOlderThan)
	if err != nil {
		return err
	}

	if n == 0 {
		infoColor := color.New(color.FgCyan)
		infoColor.Println("No runs to purge.")
		return nil
	}

	successColor := color.New(color.FgGreen, color.Bold)
	successColor.Printf("✓ Purged %d run(s)\n", n)
	return nil
}

// findRun resolves a possibly abbreviated run id: exact match first, then a
// unique prefix. An unknown id gets fuzzy suggestions from recent runs.
func findRun(ctx context.Context, l *ledger.Ledger, id string) (*ledger.Run, error) {
	run, err := l.Get(ctx, id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, ledger.ErrRunNotFound) {
		return nil, err
	}

	runs, err := l.List(ctx, ledger.Filter{})
	if err != nil {
		return nil, err
	}

	var matches []*ledger.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		ids := make([]string, 0, len(runs))
		for _, r := range runs {
			ids = append(ids, shortRunID(r.ID))
		}
		suggestions := ui.FindSimilar(shortRunID(id), ids, nil)
		fmt.Fprint(os.Stderr, ui.RunNotFoundError(id, suggestions, false))
		return nil, fmt.Errorf("run %s not found", id)
	default:
		return nil, fmt.Errorf("run id %s is ambiguous (%d matches), use more characters", id, len(matches))
	}
}

// shortRunID abbreviates a run id for table display
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// runDuration formats the wall time between start and finish
func runDuration(run *ledger.Run) string {
	if run.StartedAt == nil || run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(*run.StartedAt).Round(time.Millisecond).String()
}

func printRunsJSON(runs []*ledger.Run) error {
	type runJSON struct {
		ID              string     `json:"id"`
		Repository      string     `json:"repository"`
		SourcePath      string     `json:"source_path"`
		Status          string     `json:"status"`
		DocumentPath    string     `json:"document_path,omitempty"`
		StagingPath     string     `json:"staging_path,omitempty"`
		EntityCount     int        `json:"entity_count"`
		DiagnosticCount int        `json:"diagnostic_count"`
		Error           string     `json:"error,omitempty"`
		CreatedAt       time.Time  `json:"created_at"`
		StartedAt       *time.Time `json:"started_at,omitempty"`
		FinishedAt      *time.Time `json:"finished_at,omitempty"`
	}

	views := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		views = append(views, runJSON{
			ID:              run.ID,
			Repository:      run.Repository,
			SourcePath:      run.SourcePath,
			Status:          string(run.Status),
			DocumentPath:    run.DocumentPath,
			StagingPath:     run.StagingPath,
			EntityCount:     run.EntityCount,
			DiagnosticCount: run.DiagnosticCount,
			Error:           run.Error,
			CreatedAt:       run.CreatedAt,
			StartedAt:       run.StartedAt,
			FinishedAt:      run.FinishedAt,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(views)
}
