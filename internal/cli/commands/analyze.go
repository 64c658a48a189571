package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schemalens/schemalens/internal/analysis"
	"github.com/schemalens/schemalens/internal/cli/config"
	"github.com/schemalens/schemalens/internal/cli/ui"
	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/ledger"
)

var (
	analyzeRepository  string
	analyzeOutput      string
	analyzeStaging     string
	analyzeStage       bool
	analyzeCompress    bool
	analyzeConcurrency int
	analyzeJSON        bool
	analyzeVerbose     bool
)

// NewAnalyzeCommand creates the analyze command
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Extract a schema document from a Java working tree",
		Long: `Scan a checked-out Java working tree for persistence-annotated entity
classes and write one JSON schema document describing its tables,
columns, and relationships.

The run is recorded in the run ledger so it shows up in
'schemalens runs list'.`,
		Example: `  # Analyze the current checkout
  schemalens analyze .

  # Name the repository and compress the document
  schemalens analyze ~/src/shop --repository shop --compress

  # Copy matched entity sources into a staging directory
  schemalens analyze ~/src/shop --stage

  # Machine-readable report for tooling
  schemalens analyze ~/src/shop --json`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringVarP(&analyzeRepository, "repository", "r", "", "Repository identifier (default: base name of <path>)")
	cmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Directory schema documents are written to")
	cmd.Flags().StringVar(&analyzeStaging, "staging", "", "Directory staged entity copies are created under")
	cmd.Flags().BoolVar(&analyzeStage, "stage", false, "Copy matched entity sources after assembly")
	cmd.Flags().BoolVar(&analyzeCompress, "compress", false, "Write a gzip twin next to the document")
	cmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "Worker count for scanning and resolution (0 = all CPUs)")
	cmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the run report as JSON")
	cmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Show run progress")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	sourcePath := args[0]

	warningColor := color.New(color.FgYellow)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		if analyzeVerbose {
			warningColor.Printf("Warning: %v\n", err)
		}
	}

	opts := analyzeOptions(cfg)

	// Check the working tree up front for a friendlier error than the
	// runner's wrapped one
	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("source path %s: %w", sourcePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source path %s is not a directory", sourcePath)
	}

	repository := analyzeRepository
	if repository == "" && cfg != nil {
		repository = cfg.Repository
	}
	repoLabel := repository
	if repoLabel == "" {
		repoLabel = filepath.Base(sourcePath)
	}

	if analyzeVerbose {
		logger, lerr := zap.NewDevelopment()
		if lerr != nil {
			return fmt.Errorf("create logger: %w", lerr)
		}
		defer logger.Sync()
		opts.Logger = logger
	}

	// Record the run so it shows up in the runs history. A broken ledger
	// degrades to an unrecorded run rather than blocking the analysis.
	ledgerPath := "schemalens.db"
	if cfg != nil && cfg.Ledger.Path != "" {
		ledgerPath = cfg.Ledger.Path
	}
	if l, lerr := ledger.Open(ledgerPath); lerr == nil {
		defer l.Close()
		opts.Ledger = l
	} else if analyzeVerbose {
		warningColor.Printf("Warning: run will not be recorded: %v\n", lerr)
	}

	runner := analysis.NewRunner(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spinner *ui.Spinner
	if !analyzeJSON && !analyzeVerbose {
		spinner = ui.NewSpinner(os.Stdout, ui.SpinnerOptions{
			Message: fmt.Sprintf("Analyzing %s...", repoLabel),
		})
		spinner.Start()
	}

	report, err := runner.Run(ctx, sourcePath, repository)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	if analyzeJSON {
		return printReportJSON(report)
	}

	printReport(report)
	return nil
}

// analyzeOptions merges config file settings with the analyze flags. Flags
// win; booleans are sticky so a config-enabled setting cannot be switched
// off per invocation without editing the file.
func analyzeOptions(cfg *config.Config) analysis.Options {
	opts := analysis.Options{
		OutputBase:  analyzeOutput,
		StagingBase: analyzeStaging,
		Stage:       analyzeStage,
		Compress:    analyzeCompress,
		Concurrency: analyzeConcurrency,
	}

	if cfg != nil {
		if opts.OutputBase == "" {
			opts.OutputBase = cfg.Output.Dir
		}
		if opts.StagingBase == "" {
			opts.StagingBase = cfg.Staging.Dir
		}
		opts.Stage = opts.Stage || cfg.Staging.Enabled
		opts.Compress = opts.Compress || cfg.Output.Compress
		if opts.Concurrency == 0 {
			opts.Concurrency = cfg.Analysis.Concurrency
		}
		opts.MaxFileSize = cfg.Analysis.MaxFileSize
	}

	if opts.OutputBase == "" {
		opts.OutputBase = "schemas"
	}
	if opts.StagingBase == "" {
		opts.StagingBase = "staging"
	}

	return opts
}

func printReport(report *analysis.Report) {
	successColor := color.New(color.FgGreen, color.Bold)
	infoColor := color.New(color.FgCyan)

	fmt.Println()
	successColor.Printf("✓ Analyzed %s in %.2fs\n", report.Repository, report.Duration.Seconds())
	infoColor.Printf("  Run:      %s\n", report.RunID)
	infoColor.Printf("  Document: %s\n", report.DocumentPath)
	if report.CompressedPath != "" {
		infoColor.Printf("  Gzip:     %s\n", report.CompressedPath)
	}
	if report.StagingDir != "" {
		infoColor.Printf("  Staged:   %s\n", report.StagingDir)
	}
	infoColor.Printf("  Entities: %d (%d candidate files, %d sources scanned)\n",
		report.Entities, report.Candidates, report.SourceFiles)

	printDiagnostics(report.Diagnostics)
}

func printDiagnostics(diags []diag.Diagnostic) {
	if len(diags) == 0 {
		return
	}

	warningColor := color.New(color.FgYellow, color.Bold)

	fmt.Println()
	warningColor.Printf("%d diagnostic(s):\n", len(diags))
	for _, d := range diags {
		severityColor(d.Severity).Printf("  %s\n", d.String())
	}
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.Error:
		return color.New(color.FgRed)
	case diag.Warning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func printReportJSON(report *analysis.Report) error {
	output := struct {
		RunID        string            `json:"run_id"`
		Repository   string            `json:"repository"`
		DocumentPath string            `json:"document_path"`
		GzipPath     string            `json:"gzip_path,omitempty"`
		StagingDir   string            `json:"staging_dir,omitempty"`
		SourceFiles  int               `json:"source_files"`
		Candidates   int               `json:"candidates"`
		Entities     int               `json:"entities"`
		DurationMS   int64             `json:"duration_ms"`
		Diagnostics  []diag.Diagnostic `json:"diagnostics,omitempty"`
	}{
		RunID:        report.RunID,
		Repository:   report.Repository,
		DocumentPath: report.DocumentPath,
		GzipPath:     report.CompressedPath,
		StagingDir:   report.StagingDir,
		SourceFiles:  report.SourceFiles,
		Candidates:   report.Candidates,
		Entities:     report.Entities,
		DurationMS:   report.Duration.Milliseconds(),
		Diagnostics:  report.Diagnostics,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
