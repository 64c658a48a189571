// Package analysis orchestrates a full schema extraction run: candidate
// scan, parallel entity resolution, relationship reconciliation, document
// assembly, and optional staging of the matched source files.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schemalens/schemalens/internal/assemble"
	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/ledger"
	"github.com/schemalens/schemalens/internal/resolve"
	"github.com/schemalens/schemalens/internal/scanner"
	"github.com/schemalens/schemalens/internal/schema"
	"github.com/schemalens/schemalens/internal/source"
	"github.com/schemalens/schemalens/internal/source/javasrc"
	"github.com/schemalens/schemalens/internal/staging"
	"github.com/schemalens/schemalens/internal/store"
)

// RunError wraps a fatal run failure with the repository it belongs to.
type RunError struct {
	Repository string
	Err        error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.Repository, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Options configures a Runner.
type Options struct {
	// Parser reads source files. Nil selects the plain Java adapter; the
	// service passes a content-hash cached wrapper instead.
	Parser source.Parser

	// OutputBase is the directory schema documents are written to.
	OutputBase string

	// StagingBase is the directory staged entity copies are created under.
	StagingBase string

	// Stage enables copying of matched entity sources after assembly.
	Stage bool

	// Compress enables the .json.gz twin next to the document.
	Compress bool

	// Concurrency bounds scan classification and per-file resolution.
	// 0 selects GOMAXPROCS.
	Concurrency int

	// MaxFileSize is the scan classification size cap in bytes.
	MaxFileSize int64

	// Mirrors receive a copy of every assembled document, keyed by run id.
	Mirrors []store.Store

	// Ledger records run lifecycle when non-nil.
	Ledger *ledger.Ledger

	// Notify observes every status transition the runner records, for event
	// fan-out alongside the ledger. May be nil.
	Notify func(runID string, status ledger.Status)

	// Logger receives run progress. Nil selects a no-op logger.
	Logger *zap.Logger
}

// Runner executes analysis runs. Safe for concurrent use; every run carries
// its own resolution context and diagnostics.
type Runner struct {
	parser      source.Parser
	outputBase  string
	stagingBase string
	stage       bool
	compress    bool
	concurrency int
	maxFileSize int64
	mirrors     []store.Store
	ledger      *ledger.Ledger
	notify      func(runID string, status ledger.Status)
	logger      *zap.Logger
}

// NewRunner creates a Runner with the given options.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		parser:      opts.Parser,
		outputBase:  opts.OutputBase,
		stagingBase: opts.StagingBase,
		stage:       opts.Stage,
		compress:    opts.Compress,
		concurrency: opts.Concurrency,
		maxFileSize: opts.MaxFileSize,
		mirrors:     opts.Mirrors,
		ledger:      opts.Ledger,
		notify:      opts.Notify,
		logger:      opts.Logger,
	}
	if r.parser == nil {
		r.parser = javasrc.NewParser()
	}
	if r.concurrency <= 0 {
		r.concurrency = runtime.GOMAXPROCS(0)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// WithStage returns a copy of the runner with staging switched on or off,
// for callers that decide staging per request.
func (r *Runner) WithStage(stage bool) *Runner {
	c := *r
	c.stage = stage
	return &c
}

func (r *Runner) notifyStatus(runID string, status ledger.Status) {
	if r.notify != nil {
		r.notify(runID, status)
	}
}

// Report is the outcome of one completed run.
type Report struct {
	RunID          string
	Repository     string
	Document       *schema.Document
	DocumentPath   string
	CompressedPath string
	StagingDir     string
	SourceFiles    int
	Candidates     int
	Entities       int
	Diagnostics    []diag.Diagnostic
	Duration       time.Duration
}

// Run analyzes the working tree at sourcePath and writes one schema document.
// An empty repository identifier defaults to the tree's base name. A partial
// staging directory is cleaned up when the run is cancelled mid-copy.
func (r *Runner) Run(ctx context.Context, sourcePath, repository string) (*Report, error) {
	if repository == "" {
		repository = filepath.Base(sourcePath)
	}

	runID := ""
	if r.ledger == nil {
		runID = uuid.NewString()
	} else {
		run, err := r.ledger.Create(ctx, repository, sourcePath)
		if err != nil {
			return nil, &RunError{Repository: repository, Err: fmt.Errorf("create ledger run: %w", err)}
		}
		runID = run.ID
	}
	return r.RunExisting(ctx, runID, sourcePath, repository)
}

// RunExisting executes an analysis under a run id the caller already holds,
// typically one handed out by the service before scheduling the work. With a
// ledger configured the run must still be pending; a run cancelled before
// pickup fails with ledger.ErrRunFinished in the error chain.
func (r *Runner) RunExisting(ctx context.Context, runID, sourcePath, repository string) (*Report, error) {
	if repository == "" {
		repository = filepath.Base(sourcePath)
	}

	started := time.Now()
	diags := diag.NewCollector()

	if r.ledger != nil {
		if err := r.ledger.MarkRunning(ctx, runID); err != nil {
			return nil, &RunError{Repository: repository, Err: fmt.Errorf("mark run running: %w", err)}
		}
	}
	r.notifyStatus(runID, ledger.StatusRunning)

	log := r.logger.With(zap.String("run_id", runID), zap.String("repository", repository))
	log.Info("analysis started", zap.String("source_path", sourcePath))

	sc := scanner.New(scanner.Options{
		Concurrency: r.concurrency,
		MaxFileSize: r.maxFileSize,
	})
	scan, err := sc.Scan(ctx, sourcePath, diags)
	if err != nil {
		return nil, r.fail(ctx, log, runID, repository, fmt.Errorf("scan: %w", err))
	}
	log.Info("scan finished",
		zap.Int("source_files", scan.SourceFiles),
		zap.Int("candidates", len(scan.Candidates)))

	rc := resolve.NewContext(r.parser, scan.TypeIndex, diags)
	records, entityFiles, err := r.resolveCandidates(ctx, rc, scan.Candidates)
	if err != nil {
		return nil, r.fail(ctx, log, runID, repository, fmt.Errorf("resolve: %w", err))
	}
	log.Info("resolution finished", zap.Int("entities", len(records)))

	// All per-file resolution has finished; relationships can now be
	// reconciled across the complete record set.
	resolve.Reconcile(records, diags)

	entities := make([]schema.Entity, len(records))
	for i, rec := range records {
		entities[i] = rec.Entity
	}

	asm := assemble.New(assemble.Options{
		OutputBase: r.outputBase,
		Compress:   r.compress,
		Mirrors:    r.mirrorsFor(runID),
	})
	result, err := asm.Assemble(ctx, repository, entities, rc.Embeddables(), diags)
	if err != nil {
		return nil, r.fail(ctx, log, runID, repository, fmt.Errorf("assemble: %w", err))
	}
	log.Info("document written", zap.String("path", result.Path))

	stagingDir := ""
	if r.stage {
		dir, err := staging.New(r.stagingBase).Stage(ctx, entityFiles, diags)
		if err != nil {
			staging.Cleanup(dir, diags)
			return nil, r.fail(ctx, log, runID, repository, fmt.Errorf("stage: %w", err))
		}
		stagingDir = dir
		log.Info("entity sources staged", zap.String("dir", dir), zap.Int("files", len(entityFiles)))
	}

	r.completeRun(ctx, log, runID, ledger.Outcome{
		DocumentPath:    result.Path,
		StagingPath:     stagingDir,
		EntityCount:     len(entities),
		DiagnosticCount: diags.Count(),
	})
	r.notifyStatus(runID, ledger.StatusCompleted)

	duration := time.Since(started)
	log.Info("analysis completed",
		zap.Int("entities", len(entities)),
		zap.Int("diagnostics", diags.Count()),
		zap.Duration("duration", duration))

	return &Report{
		RunID:          runID,
		Repository:     repository,
		Document:       result.Document,
		DocumentPath:   result.Path,
		CompressedPath: result.CompressedPath,
		StagingDir:     stagingDir,
		SourceFiles:    scan.SourceFiles,
		Candidates:     len(scan.Candidates),
		Entities:       len(entities),
		Diagnostics:    diags.All(),
		Duration:       duration,
	}, nil
}

// resolveCandidates fans per-file resolution out across a bounded group and
// fans results back in preserving candidate order. Files that turn out not to
// declare entities drop out here; the surviving record list is paired with
// the file that produced each record for later staging.
func (r *Runner) resolveCandidates(ctx context.Context, rc *resolve.Context, candidates []string) ([]*resolve.Record, []string, error) {
	slots := make([]*resolve.Record, len(candidates))
	resolver := resolve.NewResolver(rc)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, path := range candidates {
		i, path := i, path
		g.Go(func() error {
			rec, err := resolver.ResolveEntity(gctx, path)
			if err != nil {
				return err
			}
			slots[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	records := make([]*resolve.Record, 0, len(slots))
	files := make([]string, 0, len(slots))
	for i, rec := range slots {
		if rec == nil {
			continue
		}
		records = append(records, rec)
		files = append(files, candidates[i])
	}
	return records, files, nil
}

// storeMirror binds a document store to one run id so the assembler can
// mirror without knowing about runs.
type storeMirror struct {
	store store.Store
	runID string
}

func (m storeMirror) Put(ctx context.Context, key string, data []byte) error {
	return m.store.Put(ctx, m.runID, key, data)
}

func (m storeMirror) Kind() string {
	return m.store.Kind()
}

func (r *Runner) mirrorsFor(runID string) []assemble.Mirror {
	if len(r.mirrors) == 0 {
		return nil
	}
	mirrors := make([]assemble.Mirror, 0, len(r.mirrors))
	for _, s := range r.mirrors {
		mirrors = append(mirrors, storeMirror{store: s, runID: runID})
	}
	return mirrors
}

// completeRun records the terminal state. Ledger write failures at this point
// do not fail an otherwise successful run.
func (r *Runner) completeRun(ctx context.Context, log *zap.Logger, runID string, out ledger.Outcome) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Complete(ctx, runID, out); err != nil {
		log.Warn("failed to record run completion", zap.Error(err))
	}
}

// fail wraps err for the caller and records the terminal ledger state:
// cancelled when the context was cancelled, failed otherwise. Ledger updates
// use a fresh context since the run's own context may already be dead; a
// caller that already recorded the terminal state wins silently.
func (r *Runner) fail(ctx context.Context, log *zap.Logger, runID, repository string, err error) error {
	runErr := &RunError{Repository: repository, Err: err}
	if r.ledger != nil {
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ctx.Err() != nil {
			if lerr := r.ledger.Cancel(recCtx, runID); lerr != nil && !errors.Is(lerr, ledger.ErrRunFinished) {
				log.Warn("failed to record run cancellation", zap.Error(lerr))
			}
		} else {
			if lerr := r.ledger.Fail(recCtx, runID, err.Error()); lerr != nil && !errors.Is(lerr, ledger.ErrRunFinished) {
				log.Warn("failed to record run failure", zap.Error(lerr))
			}
		}
	}
	if ctx.Err() != nil {
		r.notifyStatus(runID, ledger.StatusCancelled)
		log.Info("analysis cancelled")
	} else {
		r.notifyStatus(runID, ledger.StatusFailed)
		log.Error("analysis failed", zap.Error(err))
	}
	return runErr
}
