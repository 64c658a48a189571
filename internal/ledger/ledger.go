// Package ledger records analysis runs in a local SQLite database: one row
// per run from creation to its terminal status. The CLI `runs` commands and
// the service read history through it.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when no run exists with the given id.
var (
	// ErrRunNotFound reports an id no run was ever recorded under.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunFinished reports a status transition addressed to a run that has
	// already reached a state the transition does not apply to, most commonly
	// a cancel or completion racing the run's own terminal update.
	ErrRunFinished = errors.New("run already finished")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a run in this status is finished.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus validates a status string from user input.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// Run is one ledger row.
type Run struct {
	ID              string
	Repository      string
	SourcePath      string
	Status          Status
	DocumentPath    string
	StagingPath     string
	EntityCount     int
	DiagnosticCount int
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Outcome carries the fields a successful run writes back to its row.
type Outcome struct {
	DocumentPath    string
	StagingPath     string
	EntityCount     int
	DiagnosticCount int
}

// Filter narrows List results.
type Filter struct {
	// Status keeps only runs in this state when non-empty.
	Status Status
	// Limit caps the result count when positive.
	Limit int
}

// Ledger is the SQLite-backed run history.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and ensures its schema.
// ":memory:" gives an ephemeral ledger.
func Open(path string) (*Ledger, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Create inserts a pending run and returns it.
func (l *Ledger) Create(ctx context.Context, repository, sourcePath string) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		Repository: repository,
		SourcePath: sourcePath,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, repository, source_path, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Repository, run.SourcePath, string(run.Status), run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// MarkRunning transitions a pending run to running and stamps its start
// time. A run cancelled before pickup fails with ErrRunFinished so a worker
// never resurrects it.
func (l *Ledger) MarkRunning(ctx context.Context, id string) error {
	return l.transition(ctx, id,
		`UPDATE runs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(StatusRunning), time.Now().UTC(), id, string(StatusPending))
}

// Complete records a successful run and its outcome. Only a running run can
// complete; a concurrent cancel wins otherwise.
func (l *Ledger) Complete(ctx context.Context, id string, out Outcome) error {
	return l.transition(ctx, id,
		`UPDATE runs SET status = ?, document_path = ?, staging_path = ?,
		 entity_count = ?, diagnostic_count = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(StatusCompleted), out.DocumentPath, out.StagingPath,
		out.EntityCount, out.DiagnosticCount, time.Now().UTC(), id, string(StatusRunning))
}

// Fail records a failed run with its error text.
func (l *Ledger) Fail(ctx context.Context, id, message string) error {
	return l.transition(ctx, id,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(StatusFailed), message, time.Now().UTC(), id,
		string(StatusPending), string(StatusRunning))
}

// Cancel records a cancelled run. Terminal runs cannot be cancelled.
func (l *Ledger) Cancel(ctx context.Context, id string) error {
	return l.transition(ctx, id,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(StatusCancelled), time.Now().UTC(), id,
		string(StatusPending), string(StatusRunning))
}

// transition applies a status-guarded update. When no row matches, a missing
// run reports ErrRunNotFound and an existing run in a state the guard
// excludes reports ErrRunFinished.
func (l *Ledger) transition(ctx context.Context, id, query string, args ...any) error {
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := l.Get(ctx, id); err != nil {
		return err
	}
	return ErrRunFinished
}

const runColumns = `id, repository, source_path, status, document_path, staging_path,
	entity_count, diagnostic_count, error, created_at, started_at, finished_at`

// Get returns one run by id.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first, optionally filtered by status and capped.
func (l *Ledger) List(ctx context.Context, f Filter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Purge deletes terminal runs created before the cutoff and reports how many
// rows went away. Pending and running rows always survive.
func (l *Ledger) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM runs WHERE created_at < ? AND status IN (?, ?, ?)`,
		cutoff, string(StatusCompleted), string(StatusFailed), string(StatusCancelled))
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var status string
	var started, finished sql.NullTime
	err := s.Scan(&run.ID, &run.Repository, &run.SourcePath, &status,
		&run.DocumentPath, &run.StagingPath, &run.EntityCount, &run.DiagnosticCount,
		&run.Error, &run.CreatedAt, &started, &finished)
	if err != nil {
		return nil, err
	}
	run.Status = Status(status)
	if started.Valid {
		t := started.Time
		run.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
