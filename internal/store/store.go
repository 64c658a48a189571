// Package store persists schema documents beyond the primary artifact file:
// run-keyed blob storage with filesystem, in-memory, S3-compatible and
// Postgres backends. The assembler mirrors into stores; the service and CLI
// read back through them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("document not found")

// Store is run-keyed blob storage for schema documents. Implementations are
// safe for concurrent use.
type Store interface {
	// Put stores data under (runID, name), replacing any previous content.
	Put(ctx context.Context, runID, name string, data []byte) error
	// Get returns the stored content, or ErrNotFound.
	Get(ctx context.Context, runID, name string) ([]byte, error)
	// List returns the document names stored under runID, sorted.
	List(ctx context.Context, runID string) ([]string, error)
	// Kind identifies the backend in logs and diagnostics.
	Kind() string
}

// validKey rejects empty or path-escaping key components before they reach a
// backend. Both components become path or object-key segments, so separators
// are never allowed.
func validKey(runID, name string) error {
	if err := validComponent("run id", runID); err != nil {
		return err
	}
	return validComponent("document name", name)
}

func validComponent(what, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if strings.ContainsAny(v, `/\`) || v == "." || v == ".." {
		return fmt.Errorf("%s %q is not a valid key segment", what, v)
	}
	return nil
}
