// Package resolve turns candidate files into per-class entity records and
// reconciles cross-entity relationships. Entity resolution is per-file and
// safe to fan out; relationship reconciliation needs every record and runs
// after the fan-in barrier.
package resolve

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/schema"
	"github.com/schemalens/schemalens/internal/source"
)

const (
	stageResolve       = "resolve"
	stageRelationships = "relationships"
)

var errParseFailed = errors.New("parse previously failed")

// Context carries everything shared across one analysis run's resolution:
// the parser, the type index from the scan, the diagnostics collector, and
// the run-scoped caches. It is safe for concurrent use by the per-file
// fan-out; nothing in it outlives the run.
type Context struct {
	parser source.Parser
	index  map[string][]string
	diags  *diag.Collector

	mu          sync.Mutex
	files       map[string]*source.File
	parseFailed map[string]bool
	embeddables map[string]*schema.Embeddable
}

// NewContext creates the resolution context for one run. index maps simple
// type names to the files declaring them, as produced by the scan.
func NewContext(parser source.Parser, index map[string][]string, diags *diag.Collector) *Context {
	return &Context{
		parser:      parser,
		index:       index,
		diags:       diags,
		files:       make(map[string]*source.File),
		parseFailed: make(map[string]bool),
		embeddables: make(map[string]*schema.Embeddable),
	}
}

// parseFile parses one file at most once per run. A failed parse is also
// remembered so repeated lookups do not retry the same broken file.
func (rc *Context) parseFile(ctx context.Context, path string) (*source.File, error) {
	rc.mu.Lock()
	if f, ok := rc.files[path]; ok {
		rc.mu.Unlock()
		return f, nil
	}
	failed := rc.parseFailed[path]
	rc.mu.Unlock()
	if failed {
		return nil, errParseFailed
	}

	f, err := rc.parser.ParseFile(ctx, path)

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if err != nil {
		rc.parseFailed[path] = true
		return nil, err
	}
	rc.files[path] = f
	return f, nil
}

// findType locates a type declaration by name. The current file's own
// declarations are searched first so nested types resolve without an index
// entry; after that the type index is consulted by simple name.
func (rc *Context) findType(ctx context.Context, from *source.File, name string) (*source.TypeDecl, *source.File, bool) {
	simple := source.SimpleName(name)
	if simple == "" {
		return nil, nil, false
	}
	if from != nil {
		for _, decl := range from.Types {
			if decl.Name == simple {
				return decl, from, true
			}
		}
	}
	for _, path := range rc.index[simple] {
		f, err := rc.parseFile(ctx, path)
		if err != nil {
			continue
		}
		for _, decl := range f.Types {
			if decl.Name == simple {
				return decl, f, true
			}
		}
	}
	return nil, nil, false
}

// cachedEmbeddable returns the run-scoped resolution of a value type, if one
// was already produced.
func (rc *Context) cachedEmbeddable(class string) (*schema.Embeddable, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	e, ok := rc.embeddables[class]
	return e, ok
}

// storeEmbeddable records a resolved value type. The first resolution wins;
// concurrent duplicate resolutions produce identical values.
func (rc *Context) storeEmbeddable(e *schema.Embeddable) *schema.Embeddable {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if existing, ok := rc.embeddables[e.Class]; ok {
		return existing
	}
	rc.embeddables[e.Class] = e
	return e
}

// Embeddables returns every value type resolved during the run, ordered by
// class name.
func (rc *Context) Embeddables() []schema.Embeddable {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	out := make([]schema.Embeddable, 0, len(rc.embeddables))
	for _, e := range rc.embeddables {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}
