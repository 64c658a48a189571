// Package assemble builds the final schema document from resolved entities and
// persists it under a collision-free path. Referential repair happens here:
// the document never names a relationship target it does not contain.
package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/schema"
)

const stage = "assemble"

// Mirror receives a copy of the primary artifact after it is written locally.
// Document stores satisfy this.
type Mirror interface {
	Put(ctx context.Context, key string, data []byte) error
	Kind() string
}

// Options configures an Assembler.
type Options struct {
	// OutputBase is the directory the artifact is written under; created if
	// absent.
	OutputBase string
	// Compress also writes a gzipped twin next to the primary artifact.
	Compress bool
	// Mirrors receive the artifact bytes after the primary write. Mirror
	// failures are diagnostics; the primary write alone decides run success.
	Mirrors []Mirror
}

// Assembler combines entities and embeddables into one document per run.
type Assembler struct {
	opts Options
}

// New creates an Assembler.
func New(opts Options) *Assembler {
	return &Assembler{opts: opts}
}

// Result reports what one assembly produced.
type Result struct {
	Document *schema.Document
	// Path is the primary artifact location.
	Path string
	// CompressedPath is the gzip twin, when compression was requested.
	CompressedPath string
}

// Assemble repairs the entity set, builds the document and writes it to
// `<output-base>/schema-<token>-<suffix>.json`. A write failure is fatal for
// the run; everything else degrades to diagnostics.
func (a *Assembler) Assemble(ctx context.Context, repository string, entities []schema.Entity, embeddables []schema.Embeddable, diags *diag.Collector) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &schema.Document{
		Repository:  repository,
		GeneratedAt: time.Now().UTC(),
		Entities:    repairEntities(entities, diags),
		Embeddables: embeddables,
	}

	data, err := schema.Serialize(doc)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(a.opts.OutputBase, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", a.opts.OutputBase, err)
	}

	name := fmt.Sprintf("schema-%s-%s.json", schema.SanitizeToken(repository), uuid.NewString())
	path := filepath.Join(a.opts.OutputBase, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write schema document %s: %w", path, err)
	}

	result := &Result{Document: doc, Path: path}

	if a.opts.Compress {
		compressed, err := schema.Compress(data)
		if err != nil {
			return nil, err
		}
		gzPath := path + ".gz"
		if err := os.WriteFile(gzPath, compressed, 0o644); err != nil {
			return nil, fmt.Errorf("write compressed document %s: %w", gzPath, err)
		}
		result.CompressedPath = gzPath
	}

	for _, m := range a.opts.Mirrors {
		if err := m.Put(ctx, name, data); err != nil {
			diags.Add(diag.New(stage, diag.CodeStoreMirror, diag.Warning,
				fmt.Sprintf("mirror to %s store failed: %v", m.Kind(), err)))
		}
	}

	return result, nil
}

// repairEntities drops duplicate classes and relationships whose target is not
// part of the final entity set. Entities keep their resolution order.
func repairEntities(entities []schema.Entity, diags *diag.Collector) []schema.Entity {
	known := make(map[string]bool, len(entities))
	kept := make([]schema.Entity, 0, len(entities))
	for _, e := range entities {
		if known[e.Class] {
			diags.Add(diag.New(stage, diag.CodeDuplicateEntity, diag.Warning,
				"entity class resolved more than once; keeping the first").WithClass(e.Class))
			continue
		}
		known[e.Class] = true
		kept = append(kept, e)
	}

	for i := range kept {
		e := &kept[i]
		if len(e.Relationships) == 0 {
			continue
		}
		repaired := make([]schema.Relationship, 0, len(e.Relationships))
		for _, rel := range e.Relationships {
			if !known[rel.Target] {
				diags.Add(diag.New(stage, diag.CodeUnknownTarget, diag.Warning,
					fmt.Sprintf("relationship target %s is not an entity in this run; dropped", rel.Target)).
					WithClass(e.Class).WithField(rel.Field))
				continue
			}
			repaired = append(repaired, rel)
		}
		e.Relationships = repaired
	}
	return kept
}
