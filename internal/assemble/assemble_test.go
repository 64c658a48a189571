package assemble

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/schema"
)

func entity(class, table string, rels ...schema.Relationship) schema.Entity {
	return schema.Entity{Class: class, Table: table, Relationships: rels}
}

func ownedRel(field, target string) schema.Relationship {
	rel, err := schema.NewRelationship(schema.RelationshipSpec{
		Field:      field,
		Kind:       schema.ManyToOne,
		Target:     target,
		Fetch:      schema.FetchEager,
		Owning:     true,
		JoinColumn: field + "_id",
	})
	if err != nil {
		panic(err)
	}
	return rel
}

func countCode(diags *diag.Collector, code string) int {
	n := 0
	for _, d := range diags.All() {
		if d.Code == code {
			n++
		}
	}
	return n
}

func TestAssembleWritesDocument(t *testing.T) {
	base := t.TempDir()
	a := New(Options{OutputBase: base})
	diags := diag.NewCollector()

	entities := []schema.Entity{
		entity("com.shop.Order", "orders", ownedRel("customer", "com.shop.Customer")),
		entity("com.shop.Customer", "customers"),
	}
	embeddables := []schema.Embeddable{{Class: "com.shop.Address"}}

	res, err := a.Assemble(context.Background(), "acme/shop", entities, embeddables, diags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	wantPrefix := filepath.Join(base, "schema-acme-shop-")
	if !strings.HasPrefix(res.Path, wantPrefix) || !strings.HasSuffix(res.Path, ".json") {
		t.Errorf("Path = %q, want %s*.json", res.Path, wantPrefix)
	}

	doc, err := schema.ReadFromFile(res.Path)
	if err != nil {
		t.Fatalf("ReadFromFile: %v", err)
	}
	if doc.Repository != "acme/shop" {
		t.Errorf("Repository = %q, want acme/shop", doc.Repository)
	}
	if doc.GeneratedAt.IsZero() {
		t.Error("GeneratedAt is zero")
	}
	if len(doc.Entities) != 2 || len(doc.Embeddables) != 1 {
		t.Errorf("document shape = (%d entities, %d embeddables), want (2, 1)", len(doc.Entities), len(doc.Embeddables))
	}
	if len(doc.Entities[0].Relationships) != 1 {
		t.Errorf("Order relationships = %d, want 1", len(doc.Entities[0].Relationships))
	}
	if diags.Count() != 0 {
		t.Errorf("diagnostics = %v, want none", diags.All())
	}
}

func TestAssembleRepairsUnknownTargets(t *testing.T) {
	a := New(Options{OutputBase: t.TempDir()})
	diags := diag.NewCollector()

	entities := []schema.Entity{
		entity("com.shop.Order", "orders",
			ownedRel("customer", "com.shop.Customer"),
			ownedRel("ghost", "com.gone.Ghost"),
		),
		entity("com.shop.Customer", "customers"),
	}

	res, err := a.Assemble(context.Background(), "shop", entities, nil, diags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	rels := res.Document.Entities[0].Relationships
	if len(rels) != 1 || rels[0].Field != "customer" {
		t.Errorf("repaired relationships = %v, want only customer", rels)
	}
	if got := countCode(diags, diag.CodeUnknownTarget); got != 1 {
		t.Errorf("unknown-target diagnostics = %d, want 1", got)
	}
}

func TestAssembleDropsDuplicateClasses(t *testing.T) {
	a := New(Options{OutputBase: t.TempDir()})
	diags := diag.NewCollector()

	entities := []schema.Entity{
		entity("com.shop.Order", "orders"),
		entity("com.shop.Order", "orders_copy"),
	}

	res, err := a.Assemble(context.Background(), "shop", entities, nil, diags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Document.Entities) != 1 || res.Document.Entities[0].Table != "orders" {
		t.Errorf("entities = %v, want only the first orders record", res.Document.Entities)
	}
	if got := countCode(diags, diag.CodeDuplicateEntity); got != 1 {
		t.Errorf("duplicate diagnostics = %d, want 1", got)
	}
}

func TestAssemblePathsAreUnique(t *testing.T) {
	a := New(Options{OutputBase: t.TempDir()})
	diags := diag.NewCollector()

	first, err := a.Assemble(context.Background(), "repo", nil, nil, diags)
	if err != nil {
		t.Fatalf("first Assemble: %v", err)
	}
	second, err := a.Assemble(context.Background(), "repo", nil, nil, diags)
	if err != nil {
		t.Fatalf("second Assemble: %v", err)
	}
	if first.Path == second.Path {
		t.Errorf("two runs produced the same path %q", first.Path)
	}
}

func TestAssembleCompressedTwin(t *testing.T) {
	a := New(Options{OutputBase: t.TempDir(), Compress: true})
	diags := diag.NewCollector()

	res, err := a.Assemble(context.Background(), "shop", []schema.Entity{entity("com.shop.Order", "orders")}, nil, diags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.CompressedPath != res.Path+".gz" {
		t.Fatalf("CompressedPath = %q, want %q", res.CompressedPath, res.Path+".gz")
	}

	doc, err := schema.ReadFromFile(res.CompressedPath)
	if err != nil {
		t.Fatalf("ReadFromFile on twin: %v", err)
	}
	if len(doc.Entities) != 1 || doc.Entities[0].Class != "com.shop.Order" {
		t.Errorf("twin document entities = %v, want the same single entity", doc.Entities)
	}
}

// fakeMirror records puts and optionally fails.
type fakeMirror struct {
	kind string
	fail bool
	keys []string
}

func (m *fakeMirror) Put(ctx context.Context, key string, data []byte) error {
	if m.fail {
		return errors.New("mirror unavailable")
	}
	m.keys = append(m.keys, key)
	return nil
}

func (m *fakeMirror) Kind() string { return m.kind }

func TestAssembleMirrors(t *testing.T) {
	good := &fakeMirror{kind: "memory"}
	bad := &fakeMirror{kind: "s3", fail: true}
	a := New(Options{OutputBase: t.TempDir(), Mirrors: []Mirror{good, bad}})
	diags := diag.NewCollector()

	res, err := a.Assemble(context.Background(), "shop", []schema.Entity{entity("com.shop.Order", "orders")}, nil, diags)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(good.keys) != 1 || good.keys[0] != filepath.Base(res.Path) {
		t.Errorf("mirrored keys = %v, want [%s]", good.keys, filepath.Base(res.Path))
	}
	if got := countCode(diags, diag.CodeStoreMirror); got != 1 {
		t.Errorf("mirror diagnostics = %d, want 1", got)
	}
	for _, d := range diags.All() {
		if d.Code == diag.CodeStoreMirror && !strings.Contains(d.Message, "s3") {
			t.Errorf("mirror diagnostic %q does not name the failing store", d.Message)
		}
	}
}

func TestAssembleSanitizesRepository(t *testing.T) {
	a := New(Options{OutputBase: t.TempDir()})
	res, err := a.Assemble(context.Background(), "My Repo/álpha", nil, nil, diag.NewCollector())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if base := filepath.Base(res.Path); !strings.HasPrefix(base, "schema-my-repo-lpha-") {
		t.Errorf("artifact name = %q, want sanitized schema-my-repo-lpha-* prefix", base)
	}
}

func TestAssembleWriteFailure(t *testing.T) {
	// The output base collides with an existing file, so MkdirAll must fail.
	base := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(base, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := New(Options{OutputBase: base})
	if _, err := a.Assemble(context.Background(), "shop", nil, nil, diag.NewCollector()); err == nil {
		t.Fatal("Assemble with blocked output base returned nil error")
	}
}

func TestAssembleCancelled(t *testing.T) {
	a := New(Options{OutputBase: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Assemble(ctx, "shop", nil, nil, diag.NewCollector()); err == nil {
		t.Fatal("Assemble with cancelled context returned nil error")
	}
}
