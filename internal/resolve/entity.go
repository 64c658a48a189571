package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/schemalens/schemalens/internal/diag"
	"github.com/schemalens/schemalens/internal/schema"
	"github.com/schemalens/schemalens/internal/source"
)

// Record is the per-class intermediate produced by entity resolution: the
// entity with its columns resolved, plus the association observations that
// reconciliation turns into final relationships after the barrier.
type Record struct {
	Entity       schema.Entity
	Associations []Association
}

// Association is one observed association field, before reconciliation.
type Association struct {
	Field        string
	Kind         schema.RelKind
	Target       string
	TargetSimple string
	MappedBy     string
	// Fetch is the declared mode, lowercased; empty means the kind's default
	// applies.
	Fetch   string
	Cascade []string
	// JoinDeclared reports explicit join placement on this side, which is an
	// ownership claim during reconciliation.
	JoinDeclared bool
	JoinColumn   string
	JoinTable    *schema.JoinTable
	Inherited    *schema.InheritanceInfo
}

// Resolver builds Records from candidate files. Safe for concurrent use; all
// shared state lives in the run's Context.
type Resolver struct {
	rc *Context
}

// NewResolver creates a Resolver over one run's resolution context.
func NewResolver(rc *Context) *Resolver {
	return &Resolver{rc: rc}
}

// ResolveEntity resolves one candidate file into a Record. It returns a nil
// Record when full semantic inspection shows the file does not declare an
// entity; that outcome and every degradation on the way are diagnostics, not
// errors. The error return is reserved for context cancellation.
func (r *Resolver) ResolveEntity(ctx context.Context, path string) (*Record, error) {
	file, err := r.rc.parseFile(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeParseFailed, diag.Warning, err.Error()).WithFile(path))
		return nil, nil
	}

	decl := file.Primary()
	if decl == nil {
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeNotAnEntity, diag.Info,
			"file declares no types").WithFile(path))
		return nil, nil
	}
	ms := source.MarkersOf(decl.Annotations)
	ent, ok := ms.Entity()
	if !ok || decl.Kind != source.KindClass {
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeNotAnEntity, diag.Info,
			"no class-level entity marker").WithFile(path).WithClass(decl.Name))
		return nil, nil
	}

	class := source.Qualify(file.Package, decl.Name)
	rec := &Record{Entity: schema.Entity{
		Class: class,
		Table: tableName(ms, ent, decl.Name),
	}}

	chain := r.ancestorChain(ctx, file, decl)
	if len(chain) > 0 {
		rec.Entity.MappedSuperclass = chain[0].class
	}

	// Own fields are classified first so the closest declaration of a name
	// wins, but ancestor contributions are emitted first, farthest ancestor
	// leading.
	seen := make(map[string]bool)
	own := r.resolveFields(ctx, file, decl, class, nil, seen)
	levels := make([]*fieldSet, 0, len(chain))
	for _, anc := range chain {
		inherited := &schema.InheritanceInfo{Class: anc.class}
		levels = append(levels, r.resolveFields(ctx, anc.file, anc.decl, class, inherited, seen))
	}
	for i := len(levels) - 1; i >= 0; i-- {
		rec.Entity.Columns = append(rec.Entity.Columns, levels[i].columns...)
		rec.Associations = append(rec.Associations, levels[i].associations...)
	}
	rec.Entity.Columns = append(rec.Entity.Columns, own.columns...)
	rec.Associations = append(rec.Associations, own.associations...)

	r.enforceSingleKey(rec)
	return rec, nil
}

// tableName resolves the table: explicit table marker, then the entity
// marker's declared name, then the snake_cased simple class name.
func tableName(ms source.Markers, ent source.EntityMarker, simple string) string {
	if t, ok := ms.Table(); ok && t.Name != "" {
		return t.Name
	}
	if ent.Name != "" {
		return ent.Name
	}
	return schema.ToSnakeCase(simple)
}

type ancestor struct {
	class string
	decl  *source.TypeDecl
	file  *source.File
}

// ancestorChain walks the extends chain collecting mapped superclasses,
// closest first. An ancestor that is missing from the tree, not marked as a
// mapped superclass, or already visited ends the chain.
func (r *Resolver) ancestorChain(ctx context.Context, file *source.File, decl *source.TypeDecl) []ancestor {
	var chain []ancestor
	cur, curFile := decl, file
	visited := map[string]bool{source.Qualify(file.Package, decl.Name): true}
	for cur.Superclass != "" {
		superDecl, superFile, ok := r.rc.findType(ctx, curFile, cur.Superclass)
		if !ok {
			r.rc.diags.Add(diag.New(stageResolve, diag.CodeUnknownSuperclass, diag.Info,
				fmt.Sprintf("superclass %s not found in the working tree", cur.Superclass)).
				WithClass(source.Qualify(curFile.Package, cur.Name)))
			break
		}
		class := source.Qualify(superFile.Package, superDecl.Name)
		if visited[class] {
			break
		}
		visited[class] = true
		if !source.MarkersOf(superDecl.Annotations).MappedSuperclass() {
			break
		}
		chain = append(chain, ancestor{class: class, decl: superDecl, file: superFile})
		cur, curFile = superDecl, superFile
	}
	return chain
}

type fieldSet struct {
	columns      []schema.Column
	associations []Association
}

// resolveFields classifies every field of one declaration level. seen is the
// cross-level shadow set: a name claimed by a closer level hides the same
// name on a farther ancestor, transient claims included.
func (r *Resolver) resolveFields(ctx context.Context, file *source.File, decl *source.TypeDecl, ownerClass string, inherited *schema.InheritanceInfo, seen map[string]bool) *fieldSet {
	out := &fieldSet{}
	for _, field := range decl.Fields {
		if seen[field.Name] {
			continue
		}
		seen[field.Name] = true

		ms := source.MarkersOf(field.Annotations)
		if ms.Transient() {
			continue
		}
		if assoc, ok := ms.Association(); ok {
			out.associations = append(out.associations, r.observeAssociation(ctx, file, field, ms, assoc, inherited))
			continue
		}
		if field.IsCollection {
			// A collection without an association marker has no single-column
			// representation.
			continue
		}
		if r.isEmbedded(ctx, file, field, ms) {
			out.columns = append(out.columns, r.spliceEmbedded(ctx, file, field, ownerClass, inherited)...)
			continue
		}
		if col, ok := r.resolveColumn(ctx, file, field, ms, ownerClass, inherited); ok {
			out.columns = append(out.columns, col)
		}
	}
	return out
}

func (r *Resolver) observeAssociation(ctx context.Context, file *source.File, field *source.FieldDecl, ms source.Markers, assoc source.AssociationMarker, inherited *schema.InheritanceInfo) Association {
	targetSimple := assoc.TargetEntity
	if targetSimple == "" {
		targetSimple = source.SimpleName(field.ElementType)
	}
	// Package-local guess; reconciliation re-anchors against the resolved
	// entity set by simple name if the guess misses.
	target := source.Qualify(file.Package, targetSimple)
	if targetDecl, targetFile, ok := r.rc.findType(ctx, file, targetSimple); ok {
		target = source.Qualify(targetFile.Package, targetDecl.Name)
	}

	obs := Association{
		Field:        field.Name,
		Kind:         assoc.Kind,
		Target:       target,
		TargetSimple: targetSimple,
		MappedBy:     assoc.MappedBy,
		Fetch:        assoc.Fetch,
		Cascade:      assoc.Cascade,
		Inherited:    inherited,
	}
	if jc, ok := ms.JoinColumn(); ok {
		obs.JoinColumn = jc.Name
		obs.JoinDeclared = true
	}
	if jt, ok := ms.JoinTable(); ok {
		obs.JoinTable = &schema.JoinTable{
			Name:              jt.Name,
			JoinColumn:        jt.JoinColumn,
			InverseJoinColumn: jt.InverseJoinColumn,
		}
		obs.JoinDeclared = true
	}
	return obs
}

// isEmbedded reports whether a field is an embedded value reference: either
// marked embedded on the field, or typed as a declared embeddable.
func (r *Resolver) isEmbedded(ctx context.Context, file *source.File, field *source.FieldDecl, ms source.Markers) bool {
	if ms.Embedded() {
		return true
	}
	if decl, _, ok := r.rc.findType(ctx, file, field.ElementType); ok {
		return source.MarkersOf(decl.Annotations).Embeddable()
	}
	return false
}

// spliceEmbedded resolves the referenced value type once per run and returns
// its columns retagged for the owning entity: embedding metadata pointing at
// the owning field and value type, plus the level's inheritance tag. Enum
// metadata stays on the embeddable's own record rather than the spliced copy,
// keeping the exclusive metadata groups intact.
func (r *Resolver) spliceEmbedded(ctx context.Context, file *source.File, field *source.FieldDecl, ownerClass string, inherited *schema.InheritanceInfo) []schema.Column {
	decl, declFile, ok := r.rc.findType(ctx, file, field.ElementType)
	if !ok {
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeUnknownEmbeddable, diag.Warning,
			fmt.Sprintf("embeddable type %s not found in the working tree", field.ElementType)).
			WithClass(ownerClass).WithField(field.Name))
		return nil
	}

	emb := r.embeddableFor(ctx, decl, declFile, make(map[string]bool))
	cols := make([]schema.Column, 0, len(emb.Columns))
	for _, c := range emb.Columns {
		col, err := schema.NewColumn(schema.ColumnSpec{
			Field:       c.Field,
			Name:        c.Name,
			SourceType:  c.SourceType,
			StorageType: c.StorageType,
			Nullable:    c.Nullable,
			Unique:      c.Unique,
			Length:      c.Length,
			Precision:   c.Precision,
			Scale:       c.Scale,
			Embedded:    &schema.EmbeddingInfo{Field: field.Name, Class: emb.Class},
			Inherited:   inherited,
		})
		if err != nil {
			r.rc.diags.Add(diag.New(stageResolve, diag.CodeInvalidColumn, diag.Warning, err.Error()).
				WithClass(ownerClass).WithField(field.Name))
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// embeddableFor resolves a value type's own columns through the run-scoped
// cache. seen guards against embedding cycles along the current resolution
// chain; diamond shapes resolve through the cache without tripping it.
func (r *Resolver) embeddableFor(ctx context.Context, decl *source.TypeDecl, file *source.File, seen map[string]bool) *schema.Embeddable {
	class := source.Qualify(file.Package, decl.Name)
	if e, ok := r.rc.cachedEmbeddable(class); ok {
		return e
	}
	seen[class] = true

	e := &schema.Embeddable{Class: class}
	for _, field := range decl.Fields {
		ms := source.MarkersOf(field.Annotations)
		if ms.Transient() {
			continue
		}
		if _, ok := ms.Association(); ok {
			// Associations are an entity concern; a value type cannot carry
			// one in this model.
			continue
		}
		if field.IsCollection {
			continue
		}
		if r.isEmbedded(ctx, file, field, ms) {
			nestedDecl, nestedFile, ok := r.rc.findType(ctx, file, field.ElementType)
			if !ok {
				r.rc.diags.Add(diag.New(stageResolve, diag.CodeUnknownEmbeddable, diag.Warning,
					fmt.Sprintf("embeddable type %s not found in the working tree", field.ElementType)).
					WithClass(class).WithField(field.Name))
				continue
			}
			nestedClass := source.Qualify(nestedFile.Package, nestedDecl.Name)
			if cached, ok := r.rc.cachedEmbeddable(nestedClass); ok {
				e.Columns = append(e.Columns, cached.Columns...)
				continue
			}
			if seen[nestedClass] {
				r.rc.diags.Add(diag.New(stageResolve, diag.CodeEmbeddableCycle, diag.Warning,
					fmt.Sprintf("embedding cycle through %s", nestedClass)).
					WithClass(class).WithField(field.Name))
				continue
			}
			nested := r.embeddableFor(ctx, nestedDecl, nestedFile, seen)
			e.Columns = append(e.Columns, nested.Columns...)
			continue
		}
		if col, ok := r.resolveValueColumn(ctx, file, field, ms, class); ok {
			e.Columns = append(e.Columns, col)
		}
	}

	delete(seen, class)
	return r.rc.storeEmbeddable(e)
}

// resolveColumn builds one entity column from a field declaration.
func (r *Resolver) resolveColumn(ctx context.Context, file *source.File, field *source.FieldDecl, ms source.Markers, ownerClass string, inherited *schema.InheritanceInfo) (schema.Column, bool) {
	spec := r.baseColumnSpec(ctx, file, field, ms, ownerClass, true)
	spec.Inherited = inherited
	col, err := schema.NewColumn(spec)
	if err != nil {
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeInvalidColumn, diag.Warning, err.Error()).
			WithClass(ownerClass).WithField(field.Name))
		return schema.Column{}, false
	}
	return col, true
}

// resolveValueColumn builds one embeddable column. Value types carry no keys
// in this model, so id and generation markers are ignored.
func (r *Resolver) resolveValueColumn(ctx context.Context, file *source.File, field *source.FieldDecl, ms source.Markers, class string) (schema.Column, bool) {
	spec := r.baseColumnSpec(ctx, file, field, ms, class, false)
	col, err := schema.NewColumn(spec)
	if err != nil {
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeInvalidColumn, diag.Warning, err.Error()).
			WithClass(class).WithField(field.Name))
		return schema.Column{}, false
	}
	return col, true
}

// baseColumnSpec derives the marker-driven parts of a column: resolved name,
// source and storage types, constraint arguments, enumeration metadata, and
// the primary-key facts when allowKey is set.
func (r *Resolver) baseColumnSpec(ctx context.Context, file *source.File, field *source.FieldDecl, ms source.Markers, ownerClass string, allowKey bool) schema.ColumnSpec {
	spec := schema.ColumnSpec{
		Field:      field.Name,
		SourceType: field.DeclaredType,
	}
	if col, ok := ms.Column(); ok {
		spec.Name = col.Name
		spec.Nullable = col.Nullable
		spec.Unique = col.Unique
		spec.Length = col.Length
		spec.Precision = col.Precision
		spec.Scale = col.Scale
	}
	if spec.Name == "" {
		spec.Name = schema.ToSnakeCase(field.Name)
	}

	enumMarker, hasEnumMarker := ms.Enumerated()
	typeDecl, _, typeFound := r.rc.findType(ctx, file, field.ElementType)
	isEnumType := typeFound && typeDecl.Kind == source.KindEnum
	if hasEnumMarker || isEnumType {
		storage := schema.EnumOrdinal
		if strings.EqualFold(enumMarker.Storage, string(schema.EnumString)) {
			storage = schema.EnumString
		}
		info := &schema.EnumInfo{Storage: storage}
		if isEnumType {
			info.Values = typeDecl.EnumConstants
		} else {
			r.rc.diags.Add(diag.New(stageResolve, diag.CodeUnknownEnumType, diag.Info,
				fmt.Sprintf("enum type %s not found; literal values unknown", field.ElementType)).
				WithClass(ownerClass).WithField(field.Name))
		}
		spec.Enum = info
		if storage == schema.EnumString {
			spec.StorageType = "varchar"
		} else {
			spec.StorageType = "integer"
		}
	} else {
		spec.StorageType = storageTypeFor(field.DeclaredType)
	}

	if allowKey && ms.ID() {
		spec.PrimaryKey = true
		if gen, ok := ms.GeneratedValue(); ok {
			spec.Generation = schema.ParseGeneration(gen.Strategy)
		} else {
			spec.Generation = schema.GenerationAssigned
		}
	}
	return spec
}

// enforceSingleKey keeps the first primary-key column in emission order and
// demotes any later one to a plain column. An entity without any key is still
// emitted; the absence is recorded.
func (r *Resolver) enforceSingleKey(rec *Record) {
	keyed := false
	for i := range rec.Entity.Columns {
		c := &rec.Entity.Columns[i]
		if !c.PrimaryKey {
			continue
		}
		if !keyed {
			keyed = true
			continue
		}
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeExtraPrimaryKey, diag.Warning,
			"additional primary-key column demoted; single-column keys only").
			WithClass(rec.Entity.Class).WithField(c.Field))
		c.PrimaryKey = false
		c.Generation = schema.GenerationNone
	}
	if !keyed {
		r.rc.diags.Add(diag.New(stageResolve, diag.CodeMissingPrimaryKey, diag.Info,
			"no primary-key column resolved").WithClass(rec.Entity.Class))
	}
}
