package source

import (
	"strconv"
	"strings"

	"github.com/schemalens/schemalens/internal/schema"
)

// Marker is the closed, typed view of one recognized annotation. Every raw
// annotation converts to exactly one variant; anything outside the persistence
// vocabulary becomes UnrecognizedMarker rather than being silently dropped.
type Marker interface {
	marker()
}

// EntityMarker marks a class as a persistent entity. Name carries the declared
// entity name (or document collection) when present; it is the table-name
// fallback before the class's simple name.
type EntityMarker struct {
	Name string
}

// TableMarker carries an explicit table name.
type TableMarker struct {
	Name string
}

// MappedSuperclassMarker marks an ancestor that contributes columns without
// mapping to its own table.
type MappedSuperclassMarker struct{}

// EmbeddableMarker marks a composite value type.
type EmbeddableMarker struct{}

// EmbeddedMarker marks a field whose value type's columns are flattened into
// the owner.
type EmbeddedMarker struct{}

// IDMarker marks a primary-key field.
type IDMarker struct{}

// GeneratedValueMarker carries a declared key-generation strategy. Strategy is
// the raw token; empty means the annotation was used without one.
type GeneratedValueMarker struct {
	Strategy string
}

// ColumnMarker carries explicit column facts.
type ColumnMarker struct {
	Name      string
	Nullable  *bool
	Unique    *bool
	Length    *int
	Precision *int
	Scale     *int
}

// EnumeratedMarker carries a declared enum storage mode; empty means default.
type EnumeratedMarker struct {
	Storage string
}

// TransientMarker marks a field as non-persistent.
type TransientMarker struct{}

// AssociationMarker carries the declared facts of one association field.
type AssociationMarker struct {
	Kind         schema.RelKind
	MappedBy     string
	Fetch        string
	Cascade      []string
	TargetEntity string
}

// JoinColumnMarker carries an explicit join-column name.
type JoinColumnMarker struct {
	Name string
}

// JoinTableMarker carries explicit join-table placement.
type JoinTableMarker struct {
	Name              string
	JoinColumn        string
	InverseJoinColumn string
}

// UnrecognizedMarker preserves annotations outside the known vocabulary.
type UnrecognizedMarker struct {
	Name string
	Args map[string][]string
}

func (EntityMarker) marker()           {}
func (TableMarker) marker()            {}
func (MappedSuperclassMarker) marker() {}
func (EmbeddableMarker) marker()       {}
func (EmbeddedMarker) marker()         {}
func (IDMarker) marker()               {}
func (GeneratedValueMarker) marker()   {}
func (ColumnMarker) marker()           {}
func (EnumeratedMarker) marker()       {}
func (TransientMarker) marker()        {}
func (AssociationMarker) marker()      {}
func (JoinColumnMarker) marker()       {}
func (JoinTableMarker) marker()        {}
func (UnrecognizedMarker) marker()     {}

// MarkerFor converts one raw annotation into its typed variant. The conversion
// is total: it never fails and never drops.
func MarkerFor(a Annotation) Marker {
	switch a.Name {
	case "Entity":
		return EntityMarker{Name: a.Arg("name")}
	case "Document":
		// Document-style entity marker; the collection argument plays the
		// table-name role.
		name := a.Arg("collection")
		if name == "" {
			name = a.Arg("value")
		}
		return EntityMarker{Name: name}
	case "Table":
		return TableMarker{Name: a.Arg("name")}
	case "MappedSuperclass":
		return MappedSuperclassMarker{}
	case "Embeddable":
		return EmbeddableMarker{}
	case "Embedded":
		return EmbeddedMarker{}
	case "Id":
		return IDMarker{}
	case "GeneratedValue":
		strategy := a.Arg("strategy")
		if strategy == "" {
			strategy = a.Arg("value")
		}
		return GeneratedValueMarker{Strategy: strategy}
	case "Column":
		return ColumnMarker{
			Name:      a.Arg("name"),
			Nullable:  boolArg(a, "nullable"),
			Unique:    boolArg(a, "unique"),
			Length:    intArg(a, "length"),
			Precision: intArg(a, "precision"),
			Scale:     intArg(a, "scale"),
		}
	case "Enumerated":
		storage := a.Arg("value")
		if storage == "" {
			storage = a.Arg("storage")
		}
		return EnumeratedMarker{Storage: storage}
	case "Transient":
		return TransientMarker{}
	case "OneToOne":
		return associationMarker(a, schema.OneToOne)
	case "OneToMany":
		return associationMarker(a, schema.OneToMany)
	case "ManyToOne":
		return associationMarker(a, schema.ManyToOne)
	case "ManyToMany":
		return associationMarker(a, schema.ManyToMany)
	case "JoinColumn":
		return JoinColumnMarker{Name: a.Arg("name")}
	case "JoinTable":
		return JoinTableMarker{
			Name:              a.Arg("name"),
			JoinColumn:        a.Arg("joinColumns"),
			InverseJoinColumn: a.Arg("inverseJoinColumns"),
		}
	default:
		return UnrecognizedMarker{Name: a.Name, Args: a.Args}
	}
}

func associationMarker(a Annotation, kind schema.RelKind) AssociationMarker {
	cascade := make([]string, 0, len(a.Values("cascade")))
	for _, c := range a.Values("cascade") {
		cascade = append(cascade, strings.ToLower(c))
	}
	if len(cascade) == 0 {
		cascade = nil
	}

	return AssociationMarker{
		Kind:         kind,
		MappedBy:     a.Arg("mappedBy"),
		Fetch:        strings.ToLower(a.Arg("fetch")),
		Cascade:      cascade,
		TargetEntity: a.Arg("targetEntity"),
	}
}

func boolArg(a Annotation, name string) *bool {
	v := a.Arg(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func intArg(a Annotation, name string) *int {
	v := a.Arg(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// Markers is the typed view of an annotation list, with one accessor per
// recognized variant.
type Markers []Marker

// MarkersOf converts raw annotations into their typed variants, preserving
// order.
func MarkersOf(anns []Annotation) Markers {
	ms := make(Markers, 0, len(anns))
	for _, a := range anns {
		ms = append(ms, MarkerFor(a))
	}
	return ms
}

// Entity returns the entity marker, if present.
func (ms Markers) Entity() (EntityMarker, bool) {
	for _, m := range ms {
		if e, ok := m.(EntityMarker); ok {
			return e, true
		}
	}
	return EntityMarker{}, false
}

// Table returns the table marker, if present.
func (ms Markers) Table() (TableMarker, bool) {
	for _, m := range ms {
		if t, ok := m.(TableMarker); ok {
			return t, true
		}
	}
	return TableMarker{}, false
}

// MappedSuperclass reports whether the mapped-superclass marker is present.
func (ms Markers) MappedSuperclass() bool {
	for _, m := range ms {
		if _, ok := m.(MappedSuperclassMarker); ok {
			return true
		}
	}
	return false
}

// Embeddable reports whether the embeddable marker is present.
func (ms Markers) Embeddable() bool {
	for _, m := range ms {
		if _, ok := m.(EmbeddableMarker); ok {
			return true
		}
	}
	return false
}

// Embedded reports whether the embedded marker is present.
func (ms Markers) Embedded() bool {
	for _, m := range ms {
		if _, ok := m.(EmbeddedMarker); ok {
			return true
		}
	}
	return false
}

// ID reports whether the primary-key marker is present.
func (ms Markers) ID() bool {
	for _, m := range ms {
		if _, ok := m.(IDMarker); ok {
			return true
		}
	}
	return false
}

// GeneratedValue returns the generation marker, if present.
func (ms Markers) GeneratedValue() (GeneratedValueMarker, bool) {
	for _, m := range ms {
		if g, ok := m.(GeneratedValueMarker); ok {
			return g, true
		}
	}
	return GeneratedValueMarker{}, false
}

// Column returns the column marker, if present.
func (ms Markers) Column() (ColumnMarker, bool) {
	for _, m := range ms {
		if c, ok := m.(ColumnMarker); ok {
			return c, true
		}
	}
	return ColumnMarker{}, false
}

// Enumerated returns the enumeration marker, if present.
func (ms Markers) Enumerated() (EnumeratedMarker, bool) {
	for _, m := range ms {
		if e, ok := m.(EnumeratedMarker); ok {
			return e, true
		}
	}
	return EnumeratedMarker{}, false
}

// Transient reports whether the transient marker is present.
func (ms Markers) Transient() bool {
	for _, m := range ms {
		if _, ok := m.(TransientMarker); ok {
			return true
		}
	}
	return false
}

// Association returns the association marker, if present.
func (ms Markers) Association() (AssociationMarker, bool) {
	for _, m := range ms {
		if a, ok := m.(AssociationMarker); ok {
			return a, true
		}
	}
	return AssociationMarker{}, false
}

// JoinColumn returns the join-column marker, if present.
func (ms Markers) JoinColumn() (JoinColumnMarker, bool) {
	for _, m := range ms {
		if j, ok := m.(JoinColumnMarker); ok {
			return j, true
		}
	}
	return JoinColumnMarker{}, false
}

// JoinTable returns the join-table marker, if present.
func (ms Markers) JoinTable() (JoinTableMarker, bool) {
	for _, m := range ms {
		if j, ok := m.(JoinTableMarker); ok {
			return j, true
		}
	}
	return JoinTableMarker{}, false
}
