// Package schema defines the intermediate representation of an extracted data
// model: one document per analysis run describing entities, columns,
// relationships and embeddable value types. Records are built once during a run
// and treated as read-only after assembly.
package schema

import (
	"fmt"
	"time"
)

// RelKind is the cardinality of an association between two entities.
type RelKind string

const (
	OneToOne   RelKind = "one-to-one"
	OneToMany  RelKind = "one-to-many"
	ManyToOne  RelKind = "many-to-one"
	ManyToMany RelKind = "many-to-many"
)

// ToMany reports whether the declaring side holds a collection.
func (k RelKind) ToMany() bool {
	return k == OneToMany || k == ManyToMany
}

// Valid reports whether k is one of the four supported kinds.
func (k RelKind) Valid() bool {
	switch k {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// Fetch is the loading mode of an association.
type Fetch string

const (
	FetchEager Fetch = "eager"
	FetchLazy  Fetch = "lazy"
)

// DefaultFetch returns the conventional fetch mode for a kind: lazy for
// to-many associations, eager for to-one.
func DefaultFetch(kind RelKind) Fetch {
	if kind.ToMany() {
		return FetchLazy
	}
	return FetchEager
}

// Generation is the key-generation strategy of a primary-key column.
type Generation string

const (
	GenerationIdentity Generation = "identity"
	GenerationSequence Generation = "sequence"
	GenerationAuto     Generation = "auto"
	GenerationAssigned Generation = "assigned"
	// GenerationNone is the zero value for non-key columns; it is omitted from
	// serialized output.
	GenerationNone Generation = ""
)

// ParseGeneration maps a declared strategy argument to a Generation. Unknown
// strategies fall back to auto, matching the provider-chooses semantics.
func ParseGeneration(s string) Generation {
	switch s {
	case "IDENTITY", "identity":
		return GenerationIdentity
	case "SEQUENCE", "sequence":
		return GenerationSequence
	case "AUTO", "auto", "":
		return GenerationAuto
	default:
		return GenerationAuto
	}
}

// EnumStorage is how an enumeration column is persisted.
type EnumStorage string

const (
	EnumOrdinal EnumStorage = "ordinal"
	EnumString  EnumStorage = "string"
)

// Document is the root artifact of one analysis run.
type Document struct {
	Repository  string       `json:"repository"`
	GeneratedAt time.Time    `json:"generated_at"`
	Entities    []Entity     `json:"entities"`
	Embeddables []Embeddable `json:"embeddables,omitempty"`
}

// Entity describes one persistent class mapped to a table.
type Entity struct {
	// Class is the fully qualified class name, unique within a document.
	Class string `json:"class"`
	// Table is the resolved table name; never empty.
	Table            string         `json:"table"`
	MappedSuperclass string         `json:"mapped_superclass,omitempty"`
	Columns          []Column       `json:"columns,omitempty"`
	Relationships    []Relationship `json:"relationships,omitempty"`
}

// PrimaryKey returns the entity's primary-key column, or nil if the entity was
// resolved without one.
func (e *Entity) PrimaryKey() *Column {
	for i := range e.Columns {
		if e.Columns[i].PrimaryKey {
			return &e.Columns[i]
		}
	}
	return nil
}

// Column describes one persisted scalar attribute.
type Column struct {
	Field       string     `json:"field"`
	Name        string     `json:"column"`
	SourceType  string     `json:"source_type"`
	StorageType string     `json:"storage_type,omitempty"`
	PrimaryKey  bool       `json:"primary_key"`
	Generation  Generation `json:"generation,omitempty"`
	Nullable    *bool      `json:"nullable,omitempty"`
	Unique      *bool      `json:"unique,omitempty"`
	Length      *int       `json:"length,omitempty"`
	Precision   *int       `json:"precision,omitempty"`
	Scale       *int       `json:"scale,omitempty"`
	// Enum is set iff the column persists an enumeration.
	Enum *EnumInfo `json:"enum,omitempty"`
	// Embedded is set iff the column was spliced in from an embeddable value
	// type. Mutually exclusive with Enum.
	Embedded *EmbeddingInfo `json:"embedded,omitempty"`
	// Inherited is set iff the column was contributed by a mapped superclass.
	Inherited *InheritanceInfo `json:"inherited,omitempty"`
}

// EnumInfo captures how an enumeration column is stored and its declared
// literal values.
type EnumInfo struct {
	Storage EnumStorage `json:"storage"`
	Values  []string    `json:"values,omitempty"`
}

// EmbeddingInfo records the origin of a column spliced in from an embeddable:
// the owning field on the entity and the value type that declared it.
type EmbeddingInfo struct {
	Field string `json:"field"`
	Class string `json:"class"`
}

// InheritanceInfo records the superclass that contributed an inherited column
// or relationship.
type InheritanceInfo struct {
	Class string `json:"class"`
}

// ColumnSpec carries the inputs for NewColumn. Optional metadata blocks are
// pointers; presence is the flag.
type ColumnSpec struct {
	Field       string
	Name        string
	SourceType  string
	StorageType string
	PrimaryKey  bool
	Generation  Generation
	Nullable    *bool
	Unique      *bool
	Length      *int
	Precision   *int
	Scale       *int
	Enum        *EnumInfo
	Embedded    *EmbeddingInfo
	Inherited   *InheritanceInfo
}

// NewColumn validates a ColumnSpec and builds an immutable Column. Invalid
// combinations (enum and embedding metadata together, a generation strategy on
// a non-key column) are rejected here so they cannot reach a document.
func NewColumn(spec ColumnSpec) (Column, error) {
	if spec.Field == "" {
		return Column{}, fmt.Errorf("column for %q: field name cannot be empty", spec.Name)
	}
	if spec.Name == "" {
		return Column{}, fmt.Errorf("column for field %q: column name cannot be empty", spec.Field)
	}
	if spec.Enum != nil && spec.Embedded != nil {
		return Column{}, fmt.Errorf("column %q: enum and embedding metadata are mutually exclusive", spec.Field)
	}
	if spec.Enum != nil && spec.Enum.Storage != EnumOrdinal && spec.Enum.Storage != EnumString {
		return Column{}, fmt.Errorf("column %q: unknown enum storage %q", spec.Field, spec.Enum.Storage)
	}
	if !spec.PrimaryKey && spec.Generation != GenerationNone {
		return Column{}, fmt.Errorf("column %q: generation strategy %q on a non-key column", spec.Field, spec.Generation)
	}
	if spec.PrimaryKey && spec.Generation == GenerationNone {
		return Column{}, fmt.Errorf("column %q: primary-key column requires a generation strategy", spec.Field)
	}

	return Column{
		Field:       spec.Field,
		Name:        spec.Name,
		SourceType:  spec.SourceType,
		StorageType: spec.StorageType,
		PrimaryKey:  spec.PrimaryKey,
		Generation:  spec.Generation,
		Nullable:    spec.Nullable,
		Unique:      spec.Unique,
		Length:      spec.Length,
		Precision:   spec.Precision,
		Scale:       spec.Scale,
		Enum:        spec.Enum,
		Embedded:    spec.Embedded,
		Inherited:   spec.Inherited,
	}, nil
}

// JoinTable describes the join table of a many-to-many association.
type JoinTable struct {
	Name              string `json:"name"`
	JoinColumn        string `json:"join_column"`
	InverseJoinColumn string `json:"inverse_join_column"`
}

// Relationship describes one association from an entity to another entity.
type Relationship struct {
	Field  string  `json:"field"`
	Kind   RelKind `json:"kind"`
	Target string  `json:"target"`
	// InverseField is the counterpart field name on the target for
	// bidirectional associations; always set on the non-owning side.
	InverseField string           `json:"inverse_field,omitempty"`
	Fetch        Fetch            `json:"fetch"`
	Cascade      []string         `json:"cascade,omitempty"`
	Owning       bool             `json:"owning"`
	JoinColumn   string           `json:"join_column,omitempty"`
	JoinTable    *JoinTable       `json:"join_table,omitempty"`
	Inherited    *InheritanceInfo `json:"inherited,omitempty"`
}

// RelationshipSpec carries the inputs for NewRelationship.
type RelationshipSpec struct {
	Field        string
	Kind         RelKind
	Target       string
	InverseField string
	Fetch        Fetch
	Cascade      []string
	Owning       bool
	JoinColumn   string
	JoinTable    *JoinTable
	Inherited    *InheritanceInfo
}

// NewRelationship validates a RelationshipSpec and builds an immutable
// Relationship. Join metadata must match the kind, and a non-owning side must
// name its inverse field.
func NewRelationship(spec RelationshipSpec) (Relationship, error) {
	if spec.Field == "" {
		return Relationship{}, fmt.Errorf("relationship to %q: field name cannot be empty", spec.Target)
	}
	if !spec.Kind.Valid() {
		return Relationship{}, fmt.Errorf("relationship %q: unknown kind %q", spec.Field, spec.Kind)
	}
	if spec.Target == "" {
		return Relationship{}, fmt.Errorf("relationship %q: target entity cannot be empty", spec.Field)
	}
	if spec.Fetch != FetchEager && spec.Fetch != FetchLazy {
		return Relationship{}, fmt.Errorf("relationship %q: unknown fetch mode %q", spec.Field, spec.Fetch)
	}
	if spec.JoinTable != nil && spec.Kind != ManyToMany {
		return Relationship{}, fmt.Errorf("relationship %q: join table on %s association", spec.Field, spec.Kind)
	}
	if spec.JoinColumn != "" && spec.Kind.ToMany() {
		return Relationship{}, fmt.Errorf("relationship %q: join column on %s association", spec.Field, spec.Kind)
	}
	if !spec.Owning && spec.InverseField == "" {
		return Relationship{}, fmt.Errorf("relationship %q: non-owning side must name its inverse field", spec.Field)
	}

	return Relationship{
		Field:        spec.Field,
		Kind:         spec.Kind,
		Target:       spec.Target,
		InverseField: spec.InverseField,
		Fetch:        spec.Fetch,
		Cascade:      spec.Cascade,
		Owning:       spec.Owning,
		JoinColumn:   spec.JoinColumn,
		JoinTable:    spec.JoinTable,
		Inherited:    spec.Inherited,
	}, nil
}

// Embeddable describes one composite value type whose columns are flattened
// into owning entities. Its own columns never carry embedding or inheritance
// metadata.
type Embeddable struct {
	Class   string   `json:"class"`
	Columns []Column `json:"columns,omitempty"`
}
