package source

import (
	"reflect"
	"testing"

	"github.com/schemalens/schemalens/internal/schema"
)

func TestMarkerForColumn(t *testing.T) {
	a := Annotation{
		Name: "Column",
		Args: map[string][]string{
			"name":     {"order_total"},
			"nullable": {"false"},
			"unique":   {"true"},
			"length":   {"50"},
		},
	}

	m, ok := MarkerFor(a).(ColumnMarker)
	if !ok {
		t.Fatalf("MarkerFor(Column) = %T, want ColumnMarker", MarkerFor(a))
	}
	if m.Name != "order_total" {
		t.Errorf("Name = %q, want %q", m.Name, "order_total")
	}
	if m.Nullable == nil || *m.Nullable != false {
		t.Errorf("Nullable = %v, want false", m.Nullable)
	}
	if m.Unique == nil || *m.Unique != true {
		t.Errorf("Unique = %v, want true", m.Unique)
	}
	if m.Length == nil || *m.Length != 50 {
		t.Errorf("Length = %v, want 50", m.Length)
	}
	if m.Precision != nil {
		t.Errorf("Precision = %v, want nil for absent argument", m.Precision)
	}
}

func TestMarkerForAssociations(t *testing.T) {
	tests := []struct {
		annotation string
		wantKind   schema.RelKind
	}{
		{"OneToOne", schema.OneToOne},
		{"OneToMany", schema.OneToMany},
		{"ManyToOne", schema.ManyToOne},
		{"ManyToMany", schema.ManyToMany},
	}

	for _, tt := range tests {
		t.Run(tt.annotation, func(t *testing.T) {
			a := Annotation{
				Name: tt.annotation,
				Args: map[string][]string{
					"mappedBy": {"order"},
					"fetch":    {"LAZY"},
					"cascade":  {"ALL"},
				},
			}

			m, ok := MarkerFor(a).(AssociationMarker)
			if !ok {
				t.Fatalf("MarkerFor(%s) = %T, want AssociationMarker", tt.annotation, MarkerFor(a))
			}
			if m.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", m.Kind, tt.wantKind)
			}
			if m.MappedBy != "order" {
				t.Errorf("MappedBy = %q, want %q", m.MappedBy, "order")
			}
			if m.Fetch != "lazy" {
				t.Errorf("Fetch = %q, want %q", m.Fetch, "lazy")
			}
			if !reflect.DeepEqual(m.Cascade, []string{"all"}) {
				t.Errorf("Cascade = %v, want [all]", m.Cascade)
			}
		})
	}
}

func TestMarkerForGeneratedValue(t *testing.T) {
	withStrategy := Annotation{Name: "GeneratedValue", Args: map[string][]string{"strategy": {"IDENTITY"}}}
	m, ok := MarkerFor(withStrategy).(GeneratedValueMarker)
	if !ok || m.Strategy != "IDENTITY" {
		t.Errorf("MarkerFor(GeneratedValue strategy) = %+v, want Strategy IDENTITY", m)
	}

	bare := Annotation{Name: "GeneratedValue", Args: map[string][]string{}}
	m, ok = MarkerFor(bare).(GeneratedValueMarker)
	if !ok || m.Strategy != "" {
		t.Errorf("MarkerFor(bare GeneratedValue) = %+v, want empty Strategy", m)
	}
}

func TestMarkerForDocumentStyleEntity(t *testing.T) {
	a := Annotation{Name: "Document", Args: map[string][]string{"collection": {"orders"}}}
	m, ok := MarkerFor(a).(EntityMarker)
	if !ok {
		t.Fatalf("MarkerFor(Document) = %T, want EntityMarker", MarkerFor(a))
	}
	if m.Name != "orders" {
		t.Errorf("Name = %q, want %q", m.Name, "orders")
	}
}

func TestMarkerForUnrecognized(t *testing.T) {
	a := Annotation{Name: "Audited", Args: map[string][]string{"withModifiedFlag": {"true"}}}
	m, ok := MarkerFor(a).(UnrecognizedMarker)
	if !ok {
		t.Fatalf("MarkerFor(Audited) = %T, want UnrecognizedMarker", MarkerFor(a))
	}
	if m.Name != "Audited" {
		t.Errorf("Name = %q, want %q", m.Name, "Audited")
	}
	if m.Args["withModifiedFlag"][0] != "true" {
		t.Errorf("Args = %v, want raw arguments preserved", m.Args)
	}
}

func TestMarkersAccessors(t *testing.T) {
	ms := MarkersOf([]Annotation{
		{Name: "Entity"},
		{Name: "Table", Args: map[string][]string{"name": {"orders"}}},
		{Name: "Audited"},
	})

	if _, ok := ms.Entity(); !ok {
		t.Error("Entity() = false, want entity marker present")
	}
	table, ok := ms.Table()
	if !ok {
		t.Fatal("Table() = false, want table marker present")
	}
	if table.Name != "orders" {
		t.Errorf("Table().Name = %q, want %q", table.Name, "orders")
	}
	if ms.MappedSuperclass() {
		t.Error("MappedSuperclass() = true, want false")
	}
	if _, ok := ms.Association(); ok {
		t.Error("Association() = true, want false")
	}
}

func TestMarkersFieldAccessors(t *testing.T) {
	ms := MarkersOf([]Annotation{
		{Name: "Id"},
		{Name: "GeneratedValue", Args: map[string][]string{"strategy": {"SEQUENCE"}}},
		{Name: "Column", Args: map[string][]string{"name": {"id"}}},
	})

	if !ms.ID() {
		t.Error("ID() = false, want true")
	}
	gen, ok := ms.GeneratedValue()
	if !ok || gen.Strategy != "SEQUENCE" {
		t.Errorf("GeneratedValue() = %+v, %v; want SEQUENCE, true", gen, ok)
	}
	if ms.Transient() {
		t.Error("Transient() = true, want false")
	}
	join, ok := ms.JoinColumn()
	if ok {
		t.Errorf("JoinColumn() = %+v, want absent", join)
	}
}
