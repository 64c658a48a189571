package schema

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// sampleDocument builds a document exercising inheritance, embedding, enum and
// relationship metadata together.
func sampleDocument(t *testing.T) *Document {
	t.Helper()

	mustColumn := func(spec ColumnSpec) Column {
		col, err := NewColumn(spec)
		if err != nil {
			t.Fatalf("NewColumn(%+v) error = %v", spec, err)
		}
		return col
	}
	mustRelationship := func(spec RelationshipSpec) Relationship {
		rel, err := NewRelationship(spec)
		if err != nil {
			t.Fatalf("NewRelationship(%+v) error = %v", spec, err)
		}
		return rel
	}

	return &Document{
		Repository:  "shop-backend",
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Entities: []Entity{
			{
				Class:            "com.shop.Order",
				Table:            "orders",
				MappedSuperclass: "com.shop.BaseEntity",
				Columns: []Column{
					mustColumn(ColumnSpec{
						Field: "id", Name: "id", SourceType: "Long", StorageType: "bigint",
						PrimaryKey: true, Generation: GenerationIdentity,
						Inherited: &InheritanceInfo{Class: "com.shop.BaseEntity"},
					}),
					mustColumn(ColumnSpec{
						Field: "total", Name: "total", SourceType: "BigDecimal", StorageType: "numeric",
						Nullable: boolPtr(false), Precision: intPtr(10), Scale: intPtr(2),
					}),
					mustColumn(ColumnSpec{
						Field: "status", Name: "status", SourceType: "OrderStatus",
						Enum: &EnumInfo{Storage: EnumString, Values: []string{"NEW", "PAID", "SHIPPED"}},
					}),
					mustColumn(ColumnSpec{
						Field: "street", Name: "street", SourceType: "String", StorageType: "varchar",
						Embedded: &EmbeddingInfo{Field: "address", Class: "com.shop.Address"},
					}),
				},
				Relationships: []Relationship{
					mustRelationship(RelationshipSpec{
						Field: "items", Kind: OneToMany, Target: "com.shop.Item",
						InverseField: "order", Fetch: FetchLazy,
						Cascade: []string{"persist", "remove"},
					}),
				},
			},
			{
				Class: "com.shop.Item",
				Table: "items",
				Columns: []Column{
					mustColumn(ColumnSpec{
						Field: "id", Name: "id", SourceType: "Long", StorageType: "bigint",
						PrimaryKey: true, Generation: GenerationIdentity,
					}),
				},
				Relationships: []Relationship{
					mustRelationship(RelationshipSpec{
						Field: "order", Kind: ManyToOne, Target: "com.shop.Order",
						InverseField: "items", Fetch: FetchEager,
						Owning: true, JoinColumn: "order_id",
					}),
				},
			},
		},
		Embeddables: []Embeddable{
			{
				Class: "com.shop.Address",
				Columns: []Column{
					mustColumn(ColumnSpec{Field: "street", Name: "street", SourceType: "String", StorageType: "varchar"}),
					mustColumn(ColumnSpec{Field: "city", Name: "city", SourceType: "String", StorageType: "varchar"}),
				},
			},
		},
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	doc := sampleDocument(t)

	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	if got.Repository != doc.Repository {
		t.Errorf("Repository = %q, want %q", got.Repository, doc.Repository)
	}
	if !got.GeneratedAt.Equal(doc.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, doc.GeneratedAt)
	}
	if !reflect.DeepEqual(got.Entities, doc.Entities) {
		t.Errorf("Entities differ after round trip:\ngot  %+v\nwant %+v", got.Entities, doc.Entities)
	}
	if !reflect.DeepEqual(got.Embeddables, doc.Embeddables) {
		t.Errorf("Embeddables differ after round trip:\ngot  %+v\nwant %+v", got.Embeddables, doc.Embeddables)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	doc := sampleDocument(t)

	first, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	second, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	if string(first) != string(second) {
		t.Error("Serialize() produced different bytes for the same document")
	}
}

func TestSerializeOmitsAbsentOptionals(t *testing.T) {
	doc := sampleDocument(t)

	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	out := string(data)

	for _, forbidden := range []string{`: null`, `"length"`, `"unique"`, `"mapped_superclass": ""`} {
		if strings.Contains(out, forbidden) {
			t.Errorf("serialized output contains %s, want it omitted:\n%s", forbidden, out)
		}
	}
}

func TestSerializeNil(t *testing.T) {
	if _, err := Serialize(nil); err == nil {
		t.Error("Serialize(nil) succeeded, want error")
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	doc := sampleDocument(t)
	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if len(compressed) >= len(data) {
		t.Errorf("Compress() produced %d bytes from %d, want a reduction", len(compressed), len(data))
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if string(decompressed) != string(data) {
		t.Error("Decompress(Compress(data)) != data")
	}
}

func TestWriteToFileCreatesDirectory(t *testing.T) {
	doc := sampleDocument(t)
	path := filepath.Join(t.TempDir(), "nested", "out", "schema.json")

	if err := WriteToFile(doc, path); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.Repository != doc.Repository {
		t.Errorf("Repository = %q, want %q", got.Repository, doc.Repository)
	}
}

func TestReadFromFileCompressed(t *testing.T) {
	doc := sampleDocument(t)
	data, err := Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	compressed, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "schema.json.gz")
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if len(got.Entities) != len(doc.Entities) {
		t.Errorf("Entities count = %d, want %d", len(got.Entities), len(doc.Entities))
	}
}
