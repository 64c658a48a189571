package resolve

import "github.com/schemalens/schemalens/internal/source"

// storageTypes maps well-known source types to their conventional relational
// storage types. The mapping is best effort; unmapped types leave the storage
// type empty, which serializes as omission.
var storageTypes = map[string]string{
	"String":         "varchar",
	"char":           "char",
	"Character":      "char",
	"int":            "integer",
	"Integer":        "integer",
	"long":           "bigint",
	"Long":           "bigint",
	"short":          "smallint",
	"Short":          "smallint",
	"byte":           "smallint",
	"Byte":           "smallint",
	"double":         "double precision",
	"Double":         "double precision",
	"float":          "real",
	"Float":          "real",
	"boolean":        "boolean",
	"Boolean":        "boolean",
	"BigDecimal":     "numeric",
	"BigInteger":     "numeric",
	"LocalDate":      "date",
	"LocalTime":      "time",
	"LocalDateTime":  "timestamp",
	"Instant":        "timestamp with time zone",
	"OffsetDateTime": "timestamp with time zone",
	"ZonedDateTime":  "timestamp with time zone",
	"Date":           "timestamp",
	"Timestamp":      "timestamp",
	"Calendar":       "timestamp",
	"Duration":       "bigint",
	"UUID":           "uuid",
	"byte[]":         "bytea",
	"Byte[]":         "bytea",
}

// storageTypeFor returns the mapped storage type for a declared source type,
// or "" when the type is not one the mapping recognizes.
func storageTypeFor(declared string) string {
	if t, ok := storageTypes[declared]; ok {
		return t
	}
	return storageTypes[source.SimpleName(declared)]
}
