// Package render turns a schema document into Markdown compact enough to
// paste into an LLM prompt. Output is deterministic for a given document.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/schemalens/schemalens/internal/schema"
)

// MarkdownRenderer writes schema documents as Markdown.
type MarkdownRenderer struct {
	writer io.Writer
}

// NewMarkdownRenderer creates a renderer writing to w.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	return &MarkdownRenderer{writer: w}
}

// Render writes the whole document: one section per entity with a column
// table and relationship list, then one section per embeddable.
func (r *MarkdownRenderer) Render(doc *schema.Document) error {
	if doc == nil {
		return fmt.Errorf("cannot render a nil document")
	}

	_, _ = fmt.Fprintf(r.writer, "# Schema: %s\n\n", doc.Repository)
	_, _ = fmt.Fprintf(r.writer, "Generated %s. %d %s, %d %s.\n\n",
		doc.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		len(doc.Entities), plural(len(doc.Entities), "entity", "entities"),
		len(doc.Embeddables), plural(len(doc.Embeddables), "embeddable", "embeddables"))

	for _, e := range doc.Entities {
		r.renderEntity(e)
	}

	if len(doc.Embeddables) > 0 {
		_, _ = fmt.Fprintln(r.writer, "## Embeddables")
		_, _ = fmt.Fprintln(r.writer)
		for _, emb := range doc.Embeddables {
			_, _ = fmt.Fprintf(r.writer, "### %s\n\n", emb.Class)
			r.renderColumns(emb.Columns)
		}
	}

	return nil
}

func (r *MarkdownRenderer) renderEntity(e schema.Entity) {
	_, _ = fmt.Fprintf(r.writer, "## %s\n\n", e.Class)
	_, _ = fmt.Fprintf(r.writer, "Table: `%s`", e.Table)
	if e.MappedSuperclass != "" {
		_, _ = fmt.Fprintf(r.writer, " (extends `%s`)", e.MappedSuperclass)
	}
	_, _ = fmt.Fprintln(r.writer)
	_, _ = fmt.Fprintln(r.writer)

	r.renderColumns(e.Columns)

	if len(e.Relationships) > 0 {
		_, _ = fmt.Fprintln(r.writer, "Relationships:")
		_, _ = fmt.Fprintln(r.writer)
		for _, rel := range e.Relationships {
			_, _ = fmt.Fprintf(r.writer, "- %s\n", formatRelationship(rel))
		}
		_, _ = fmt.Fprintln(r.writer)
	}
}

func (r *MarkdownRenderer) renderColumns(cols []schema.Column) {
	if len(cols) == 0 {
		return
	}
	_, _ = fmt.Fprintln(r.writer, "| Column | Field | Type | Attributes |")
	_, _ = fmt.Fprintln(r.writer, "|--------|-------|------|------------|")
	for _, col := range cols {
		_, _ = fmt.Fprintf(r.writer, "| %s | %s | %s | %s |\n",
			col.Name, col.Field, formatType(col), formatAttributes(col))
	}
	_, _ = fmt.Fprintln(r.writer)
}

// formatType renders the storage type with its size arguments, falling back
// to the declared source type when no storage mapping is known.
func formatType(col schema.Column) string {
	t := col.StorageType
	if t == "" {
		t = col.SourceType
	}
	if t == "" {
		return "?"
	}
	switch {
	case col.Precision != nil && col.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", t, *col.Precision, *col.Scale)
	case col.Precision != nil:
		return fmt.Sprintf("%s(%d)", t, *col.Precision)
	case col.Length != nil:
		return fmt.Sprintf("%s(%d)", t, *col.Length)
	}
	return t
}

func formatAttributes(col schema.Column) string {
	var attrs []string

	if col.PrimaryKey {
		if col.Generation != schema.GenerationNone {
			attrs = append(attrs, fmt.Sprintf("PK (%s)", col.Generation))
		} else {
			attrs = append(attrs, "PK")
		}
	}
	if col.Nullable != nil && !*col.Nullable {
		attrs = append(attrs, "not null")
	}
	if col.Unique != nil && *col.Unique {
		attrs = append(attrs, "unique")
	}
	if col.Enum != nil {
		if len(col.Enum.Values) > 0 {
			attrs = append(attrs, fmt.Sprintf("enum %s: %s", col.Enum.Storage, strings.Join(col.Enum.Values, ", ")))
		} else {
			attrs = append(attrs, fmt.Sprintf("enum %s", col.Enum.Storage))
		}
	}
	if col.Embedded != nil {
		attrs = append(attrs, fmt.Sprintf("embedded via %s (%s)", col.Embedded.Field, col.Embedded.Class))
	}
	if col.Inherited != nil {
		attrs = append(attrs, fmt.Sprintf("from %s", col.Inherited.Class))
	}

	return strings.Join(attrs, ", ")
}

func formatRelationship(rel schema.Relationship) string {
	parts := []string{fmt.Sprintf("`%s` %s `%s`", rel.Field, rel.Kind, rel.Target)}

	if rel.Owning {
		parts = append(parts, "owning")
	} else if rel.InverseField != "" {
		parts = append(parts, fmt.Sprintf("inverse of `%s`", rel.InverseField))
	}
	if rel.Owning && rel.InverseField != "" {
		parts = append(parts, fmt.Sprintf("inverse `%s`", rel.InverseField))
	}
	if rel.JoinColumn != "" {
		parts = append(parts, fmt.Sprintf("join column `%s`", rel.JoinColumn))
	}
	if rel.JoinTable != nil {
		parts = append(parts, fmt.Sprintf("join table `%s` (`%s` / `%s`)",
			rel.JoinTable.Name, rel.JoinTable.JoinColumn, rel.JoinTable.InverseJoinColumn))
	}
	parts = append(parts, fmt.Sprintf("fetch %s", rel.Fetch))
	if len(rel.Cascade) > 0 {
		parts = append(parts, fmt.Sprintf("cascade %s", strings.Join(rel.Cascade, "/")))
	}
	if rel.Inherited != nil {
		parts = append(parts, fmt.Sprintf("from %s", rel.Inherited.Class))
	}

	return strings.Join(parts, ", ")
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
