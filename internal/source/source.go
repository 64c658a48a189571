// Package source defines the typed view of annotated source files the
// resolution pipeline consumes, and the Parser capability that produces it.
// The pipeline never manipulates raw source text beyond the classifier stage;
// everything downstream works on these declarations.
package source

import (
	"context"
	"strings"
)

// Parser turns one source file into its typed declaration view. Implementations
// live outside the core pipeline; javasrc ships the default one for Java-style
// annotated source.
type Parser interface {
	ParseFile(ctx context.Context, path string) (*File, error)
}

// File is the parsed view of one source file.
type File struct {
	Path    string
	Package string
	Types   []*TypeDecl
}

// Primary returns the file's first type declaration, which by convention is
// the public type matching the file name. Returns nil for files declaring no
// types.
func (f *File) Primary() *TypeDecl {
	if len(f.Types) == 0 {
		return nil
	}
	return f.Types[0]
}

// TypeKind distinguishes the declaration forms the pipeline cares about.
type TypeKind int

const (
	KindClass TypeKind = iota
	KindInterface
	KindEnum
)

// String returns the lowercase name of the kind.
func (k TypeKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// TypeDecl is one type declaration inside a file.
type TypeDecl struct {
	Name        string
	Kind        TypeKind
	Superclass  string
	Interfaces  []string
	Annotations []Annotation
	Fields      []*FieldDecl
	// EnumConstants holds declared constant names when Kind is KindEnum, in
	// declaration order.
	EnumConstants []string
}

// FieldDecl is one field declaration inside a type.
type FieldDecl struct {
	Name         string
	DeclaredType string
	// ElementType is the type used for cross-type resolution: the collection
	// element for collection fields, the declared type stripped of generics
	// and array suffixes otherwise.
	ElementType  string
	IsCollection bool
	Annotations  []Annotation
}

// Annotation is one annotation usage with its raw arguments. A bare value
// argument is stored under the "value" key; multi-valued arguments keep every
// value in order.
type Annotation struct {
	Name string
	Args map[string][]string
}

// Arg returns the first value of the named argument, or "" when absent.
func (a Annotation) Arg(name string) string {
	vals := a.Args[name]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Values returns every value of the named argument.
func (a Annotation) Values(name string) []string {
	return a.Args[name]
}

// Qualify joins a package name and a type name into a fully qualified name.
// Already-qualified names pass through unchanged.
func Qualify(pkg, name string) string {
	if pkg == "" || strings.Contains(name, ".") {
		return name
	}
	return pkg + "." + name
}

// SimpleName returns the last segment of a possibly qualified type name.
func SimpleName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
