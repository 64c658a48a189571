package javasrc

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/schemalens/schemalens/internal/source"
)

// Parser implements source.Parser for Java-style annotated source. It is
// stateless and safe for concurrent use.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses one file. The only failure modes are an
// unreadable file and a cancelled context; malformed source degrades to a
// partial declaration view instead of failing.
func (p *Parser) ParseFile(ctx context.Context, path string) (*source.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, string(data)), nil
}

// Parse parses source text into its declaration view. Nested types are
// flattened into File.Types after their enclosing type, so Primary still
// returns the file's outer declaration.
func Parse(path, src string) *source.File {
	pr := &parser{
		tokens: newLexer(src).scan(),
		file:   &source.File{Path: path},
	}
	pr.parse()
	return pr.file
}

var modifiers = map[string]bool{
	"public": true, "private": true, "protected": true,
	"static": true, "final": true, "abstract": true,
	"synchronized": true, "native": true, "volatile": true,
	"strictfp": true, "default": true, "sealed": true, "non": true,
}

var collectionTypes = map[string]bool{
	"Collection": true, "Iterable": true,
	"List": true, "ArrayList": true, "LinkedList": true,
	"Set": true, "HashSet": true, "LinkedHashSet": true, "TreeSet": true, "SortedSet": true,
	"Map": true, "HashMap": true, "LinkedHashMap": true, "TreeMap": true, "SortedMap": true,
}

type parser struct {
	tokens  []token
	current int
	file    *source.File
}

func (p *parser) peek() token {
	return p.tokens[p.current]
}

func (p *parser) peekAt(offset int) token {
	if p.current+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+offset]
}

func (p *parser) previous() token {
	if p.current == 0 {
		return token{typ: tokenEOF}
	}
	return p.tokens[p.current-1]
}

func (p *parser) advance() token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *parser) isAtEnd() bool {
	return p.peek().typ == tokenEOF
}

func (p *parser) checkIdent(text string) bool {
	tok := p.peek()
	return tok.typ == tokenIdent && tok.text == text
}

func (p *parser) checkPunct(text string) bool {
	tok := p.peek()
	return tok.typ == tokenPunct && tok.text == text
}

func isTypeKeyword(text string) bool {
	return text == "class" || text == "interface" || text == "enum" || text == "record"
}

func (p *parser) parse() {
	var pending []source.Annotation
	for !p.isAtEnd() {
		tok := p.peek()
		switch {
		case p.checkIdent("package"):
			p.advance()
			p.file.Package = p.dottedName()
			p.skipPast(";")
		case p.checkIdent("import"):
			p.skipPast(";")
		case p.checkPunct("@"):
			if ann, ok := p.annotation(); ok {
				pending = append(pending, ann)
			}
		case tok.typ == tokenIdent && isTypeKeyword(tok.text):
			p.file.Types = append(p.file.Types, p.typeDecl(pending)...)
			pending = nil
		case tok.typ == tokenIdent && modifiers[tok.text]:
			p.advance()
		case p.checkPunct(";"):
			p.advance()
			pending = nil
		default:
			p.advance()
		}
	}
}

// typeDecl parses one type declaration, header through closing brace, and
// returns it followed by any nested declarations found in its body.
func (p *parser) typeDecl(anns []source.Annotation) []*source.TypeDecl {
	keyword := p.advance().text
	if p.peek().typ != tokenIdent {
		return nil
	}

	decl := &source.TypeDecl{
		Name:        p.advance().text,
		Annotations: anns,
	}
	switch keyword {
	case "interface":
		decl.Kind = source.KindInterface
	case "enum":
		decl.Kind = source.KindEnum
	default:
		decl.Kind = source.KindClass
	}

	if p.checkPunct("<") {
		p.skipAngles()
	}
	if keyword == "record" && p.checkPunct("(") {
		p.skipBalanced("(", ")")
	}

	for !p.isAtEnd() && !p.checkPunct("{") {
		switch {
		case p.checkIdent("extends"):
			p.advance()
			ref, ok := p.typeRef()
			if ok && decl.Kind == source.KindClass {
				decl.Superclass = ref.base
			}
			for p.checkPunct(",") {
				p.advance()
				p.typeRef()
			}
		case p.checkIdent("implements"):
			p.advance()
			for {
				ref, ok := p.typeRef()
				if !ok {
					break
				}
				decl.Interfaces = append(decl.Interfaces, ref.base)
				if !p.checkPunct(",") {
					break
				}
				p.advance()
			}
		case p.checkIdent("permits"):
			p.advance()
			for {
				if _, ok := p.typeRef(); !ok {
					break
				}
				if !p.checkPunct(",") {
					break
				}
				p.advance()
			}
		case p.checkPunct(";"):
			// Declaration without a body; nothing to collect.
			p.advance()
			return []*source.TypeDecl{decl}
		default:
			p.advance()
		}
	}
	if !p.checkPunct("{") {
		return []*source.TypeDecl{decl}
	}
	p.advance()

	if decl.Kind == source.KindEnum {
		decl.EnumConstants = p.enumConstants()
	}
	nested := p.typeBody(decl)
	return append([]*source.TypeDecl{decl}, nested...)
}

// enumConstants reads the constant list at the top of an enum body, stopping
// at the separating semicolon or the closing brace. Constant-level argument
// lists and bodies are skipped.
func (p *parser) enumConstants() []string {
	var constants []string
	for !p.isAtEnd() {
		for p.checkPunct("@") {
			p.annotation()
		}
		if p.peek().typ != tokenIdent {
			break
		}
		constants = append(constants, p.advance().text)
		if p.checkPunct("(") {
			p.skipBalanced("(", ")")
		}
		if p.checkPunct("{") {
			p.skipBalanced("{", "}")
		}
		if !p.checkPunct(",") {
			break
		}
		p.advance()
	}
	if p.checkPunct(";") {
		p.advance()
	}
	return constants
}

// typeBody parses members until the closing brace, appending fields to decl
// and returning nested type declarations. Methods, constructors, initializer
// blocks and static fields are skipped: none of them carry column state.
func (p *parser) typeBody(decl *source.TypeDecl) []*source.TypeDecl {
	var nested []*source.TypeDecl
	var pending []source.Annotation
	transientMod := false
	staticMod := false

	for !p.isAtEnd() {
		tok := p.peek()
		switch {
		case p.checkPunct("}"):
			p.advance()
			return nested
		case p.checkPunct("@"):
			if ann, ok := p.annotation(); ok {
				pending = append(pending, ann)
			}
		case p.checkPunct("{"):
			p.skipBalanced("{", "}")
			pending, transientMod, staticMod = nil, false, false
		case p.checkPunct(";"):
			p.advance()
			pending, transientMod, staticMod = nil, false, false
		case tok.typ == tokenIdent && isTypeKeyword(tok.text):
			nested = append(nested, p.typeDecl(pending)...)
			pending, transientMod, staticMod = nil, false, false
		case p.checkIdent("transient"):
			// The language-level modifier carries the same meaning as the
			// annotation; surface it through the same channel.
			p.advance()
			transientMod = true
		case p.checkIdent("static"):
			p.advance()
			staticMod = true
		case tok.typ == tokenIdent && modifiers[tok.text]:
			p.advance()
		case tok.typ == tokenIdent || p.checkPunct("<"):
			p.member(decl, pending, transientMod, staticMod)
			pending, transientMod, staticMod = nil, false, false
		default:
			p.advance()
			pending, transientMod, staticMod = nil, false, false
		}
	}
	return nested
}

// member parses one field declaration, or skips one method or constructor.
func (p *parser) member(decl *source.TypeDecl, anns []source.Annotation, transientMod, staticMod bool) {
	if p.checkPunct("<") {
		p.skipAngles()
	}
	ref, ok := p.typeRef()
	if !ok {
		p.advance()
		return
	}
	if p.checkPunct("(") {
		// Constructor: the name parsed as a type reference.
		p.skipBalanced("(", ")")
		p.skipMethodTail()
		return
	}
	if p.peek().typ != tokenIdent {
		return
	}
	name := p.advance().text
	if p.checkPunct("(") {
		p.skipBalanced("(", ")")
		p.skipMethodTail()
		return
	}

	for {
		declRef := ref
		for p.checkPunct("[") {
			p.advance()
			if p.checkPunct("]") {
				p.advance()
			}
			declRef.array = true
		}
		if !staticMod {
			decl.Fields = append(decl.Fields, fieldFromRef(name, declRef, anns, transientMod))
		}
		if p.checkPunct("=") {
			p.advance()
			p.skipInitializer()
		}
		if !p.checkPunct(",") {
			break
		}
		p.advance()
		if p.peek().typ != tokenIdent {
			break
		}
		name = p.advance().text
	}
	if p.checkPunct(";") {
		p.advance()
	}
}

func fieldFromRef(name string, ref typeRef, anns []source.Annotation, transientMod bool) *source.FieldDecl {
	field := &source.FieldDecl{
		Name:         name,
		DeclaredType: ref.base,
		ElementType:  ref.base,
		Annotations:  anns,
	}
	switch {
	case ref.array:
		field.DeclaredType += "[]"
	case collectionTypes[source.SimpleName(ref.base)]:
		field.IsCollection = true
		if len(ref.args) > 0 {
			// Map-shaped collections resolve through the value type, which is
			// always the last argument.
			field.ElementType = ref.args[len(ref.args)-1]
		} else {
			field.ElementType = ""
		}
	case len(ref.args) == 1:
		// Single-argument wrappers such as Optional resolve through the
		// argument.
		field.ElementType = ref.args[0]
	}
	if transientMod {
		field.Annotations = append(copyAnnotations(anns), source.Annotation{Name: "Transient"})
	}
	return field
}

func copyAnnotations(anns []source.Annotation) []source.Annotation {
	if len(anns) == 0 {
		return nil
	}
	out := make([]source.Annotation, len(anns))
	copy(out, anns)
	return out
}

// typeRef describes one parsed type reference.
type typeRef struct {
	base  string   // dotted name without generics or array suffixes
	args  []string // top-level generic argument base names
	array bool
}

func (p *parser) typeRef() (typeRef, bool) {
	name := p.dottedName()
	if name == "" {
		return typeRef{}, false
	}
	ref := typeRef{base: name}
	if p.checkPunct("<") {
		ref.args = p.typeArgs()
	}
	for p.checkPunct("[") {
		p.advance()
		if p.checkPunct("]") {
			p.advance()
		}
		ref.array = true
	}
	return ref, true
}

// typeArgs parses a generic argument list, returning the base name of each
// top-level argument. Bare wildcards keep their position as Object so that
// last-argument selection stays aligned.
func (p *parser) typeArgs() []string {
	p.advance() // <
	var args []string
	for !p.isAtEnd() {
		switch {
		case p.checkPunct(">"):
			p.advance()
			return args
		case p.checkPunct("?"):
			p.advance()
			if p.checkIdent("extends") || p.checkIdent("super") {
				p.advance()
				if ref, ok := p.typeRef(); ok {
					args = append(args, ref.base)
					continue
				}
			}
			args = append(args, "Object")
		case p.peek().typ == tokenIdent:
			ref, ok := p.typeRef()
			if !ok {
				p.advance()
				continue
			}
			args = append(args, ref.base)
		case p.checkPunct(","):
			p.advance()
		default:
			p.advance()
		}
	}
	return args
}

// annotation parses one annotation usage. Returns false for annotation type
// declarations, which are skipped wholesale.
func (p *parser) annotation() (source.Annotation, bool) {
	p.advance() // @
	if p.checkIdent("interface") {
		p.advance()
		if p.peek().typ == tokenIdent {
			p.advance()
		}
		for !p.isAtEnd() && !p.checkPunct("{") && !p.checkPunct(";") {
			p.advance()
		}
		if p.checkPunct("{") {
			p.skipBalanced("{", "}")
		}
		return source.Annotation{}, false
	}

	name := p.dottedName()
	if name == "" {
		return source.Annotation{}, false
	}
	ann := source.Annotation{Name: source.SimpleName(name)}
	if p.checkPunct("(") {
		ann.Args = p.annotationArgs()
	}
	return ann, true
}

func (p *parser) annotationArgs() map[string][]string {
	p.advance() // (
	args := make(map[string][]string)
	for !p.isAtEnd() && !p.checkPunct(")") {
		name := "value"
		if p.peek().typ == tokenIdent && p.peekAt(1).typ == tokenPunct && p.peekAt(1).text == "=" {
			name = p.advance().text
			p.advance()
		}
		if vals := p.annotationValue(); len(vals) > 0 {
			args[name] = append(args[name], vals...)
		}
		if p.checkPunct(",") {
			p.advance()
		} else if !p.checkPunct(")") {
			p.advance()
		}
	}
	if p.checkPunct(")") {
		p.advance()
	}
	return args
}

// annotationValue parses one annotation argument value into its string form:
// literals keep their text, enum and constant references reduce to their last
// segment, class references drop the .class suffix, arrays contribute one
// value per element, and nested annotations reduce to their own name or value
// argument.
func (p *parser) annotationValue() []string {
	tok := p.peek()
	switch {
	case tok.typ == tokenString:
		p.advance()
		value := tok.text
		for p.checkPunct("+") && p.peekAt(1).typ == tokenString {
			p.advance()
			value += p.advance().text
		}
		return []string{value}
	case tok.typ == tokenNumber:
		p.advance()
		return []string{strings.TrimRight(tok.text, "lLfFdD")}
	case tok.typ == tokenChar:
		p.advance()
		return []string{tok.text}
	case tok.typ == tokenPunct && tok.text == "-":
		p.advance()
		if p.peek().typ == tokenNumber {
			num := p.advance()
			return []string{"-" + strings.TrimRight(num.text, "lLfFdD")}
		}
		return nil
	case tok.typ == tokenPunct && tok.text == "{":
		p.advance()
		var values []string
		for !p.isAtEnd() && !p.checkPunct("}") {
			values = append(values, p.annotationValue()...)
			if p.checkPunct(",") {
				p.advance()
			} else if !p.checkPunct("}") {
				p.advance()
			}
		}
		if p.checkPunct("}") {
			p.advance()
		}
		return values
	case tok.typ == tokenPunct && tok.text == "@":
		ann, ok := p.annotation()
		if !ok {
			return nil
		}
		if v := ann.Arg("name"); v != "" {
			return []string{v}
		}
		if v := ann.Arg("value"); v != "" {
			return []string{v}
		}
		return nil
	case tok.typ == tokenIdent:
		name := p.dottedName()
		if strings.HasSuffix(name, ".class") {
			return []string{source.SimpleName(strings.TrimSuffix(name, ".class"))}
		}
		return []string{source.SimpleName(name)}
	default:
		p.advance()
		return nil
	}
}

func (p *parser) dottedName() string {
	if p.peek().typ != tokenIdent {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.advance().text)
	for p.checkPunct(".") && p.peekAt(1).typ == tokenIdent {
		p.advance()
		b.WriteByte('.')
		b.WriteString(p.advance().text)
	}
	return b.String()
}

func (p *parser) skipPast(punct string) {
	for !p.isAtEnd() {
		if p.checkPunct(punct) {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *parser) skipBalanced(open, close string) {
	depth := 0
	for !p.isAtEnd() {
		if p.checkPunct(open) {
			depth++
		} else if p.checkPunct(close) {
			depth--
		}
		p.advance()
		if depth == 0 {
			return
		}
	}
}

func (p *parser) skipAngles() {
	depth := 0
	for !p.isAtEnd() {
		if p.checkPunct("<") {
			depth++
		} else if p.checkPunct(">") {
			depth--
		}
		p.advance()
		if depth == 0 {
			return
		}
	}
}

// skipMethodTail consumes a throws clause and then the method body or the
// trailing semicolon of an abstract declaration.
func (p *parser) skipMethodTail() {
	for !p.isAtEnd() {
		switch {
		case p.checkPunct("{"):
			p.skipBalanced("{", "}")
			return
		case p.checkPunct(";"):
			p.advance()
			return
		case p.checkPunct("["):
			p.skipBalanced("[", "]")
		case p.peek().typ == tokenIdent, p.checkPunct(","), p.checkPunct("."):
			p.advance()
		default:
			return
		}
	}
}

// skipInitializer consumes a field initializer expression up to the declarator
// separator or terminator. Angle brackets following a name are treated as
// generic arguments so commas inside them do not split declarators.
func (p *parser) skipInitializer() {
	depth := 0
	angle := 0
	for !p.isAtEnd() {
		tok := p.peek()
		if tok.typ == tokenPunct {
			switch tok.text {
			case "(", "{", "[":
				depth++
			case ")", "}", "]":
				if depth == 0 {
					return
				}
				depth--
			case "<":
				prev := p.previous()
				if prev.typ == tokenIdent || (prev.typ == tokenPunct && prev.text == ">") {
					angle++
				}
			case ">":
				if angle > 0 {
					angle--
				}
			case ",":
				if depth == 0 && angle == 0 {
					return
				}
			case ";":
				if depth == 0 {
					return
				}
			}
		}
		p.advance()
	}
}
