// Package javasrc reads Java-style annotated source into the typed declaration
// view the resolution pipeline consumes. It is a structural reader, not a
// compiler front end: it understands packages, type headers, annotations,
// fields and enum constants, and skips everything else by bracket balance.
// Anything it cannot make sense of is skipped, never fatal.
package javasrc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenIdent tokenType = iota
	tokenString
	tokenNumber
	tokenChar
	tokenPunct
	tokenEOF
)

type token struct {
	typ  tokenType
	text string
	line int
}

// lexer tokenizes source, discarding comments and whitespace. Instances are
// not safe for concurrent use; each parse creates its own.
type lexer struct {
	source  string
	current int
	line    int
	tokens  []token
}

func newLexer(source string) *lexer {
	return &lexer{
		source: source,
		line:   1,
		tokens: make([]token, 0, len(source)/8),
	}
}

// scan tokenizes the entire source. It never fails: malformed input produces
// fewer tokens, not errors.
func (l *lexer) scan() []token {
	for !l.isAtEnd() {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.advance()
		case c == '\n':
			l.line++
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			l.skipLineComment()
		case c == '/' && l.peekAt(1) == '*':
			l.skipBlockComment()
		case c == '"':
			l.scanString()
		case c == '\'':
			l.scanCharLiteral()
		case isDigit(c):
			l.scanNumber()
		case isIdentStart(c):
			l.scanIdentifier()
		default:
			l.addToken(tokenPunct, string(c))
			l.advance()
		}
	}

	l.tokens = append(l.tokens, token{typ: tokenEOF, line: l.line})
	return l.tokens
}

func (l *lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

func (l *lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

func (l *lexer) peekAt(offset int) byte {
	if l.current+offset >= len(l.source) {
		return 0
	}
	return l.source[l.current+offset]
}

func (l *lexer) advance() byte {
	c := l.source[l.current]
	l.current++
	return c
}

func (l *lexer) addToken(typ tokenType, text string) {
	l.tokens = append(l.tokens, token{typ: typ, text: text, line: l.line})
}

func (l *lexer) skipLineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *lexer) skipBlockComment() {
	l.advance() // /
	l.advance() // *
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekAt(1) == '/' {
			l.advance()
			l.advance()
			return
		}
		if l.peek() == '\n' {
			l.line++
		}
		l.advance()
	}
}

// scanString handles both ordinary literals and text blocks, producing the
// literal's value with simple escapes resolved.
func (l *lexer) scanString() {
	if l.peekAt(1) == '"' && l.peekAt(2) == '"' {
		l.scanTextBlock()
		return
	}

	l.advance() // opening quote
	var b strings.Builder
	for !l.isAtEnd() && l.peek() != '"' {
		c := l.advance()
		if c == '\\' && !l.isAtEnd() {
			b.WriteByte(unescape(l.advance()))
			continue
		}
		if c == '\n' {
			// Unterminated literal; stop at the line break.
			l.line++
			break
		}
		b.WriteByte(c)
	}
	if !l.isAtEnd() && l.peek() == '"' {
		l.advance()
	}
	l.addToken(tokenString, b.String())
}

func (l *lexer) scanTextBlock() {
	l.advance()
	l.advance()
	l.advance()
	start := l.current
	for !l.isAtEnd() {
		if l.peek() == '"' && l.peekAt(1) == '"' && l.peekAt(2) == '"' {
			value := l.source[start:l.current]
			l.advance()
			l.advance()
			l.advance()
			l.addToken(tokenString, strings.TrimSpace(value))
			return
		}
		if l.peek() == '\n' {
			l.line++
		}
		l.advance()
	}
	l.addToken(tokenString, strings.TrimSpace(l.source[start:]))
}

func (l *lexer) scanCharLiteral() {
	l.advance() // opening quote
	var b strings.Builder
	for !l.isAtEnd() && l.peek() != '\'' {
		c := l.advance()
		if c == '\\' && !l.isAtEnd() {
			b.WriteByte(unescape(l.advance()))
			continue
		}
		b.WriteByte(c)
	}
	if !l.isAtEnd() {
		l.advance()
	}
	l.addToken(tokenChar, b.String())
}

func (l *lexer) scanNumber() {
	start := l.current
	for !l.isAtEnd() && isNumberPart(l.peek()) {
		l.advance()
	}
	l.addToken(tokenNumber, l.source[start:l.current])
}

func (l *lexer) scanIdentifier() {
	start := l.current
	for !l.isAtEnd() && isIdentPart(l.peek()) {
		if l.peek() >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(l.source[l.current:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			l.current += size
			continue
		}
		l.advance()
	}
	if l.current == start {
		// Byte that looked like an identifier start but decodes to nothing
		// usable; skip it so the scan always makes progress.
		l.current++
		return
	}
	l.addToken(tokenIdent, l.source[start:l.current])
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// isNumberPart accepts the full Java numeric-literal alphabet: digits, hex
// and binary prefixes, separators, exponents and type suffixes.
func isNumberPart(c byte) bool {
	switch {
	case isDigit(c):
		return true
	case c == '.' || c == '_':
		return true
	case c == 'x' || c == 'X' || c == 'b' || c == 'B' || c == 'e' || c == 'E':
		return true
	case c == 'l' || c == 'L' || c == 'f' || c == 'F' || c == 'd' || c == 'D':
		return true
	case c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F':
		return true
	default:
		return false
	}
}
