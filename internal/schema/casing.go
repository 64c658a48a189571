package schema

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts CamelCase to snake_case, the naming convention the
// relational target is expected to use. Handles acronyms
// (HTTPRequest -> http_request, userID -> user_id). The conversion is stable:
// applying it to its own output is a no-op.
func ToSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				// Underscore before an uppercase letter when leaving lowercase,
				// or when an acronym run ends (next rune is lowercase).
				if unicode.IsLower(prev) {
					result.WriteRune('_')
				} else if i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
					result.WriteRune('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// maxTokenLen bounds sanitized repository tokens so output file names stay
// well under filesystem limits even before the unique suffix is appended.
const maxTokenLen = 64

// SanitizeToken reduces a repository identifier to a filesystem-safe token:
// lowercase, restricted to [a-z0-9._-], runs of disallowed characters
// collapsed to a single dash, separators trimmed from both ends, bounded
// length. Sanitizing twice is a fixed point. An identifier with nothing left
// after sanitizing becomes "repo".
func SanitizeToken(id string) string {
	var b strings.Builder
	pendingSep := false

	for _, r := range strings.ToLower(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteRune('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '-':
			pendingSep = true
		default:
			pendingSep = true
		}
	}

	token := b.String()
	if len(token) > maxTokenLen {
		token = token[:maxTokenLen]
	}
	token = strings.Trim(token, "-._")
	if token == "" {
		return "repo"
	}
	return token
}
