// Package scanner walks a working tree and selects the source files that
// plausibly declare persistent entities. The selection is a cheap textual
// heuristic favoring recall; its false positives are corrected during entity
// resolution, and its false negatives are an accepted limitation of textual
// pre-filtering.
package scanner

import "regexp"

// Role determines how one predicate's match contributes to the verdict.
type Role int

const (
	// Require rejects the file unless the predicate matches.
	Require Role = iota
	// RequireAny rejects the file unless at least one RequireAny predicate
	// matches.
	RequireAny
	// Exclude rejects the file whenever the predicate matches, regardless of
	// other signals.
	Exclude
)

// Predicate is one named textual signal over raw file content.
type Predicate struct {
	Name    string
	Role    Role
	Pattern *regexp.Regexp
}

// Classifier decides candidacy from raw content by evaluating an ordered
// predicate list. Stricter or looser signatures substitute in without touching
// the resolver.
type Classifier struct {
	predicates []Predicate
}

// NewClassifier builds a classifier from the given predicates, evaluated in
// order.
func NewClassifier(predicates ...Predicate) *Classifier {
	return &Classifier{predicates: predicates}
}

// DefaultClassifier returns the standard entity signature: an entity-level
// marker, supported by a persistence import or a column-level marker, with an
// explicit DTO naming marker excluding the file outright.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		Predicate{
			Name:    "dto-marker",
			Role:    Exclude,
			Pattern: regexp.MustCompile(`DTO`),
		},
		Predicate{
			Name:    "entity-marker",
			Role:    Require,
			Pattern: regexp.MustCompile(`@(Entity|Table|Document)\b`),
		},
		Predicate{
			Name:    "persistence-import",
			Role:    RequireAny,
			Pattern: regexp.MustCompile(`javax\.persistence|jakarta\.persistence|org\.springframework\.data`),
		},
		Predicate{
			Name:    "column-marker",
			Role:    RequireAny,
			Pattern: regexp.MustCompile(`@(Id|Column|GeneratedValue)\b`),
		},
	)
}

// Classify reports whether the content plausibly declares a persistent
// entity. Exclude predicates veto in order, every Require predicate must
// match, and at least one RequireAny predicate must match when any are
// configured.
func (c *Classifier) Classify(content []byte) bool {
	anyConfigured := false
	anyMatched := false
	for _, p := range c.predicates {
		matched := p.Pattern.Match(content)
		switch p.Role {
		case Exclude:
			if matched {
				return false
			}
		case Require:
			if !matched {
				return false
			}
		case RequireAny:
			anyConfigured = true
			if matched {
				anyMatched = true
			}
		}
	}
	return !anyConfigured || anyMatched
}
