// Package diag defines the diagnostics recorded while a run degrades
// gracefully: skipped files, repaired relationships, staging failures. A run
// either completes with a document plus diagnostics or fails with a single
// fatal error; diagnostics themselves never abort anything.
package diag

import (
	"fmt"
	"sync"
)

// Severity represents the severity level of a diagnostic
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	default:
		*s = Error
	}
	return nil
}

// Diagnostic codes, ranged by pipeline stage.
// E001-E099: scan
// E100-E199: entity resolution
// E200-E299: relationship resolution
// E300-E399: assembly
// E400-E499: staging and cleanup
const (
	CodeUnreadableFile = "E001"
	CodeFileTooLarge   = "E002"

	CodeParseFailed       = "E100"
	CodeNotAnEntity       = "E101"
	CodeMissingPrimaryKey = "E102"
	CodeExtraPrimaryKey   = "E103"
	CodeUnknownEmbeddable = "E104"
	CodeEmbeddableCycle   = "E105"
	CodeUnknownEnumType   = "E106"
	CodeUnknownSuperclass = "E107"
	CodeInvalidColumn     = "E108"

	CodeDoubleOwnership    = "E200"
	CodeNoOwnershipClaim   = "E201"
	CodeUnresolvedInverse  = "E202"
	CodeInvalidAssociation = "E203"

	CodeUnknownTarget   = "E300"
	CodeStoreMirror     = "E301"
	CodeDuplicateEntity = "E302"

	CodeStageCopyFailed = "E400"
	CodeCleanupFailed   = "E401"
)

// Diagnostic identifies one recoverable anomaly: where in the pipeline it
// happened, what it concerns, and how serious it is.
type Diagnostic struct {
	Stage    string   `json:"stage"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Class    string   `json:"class,omitempty"`
	Field    string   `json:"field,omitempty"`
}

// New creates a Diagnostic for a pipeline stage.
func New(stage, code string, severity Severity, message string) Diagnostic {
	return Diagnostic{
		Stage:    stage,
		Code:     code,
		Severity: severity,
		Message:  message,
	}
}

// WithFile attaches the source file the diagnostic concerns.
func (d Diagnostic) WithFile(file string) Diagnostic {
	d.File = file
	return d
}

// WithClass attaches the class the diagnostic concerns.
func (d Diagnostic) WithClass(class string) Diagnostic {
	d.Class = class
	return d
}

// WithField attaches the field the diagnostic concerns.
func (d Diagnostic) WithField(field string) Diagnostic {
	d.Field = field
	return d
}

// String formats the diagnostic for log and terminal output.
func (d Diagnostic) String() string {
	subject := d.File
	if d.Class != "" {
		subject = d.Class
		if d.Field != "" {
			subject += "." + d.Field
		}
	}
	if subject == "" {
		return fmt.Sprintf("%s: %s: %s: %s", d.Severity, d.Stage, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %s: %s", d.Severity, d.Stage, d.Code, subject, d.Message)
}

// Collector accumulates diagnostics from concurrent pipeline stages. Safe for
// use from multiple goroutines during fan-out resolution.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{diags: make([]Diagnostic, 0)}
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// All returns a copy of every recorded diagnostic, in insertion order.
func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Count returns the number of recorded diagnostics.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}

// CountBySeverity returns how many diagnostics carry the given severity.
func (c *Collector) CountBySeverity(s Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, d := range c.diags {
		if d.Severity == s {
			n++
		}
	}
	return n
}
