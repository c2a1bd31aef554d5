// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Severity ranks a diagnostic. The numeric values are part of the
// persisted schema and must not be renumbered.
type Severity int

const (
	// SeverityInternal marks bookkeeping messages such as the per-record
	// completion marker. Never persisted or exported.
	SeverityInternal Severity = 1

	// SeverityLinterError flags a failure inside the checker itself; the
	// finding needs manual review.
	SeverityLinterError Severity = 2

	// SeverityCritical is reserved for security-relevant findings.
	SeverityCritical Severity = 8

	SeverityHigh   Severity = 5
	SeverityMedium Severity = 6
	SeverityLow    Severity = 7
)

func (s Severity) String() string {
	switch s {
	case SeverityInternal:
		return "internal"
	case SeverityLinterError:
		return "linter-error"
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Diagnostic is one finding produced by a rule.
//
// Tool is filled in by the engine, not by rules; rules are record-agnostic.
// Location is the flattened path the finding refers to. When a cached
// result is replayed under a new path, Location and the matching token
// inside Body are rewritten by the replaying checker.
type Diagnostic struct {
	// Code is a stable machine-readable identifier, e.g. "URL_BAD_STATUS".
	Code string `json:"code" yaml:"code"`

	Severity Severity `json:"severity" yaml:"severity"`

	// Body is the human-readable description of the finding.
	Body string `json:"body" yaml:"body"`

	// Location is the flattened path where the finding occurred.
	Location string `json:"location" yaml:"location"`

	// Tool is the biotoolsID of the record the finding belongs to.
	Tool string `json:"tool" yaml:"tool"`
}

// Record is one tool entry as returned by the registry: a nested tree of
// string-keyed maps, slices, and scalars. Owned by the caller and treated
// as immutable for the duration of an evaluation.
type Record = map[string]any

// Tool pairs a record with its registry identifier.
type Tool struct {
	ID     string
	Record Record
}
