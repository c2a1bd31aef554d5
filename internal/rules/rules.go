// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rules routes flattened pairs and whole records to the
// applicable checkers and merges their findings.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/openlint/biolint/internal/flatten"
	"github.com/openlint/biolint/internal/linkcheck"
	"github.com/openlint/biolint/internal/ontology"
	"github.com/openlint/biolint/internal/pubcheck"
	"github.com/openlint/biolint/pkg/types"
)

// edamNamespace marks a value as an ontology term reference. Ontology
// URIs are never link-checked; the two per-pair rules are mutually
// exclusive by construction.
const edamNamespace = "://edamontology.org/"

// PairKind classifies a flattened pair. Classification happens once,
// then the dispatcher matches the kind exhaustively.
type PairKind int

const (
	// KindEmpty: the value is absent or blank; only the important-field
	// rule may run.
	KindEmpty PairKind = iota
	// KindOntology: the value references the EDAM namespace.
	KindOntology
	// KindLink: everything else; the link checker decides applicability.
	KindLink
)

// ClassifyPair determines which rule family a pair belongs to.
func ClassifyPair(value *string) PairKind {
	switch {
	case value == nil || *value == "":
		return KindEmpty
	case strings.Contains(*value, edamNamespace):
		return KindOntology
	default:
		return KindLink
	}
}

// importantSuffixes are the path endings of fields a usable registry
// entry cannot do without.
var importantSuffixes = []string{"name", "description", "homepage", "biotoolsID", "biotoolsCURIE"}

// Dispatcher owns the three rule families and routes work to them.
type Dispatcher struct {
	Links    *linkcheck.Checker
	Ontology *ontology.Ontology
	Pubs     *pubcheck.Checker
	Logger   *slog.Logger
}

// NewDispatcher wires the rule families together.
func NewDispatcher(links *linkcheck.Checker, onto *ontology.Ontology, pubs *pubcheck.Checker, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{Links: links, Ontology: onto, Pubs: pubs, Logger: logger}
}

// DispatchPair runs the per-pair rules applicable to entry. A nil return
// means no rule applied; an empty return means the applicable rule found
// nothing.
func (d *Dispatcher) DispatchPair(ctx context.Context, entry flatten.Entry) []types.Diagnostic {
	switch ClassifyPair(entry.Value) {
	case KindEmpty:
		// No other rule can safely run against an absent value.
		return checkImportantEmpty(entry.Path)
	case KindOntology:
		if d.Ontology == nil {
			return nil
		}
		return d.Ontology.CheckTerm(entry.Path, *entry.Value)
	default:
		if d.Links == nil {
			return nil
		}
		return d.Links.Check(ctx, entry.Path, *entry.Value)
	}
}

// DispatchRecord runs the whole-record rules concurrently and merges
// their findings. Order between the two rule families is not guaranteed.
func (d *Dispatcher) DispatchRecord(ctx context.Context, rec types.Record) []types.Diagnostic {
	var (
		wg         sync.WaitGroup
		consistent []types.Diagnostic
		pubs       []types.Diagnostic
	)
	if d.Ontology != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consistent = d.Ontology.CheckConsistency(rec)
		}()
	}
	if d.Pubs != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pubs = d.Pubs.CheckRecord(ctx, rec)
		}()
	}
	wg.Wait()
	return append(consistent, pubs...)
}

// checkImportantEmpty flags blank high-value fields.
func checkImportantEmpty(path string) []types.Diagnostic {
	for _, suffix := range importantSuffixes {
		if strings.HasSuffix(path, suffix) {
			return []types.Diagnostic{{
				Code:     "IMPORTANT_KEY_EMPTY",
				Severity: types.SeverityLow,
				Body:     fmt.Sprintf("Important key %s is null or empty", path),
				Location: path,
			}}
		}
	}
	return nil
}
