// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ontology

import (
	"fmt"
	"strings"

	"github.com/openlint/biolint/pkg/types"
)

// genericTerms are the root classes of each EDAM branch. Annotating with
// these carries no information.
var genericTerms = map[string]bool{
	"http://edamontology.org/data_0006":      true,
	"http://edamontology.org/format_1915":    true,
	"http://edamontology.org/operation_0004": true,
	"http://edamontology.org/topic_0003":     true,
}

// CheckTerm validates one term URI found at path. Exactly one of
// EDAM_INVALID, EDAM_OBSOLETE, or EDAM_NOT_RECOMMENDED can fire per
// term; obsolete wins over not-recommended. A root-branch term draws an
// additional EDAM_GENERIC.
func (o *Ontology) CheckTerm(path, uri string) []types.Diagnostic {
	uri = strings.TrimSpace(uri)
	var reports []types.Diagnostic

	term, known := o.Lookup(uri)
	switch {
	case !known:
		reports = append(reports, types.Diagnostic{
			Code:     "EDAM_INVALID",
			Severity: types.SeverityMedium,
			Body:     fmt.Sprintf("EDAM %s at %s is not a valid class ID", uri, path),
			Location: path,
		})
	case term.Obsolete:
		reports = append(reports, types.Diagnostic{
			Code:     "EDAM_OBSOLETE",
			Severity: types.SeverityMedium,
			Body:     fmt.Sprintf("EDAM %q at %s is obsolete. (%s)", term.Label, path, term.DeprecationComment),
			Location: path,
		})
	case term.NotRecommended:
		reports = append(reports, types.Diagnostic{
			Code:     "EDAM_NOT_RECOMMENDED",
			Severity: types.SeverityLow,
			Body:     fmt.Sprintf("EDAM %q at %s is not recommended for usage", term.Label, path),
			Location: path,
		})
	}

	if known && genericTerms[uri] {
		reports = append(reports, types.Diagnostic{
			Code:     "EDAM_GENERIC",
			Severity: types.SeverityMedium,
			Body:     fmt.Sprintf("EDAM %q at %s is too generic, consider filling in a more specific value", term.Label, path),
			Location: path,
		})
	}

	return reports
}

// CheckConsistency performs the whole-record hierarchy checks: every
// declared operation's has_topic / has_input / has_output expectations
// must be met by the record's own topic and data type declarations, and
// a declared format carrying an is_format_of restriction must be paired
// with the restricted data type. A record without functions produces no
// diagnostics.
func (o *Ontology) CheckConsistency(rec types.Record) []types.Diagnostic {
	functions := asSlice(rec["function"])
	if len(functions) == 0 {
		return nil
	}

	declaredTopics := uriSet(asSlice(rec["topic"]))

	declaredInputs := map[string]bool{}
	declaredOutputs := map[string]bool{}
	for _, fn := range functions {
		f := asMap(fn)
		for _, in := range asSlice(f["input"]) {
			if d := uriOf(asMap(in)["data"]); d != "" {
				declaredInputs[d] = true
			}
		}
		for _, out := range asSlice(f["output"]) {
			if d := uriOf(asMap(out)["data"]); d != "" {
				declaredOutputs[d] = true
			}
		}
	}

	var reports []types.Diagnostic

	seenOps := map[string]bool{}
	for _, fn := range functions {
		f := asMap(fn)
		for _, op := range asSlice(f["operation"]) {
			uri := uriOf(op)
			if uri == "" || seenOps[uri] {
				continue
			}
			seenOps[uri] = true
			idx, ok := o.index[uri]
			if !ok {
				// Unknown terms are reported by the per-term check.
				continue
			}
			reports = append(reports, o.checkOperation(idx, declaredTopics, declaredInputs, declaredOutputs)...)
		}

		reports = append(reports, o.checkFormats(f["input"], "input")...)
		reports = append(reports, o.checkFormats(f["output"], "output")...)
	}

	return reports
}

// checkOperation walks one operation's relation edges against the
// record's declarations.
func (o *Ontology) checkOperation(op int, topics, inputs, outputs map[string]bool) []types.Diagnostic {
	var reports []types.Diagnostic
	opLabel := o.label(op)

	for _, t := range o.objects(op, RelationHasTopic) {
		if !topics[o.terms[t].ID] {
			reports = append(reports, types.Diagnostic{
				Code:     "EDAM_TOPIC_DISCREPANCY",
				Severity: types.SeverityMedium,
				Body:     fmt.Sprintf("EDAM operation %q expects topic %q which is not declared in the record", opLabel, o.label(t)),
				Location: "topic",
			})
		}
	}
	for _, d := range o.objects(op, RelationHasInput) {
		if !inputs[o.terms[d].ID] {
			reports = append(reports, types.Diagnostic{
				Code:     "EDAM_INPUT_DISCREPANCY",
				Severity: types.SeverityMedium,
				Body:     fmt.Sprintf("EDAM operation %q expects input %q which is not declared in the record", opLabel, o.label(d)),
				Location: "function/input",
			})
		}
	}
	for _, d := range o.objects(op, RelationHasOutput) {
		if !outputs[o.terms[d].ID] {
			reports = append(reports, types.Diagnostic{
				Code:     "EDAM_OUTPUT_DISCREPANCY",
				Severity: types.SeverityMedium,
				Body:     fmt.Sprintf("EDAM operation %q expects output %q which is not declared in the record", opLabel, o.label(d)),
				Location: "function/output",
			})
		}
	}
	return reports
}

// checkFormats verifies each input/output that declares both a data type
// and a format: an is_format_of restriction anywhere on the format's
// ancestor chain must name the declared data type.
func (o *Ontology) checkFormats(section any, kind string) []types.Diagnostic {
	var reports []types.Diagnostic

	for _, item := range asSlice(section) {
		m := asMap(item)
		dataURI := uriOf(m["data"])
		if dataURI == "" {
			continue
		}
		for _, f := range asSlice(m["format"]) {
			formatURI := uriOf(f)
			fIdx, ok := o.index[formatURI]
			if !ok {
				continue
			}

			var restrictions []int
			for _, anc := range o.ancestors(fIdx) {
				restrictions = append(restrictions, o.objects(anc, RelationIsFormatOf)...)
			}
			if len(restrictions) == 0 {
				continue
			}

			matched := false
			for _, r := range restrictions {
				if o.terms[r].ID == dataURI {
					matched = true
					break
				}
			}
			if !matched {
				reports = append(reports, types.Diagnostic{
					Code:     "EDAM_FORMAT_DISCREPANCY",
					Severity: types.SeverityMedium,
					Body:     fmt.Sprintf("EDAM format %q is a format of %q, which the %s does not declare as its data type", o.label(fIdx), o.label(restrictions[0]), kind),
					Location: "function/" + kind,
				})
			}
		}
	}
	return reports
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// uriOf extracts the "uri" field from an EDAM reference object.
func uriOf(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	uri, _ := m["uri"].(string)
	return strings.TrimSpace(uri)
}

func uriSet(items []any) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		if uri := uriOf(item); uri != "" {
			out[uri] = true
		}
	}
	return out
}
