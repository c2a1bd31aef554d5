// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ontology loads the EDAM term table and relation graph and
// checks records for invalid, obsolete, or internally inconsistent
// ontology usage.
//
// The data is loaded once at startup and never mutated: terms live in an
// arena indexed by position, relations are (index, kind, index) triples.
// The whole structure is shared read-only across all rule goroutines.
package ontology

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/openlint/biolint/pkg/types"
)

// Relation kinds recognized in the relation table. Anything else is
// ignored on load.
type Relation int

const (
	RelationIsA Relation = iota
	RelationHasTopic
	RelationHasInput
	RelationHasOutput
	RelationIsFormatOf
)

var relationNames = map[string]Relation{
	"is_a":         RelationIsA,
	"has_topic":    RelationHasTopic,
	"has_input":    RelationHasInput,
	"has_output":   RelationHasOutput,
	"is_format_of": RelationIsFormatOf,
}

// Term is one ontology class from the flat term table.
type Term struct {
	ID                 string
	Label              string
	Obsolete           bool
	NotRecommended     bool
	DeprecationComment string
}

// Triple is one relation row: subject --relation--> object, all by class ID.
type Triple struct {
	Subject  string
	Relation string
	Object   string
}

type edge struct {
	kind   Relation
	object int
}

// Ontology is the loaded term arena plus relation edges. Immutable after
// construction.
type Ontology struct {
	terms []Term
	index map[string]int
	edges map[int][]edge
}

// New builds an Ontology from parsed terms and triples. Triples whose
// subject or object is not in the term table are dropped; external
// vocabulary references are not checkable.
func New(terms []Term, triples []Triple) *Ontology {
	o := &Ontology{
		terms: terms,
		index: make(map[string]int, len(terms)),
		edges: make(map[int][]edge),
	}
	for i, t := range terms {
		o.index[t.ID] = i
	}
	for _, tr := range triples {
		kind, ok := relationNames[tr.Relation]
		if !ok {
			continue
		}
		subj, ok := o.index[tr.Subject]
		if !ok {
			continue
		}
		obj, ok := o.index[tr.Object]
		if !ok {
			continue
		}
		o.edges[subj] = append(o.edges[subj], edge{kind: kind, object: obj})
	}
	return o
}

// Load fetches the term table and relation table if they are not already
// in cfg.DataDir, parses both, and builds the ontology. Any failure here
// is fatal to the caller: linting against an absent or incomplete
// ruleset would report garbage.
func Load(cfg types.OntologyConfig, client *http.Client) (*Ontology, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}

	termPath := filepath.Join(dataDir, "EDAM.csv")
	if err := ensureFile(client, termPath, cfg.TermTableURL, cfg.UserAgent); err != nil {
		return nil, err
	}
	relPath := filepath.Join(dataDir, "EDAM_relations.csv")
	if err := ensureFile(client, relPath, cfg.RelationTableURL, cfg.UserAgent); err != nil {
		return nil, err
	}

	termFile, err := os.Open(termPath)
	if err != nil {
		return nil, fmt.Errorf("opening term table: %w", err)
	}
	defer termFile.Close()
	terms, err := ParseTerms(termFile)
	if err != nil {
		return nil, fmt.Errorf("parsing term table %s: %w", termPath, err)
	}

	relFile, err := os.Open(relPath)
	if err != nil {
		return nil, fmt.Errorf("opening relation table: %w", err)
	}
	defer relFile.Close()
	triples, err := ParseRelations(relFile)
	if err != nil {
		return nil, fmt.Errorf("parsing relation table %s: %w", relPath, err)
	}

	return New(terms, triples), nil
}

// ensureFile downloads url to path unless the file already exists.
func ensureFile(client *http.Client, path, url, userAgent string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return fmt.Errorf("ontology file %s is missing and no download URL is configured", path)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ontology-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ParseTerms reads the flat term table CSV. Columns are addressed by
// header name so upstream column reordering does not break the parse.
func ParseTerms(r io.Reader) ([]Term, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"Class ID", "Preferred Label", "Obsolete"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("term table is missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var terms []Term
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if len(row) == 0 || field(row, "Class ID") == "" {
			continue
		}
		terms = append(terms, Term{
			ID:                 field(row, "Class ID"),
			Label:              field(row, "Preferred Label"),
			Obsolete:           strings.EqualFold(field(row, "Obsolete"), "TRUE"),
			NotRecommended:     strings.EqualFold(field(row, "notRecommendedForAnnotation"), "TRUE"),
			DeprecationComment: field(row, "deprecation_comment"),
		})
	}
	return terms, nil
}

// ParseRelations reads the relation table CSV with a
// subject,relation,object header.
func ParseRelations(r io.Reader) ([]Triple, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) != 3 || header[0] != "subject" || header[1] != "relation" || header[2] != "object" {
		return nil, fmt.Errorf("unexpected relation table header %v", header)
	}

	var triples []Triple
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		triples = append(triples, Triple{Subject: row[0], Relation: row[1], Object: row[2]})
	}
	return triples, nil
}

// Lookup returns the term for a class ID.
func (o *Ontology) Lookup(id string) (Term, bool) {
	i, ok := o.index[id]
	if !ok {
		return Term{}, false
	}
	return o.terms[i], true
}

// Len returns the number of loaded terms.
func (o *Ontology) Len() int { return len(o.terms) }

// label returns the preferred label for an arena index.
func (o *Ontology) label(i int) string { return o.terms[i].Label }

// objects returns the arena indices reachable from subject over edges of
// the given kind.
func (o *Ontology) objects(subject int, kind Relation) []int {
	var out []int
	for _, e := range o.edges[subject] {
		if e.kind == kind {
			out = append(out, e.object)
		}
	}
	return out
}

// ancestors walks the is_a chain upward from start, breadth first,
// returning every reachable arena index including start. The visited set
// guards against cycles in the relation data.
func (o *Ontology) ancestors(start int) []int {
	visited := map[int]bool{start: true}
	queue := []int{start}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		for _, parent := range o.objects(cur, RelationIsA) {
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return out
}
