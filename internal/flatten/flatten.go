// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package flatten converts nested registry records into flat
// (path, value) pairs consumed by the rule dispatcher.
package flatten

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Entry is one flattened leaf. A nil Value means the leaf was absent
// (JSON null), as opposed to an empty string which means present but
// blank. Rules rely on that distinction.
type Entry struct {
	Path  string
	Value *string
}

// Flatten walks the record tree and returns one Entry per leaf. Paths
// are sep-joined key sequences rooted at root; slice elements use their
// index as the path segment. Map keys are visited in sorted order so the
// output is deterministic for any given tree.
//
// Scalars are coerced to their textual form. A scalar whose textual form
// is the literal "None" is normalized to an absent value rather than the
// four-character string; registry exports produced by older tooling
// contain that sentinel.
func Flatten(node any, root, sep string) []Entry {
	var out []Entry
	walk(node, root, sep, &out)
	return out
}

func walk(node any, path, sep string, out *[]Entry) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(v[k], path+sep+k, sep, out)
		}
	case []any:
		for i, elem := range v {
			walk(elem, path+sep+strconv.Itoa(i), sep, out)
		}
	case nil:
		*out = append(*out, Entry{Path: path})
	default:
		s := coerce(v)
		if s == "None" {
			*out = append(*out, Entry{Path: path})
			return
		}
		*out = append(*out, Entry{Path: path, Value: &s})
	}
}

func coerce(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// Nest rebuilds a nested map from flattened entries, interpreting each
// path as a sep-joined key sequence. Slice structure is not recovered:
// former indices become string keys. Re-flattening the result yields the
// same entries as long as sep never occurs inside a key.
func Nest(entries []Entry, sep string) map[string]any {
	root := make(map[string]any)
	for _, e := range entries {
		segments := strings.Split(e.Path, sep)
		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		last := segments[len(segments)-1]
		if e.Value == nil {
			node[last] = nil
		} else {
			node[last] = *e.Value
		}
	}
	return root
}
