// Package util holds small generic helpers shared across the compiler,
// task graph, and contributor engine: a string set and task-id/group-name
// conventions, generalized from a "package#task" identifier shape to
// cuenv's flat task ids with ":" group-prefix namespacing.
package util

import "sort"

// StringSet is a minimal set of strings. Iteration order is never relied
// upon by callers; when order matters they sort the result explicitly.
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from a slice of strings.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Add inserts an item.
func (s StringSet) Add(item string) { s[item] = struct{}{} }

// Delete removes an item, a no-op if absent.
func (s StringSet) Delete(item string) { delete(s, item) }

// Has reports whether item is present.
func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Len returns the number of items.
func (s StringSet) Len() int { return len(s) }

// Sorted returns the set's contents as a sorted slice.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Copy returns a shallow copy.
func (s StringSet) Copy() StringSet {
	c := make(StringSet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}
