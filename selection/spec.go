// Package selection models which fields and relationship paths a request
// materializes, and resolves raw client requests into that model.
package selection

import (
	"sort"
	"strings"

	"github.com/CaliLuke/go-dtograph/meta"
)

// FieldSet is a set of wire field names for one type.
type FieldSet map[string]struct{}

// NewFieldSet creates a FieldSet containing names.
func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members of the set in sorted order.
func (s FieldSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Spec is the per-request selection: the fields to materialize for each
// type and the relationship paths to follow from the root type.
//
// Every type present in Fields carries its identifier field.
type Spec struct {
	Fields   map[meta.TypeID]FieldSet
	Includes []string
}

// New creates an empty Spec.
func New() *Spec {
	return &Spec{Fields: make(map[meta.TypeID]FieldSet)}
}

// FieldsFor returns the field set of a type, or nil when the type is absent.
func (s *Spec) FieldsFor(id meta.TypeID) FieldSet {
	if s == nil {
		return nil
	}
	return s.Fields[id]
}

// Has reports whether field of type id is selected.
func (s *Spec) Has(id meta.TypeID, field string) bool {
	return s.FieldsFor(id).Has(field)
}

// Add merges fields into the set of type id. Merging is an additive union.
func (s *Spec) Add(id meta.TypeID, fields ...string) {
	set, ok := s.Fields[id]
	if !ok {
		set = make(FieldSet, len(fields))
		s.Fields[id] = set
	}
	for _, f := range fields {
		set[f] = struct{}{}
	}
}

// Include adds relationship paths, skipping duplicates.
func (s *Spec) Include(paths ...string) {
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		dup := false
		for _, existing := range s.Includes {
			if existing == p {
				dup = true
				break
			}
		}
		if !dup {
			s.Includes = append(s.Includes, p)
		}
	}
}

// IncludeTree returns the include paths as a tree rooted at the request type.
func (s *Spec) IncludeTree() Tree {
	if s == nil {
		return Tree{}
	}
	return ParseTree(s.Includes)
}

// Tree is a set of include paths folded by first segment. The empty Tree is
// a leaf: the relation is materialized but nothing below it.
type Tree map[string]Tree

// ParseTree folds dot-separated paths into a Tree.
func ParseTree(paths []string) Tree {
	root := Tree{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		node := root
		for _, seg := range strings.Split(p, ".") {
			child, ok := node[seg]
			if !ok {
				child = Tree{}
				node[seg] = child
			}
			node = child
		}
	}
	return root
}

// Child returns the subtree below the relation name.
func (t Tree) Child(name string) (Tree, bool) {
	c, ok := t[name]
	return c, ok
}

// Paths flattens the tree back into sorted leaf paths.
func (t Tree) Paths() []string {
	var out []string
	var walk func(prefix string, node Tree)
	walk = func(prefix string, node Tree) {
		if len(node) == 0 && prefix != "" {
			out = append(out, prefix)
			return
		}
		for name, child := range node {
			p := name
			if prefix != "" {
				p = prefix + "." + name
			}
			walk(p, child)
		}
	}
	walk("", t)
	sort.Strings(out)
	return out
}
