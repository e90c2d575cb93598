// Package layer implements immutable triple layers and the builders that
// produce them.
//
// A layer is a delta on top of an optional parent: the triples it adds,
// the triples it removes, and the terms it binds to new identifiers. The
// triples visible in a layer are those visible in its parent, minus its
// removals, plus its additions. Layers share their ancestry by pointer and
// are never modified once built, so they can be read concurrently without
// locking.
package layer

import (
	"fmt"
	"slices"

	"github.com/wbrown/janus-triplestore/triplestore"
)

// Layer is an immutable snapshot of a graph
type Layer struct {
	name      Name
	parent    *Layer
	depth     int
	dict      dictionary
	additions []triplestore.IdTriple
	removals  []triplestore.IdTriple
	count     int
	persister Persister
}

// newLayer builds a layer from a record. The caller guarantees the record
// was produced against parent.
func newLayer(name Name, rec *Record, parent *Layer, p Persister) *Layer {
	var offset uint64
	count, depth := 0, 0
	if parent != nil {
		offset = parent.dict.maxId()
		count = parent.count
		depth = parent.depth + 1
	}
	return &Layer{
		name:      name,
		parent:    parent,
		depth:     depth,
		dict:      newDictionary(offset, rec.Terms),
		additions: rec.Additions,
		removals:  rec.Removals,
		count:     count + len(rec.Additions) - len(rec.Removals),
		persister: p,
	}
}

// Restore rebuilds a persisted layer on top of its already restored parent.
// p becomes the persister of builders opened from the layer.
func Restore(name Name, data []byte, parent *Layer, p Persister) (*Layer, error) {
	if got := nameOf(data); got != name {
		return nil, fmt.Errorf("%w: layer %s hashes to %s", triplestore.ErrCorruptRecord, name, got)
	}
	rec, err := RecordFromBytes(data)
	if err != nil {
		return nil, err
	}

	switch {
	case rec.HasParent && parent == nil:
		return nil, fmt.Errorf("%w: layer %s needs parent %s", triplestore.ErrCorruptRecord, name, rec.Parent)
	case rec.HasParent && parent.name != rec.Parent:
		return nil, fmt.Errorf("%w: layer %s restored on %s, expected %s", triplestore.ErrCorruptRecord, name, parent.name, rec.Parent)
	case !rec.HasParent && parent != nil:
		return nil, fmt.Errorf("%w: base layer %s restored with a parent", triplestore.ErrCorruptRecord, name)
	}

	l := newLayer(name, rec, parent, p)
	maxId := l.dict.maxId()
	for _, set := range [][]triplestore.IdTriple{rec.Additions, rec.Removals} {
		for _, t := range set {
			if t.Subject == 0 || t.Subject > maxId || t.Predicate == 0 || t.Predicate > maxId || t.Object == 0 || t.Object > maxId {
				return nil, fmt.Errorf("%w: layer %s references unbound id in %v", triplestore.ErrCorruptRecord, name, t)
			}
		}
	}
	return l, nil
}

// Name returns the layer's content-derived name
func (l *Layer) Name() Name {
	return l.name
}

// Parent returns the parent layer, or nil for a base layer
func (l *Layer) Parent() *Layer {
	return l.parent
}

// Depth is 0 for a base layer and parent depth + 1 otherwise
func (l *Layer) Depth() int {
	return l.depth
}

// OpenWrite returns a new builder based on this layer.
// Any number of builders may be opened from the same layer.
func (l *Layer) OpenWrite() *Builder {
	return newBuilder(l, l.persister)
}

// Additions returns the triples this layer adds, sorted
func (l *Layer) Additions() []triplestore.IdTriple {
	return slices.Clone(l.additions)
}

// Removals returns the triples this layer removes, sorted
func (l *Layer) Removals() []triplestore.IdTriple {
	return slices.Clone(l.removals)
}

// TripleCount returns the number of visible triples
func (l *Layer) TripleCount() int {
	return l.count
}

// MaxId returns the highest identifier bound in this layer's lineage
func (l *Layer) MaxId() uint64 {
	return l.dict.maxId()
}

// IsAncestorOf reports whether l is a strict ancestor of other
func (l *Layer) IsAncestorOf(other *Layer) bool {
	if other == nil {
		return false
	}
	for p := other.parent; p != nil; p = p.parent {
		if p.name == l.name {
			return true
		}
		if p.depth < l.depth {
			return false
		}
	}
	return false
}

// Contains reports whether t is visible in this layer.
// The nearest layer that adds or removes t decides.
func (l *Layer) Contains(t triplestore.IdTriple) bool {
	for cur := l; cur != nil; cur = cur.parent {
		if containsSorted(cur.additions, t) {
			return true
		}
		if containsSorted(cur.removals, t) {
			return false
		}
	}
	return false
}

func containsSorted(triples []triplestore.IdTriple, t triplestore.IdTriple) bool {
	_, found := slices.BinarySearchFunc(triples, t, triplestore.CompareIdTriples)
	return found
}

// Triples returns every visible triple, sorted
func (l *Layer) Triples() []triplestore.IdTriple {
	if l.parent == nil {
		return slices.Clone(l.additions)
	}

	inherited := l.parent.Triples()
	result := make([]triplestore.IdTriple, 0, l.count)
	i, j := 0, 0
	for i < len(inherited) || j < len(l.additions) {
		switch {
		case j == len(l.additions) || (i < len(inherited) && triplestore.CompareIdTriples(inherited[i], l.additions[j]) < 0):
			if !containsSorted(l.removals, inherited[i]) {
				result = append(result, inherited[i])
			}
			i++
		default:
			result = append(result, l.additions[j])
			j++
		}
	}
	return result
}

// Match returns visible triples matching the pattern, where 0 matches anything
func (l *Layer) Match(subject, predicate, object uint64) []triplestore.IdTriple {
	var result []triplestore.IdTriple
	for _, t := range l.Triples() {
		if (subject == 0 || t.Subject == subject) &&
			(predicate == 0 || t.Predicate == predicate) &&
			(object == 0 || t.Object == object) {
			result = append(result, t)
		}
	}
	return result
}

// TermId returns the id bound to term anywhere in the lineage
func (l *Layer) TermId(term triplestore.Term) (uint64, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if id, ok := cur.dict.lookup(term); ok {
			return id, true
		}
	}
	return 0, false
}

// NodeId returns the id of a node term
func (l *Layer) NodeId(node string) (uint64, bool) {
	return l.TermId(triplestore.NodeTerm(node))
}

// ValueId returns the id of a value term
func (l *Layer) ValueId(value string) (uint64, bool) {
	return l.TermId(triplestore.ValueTerm(value))
}

// IdTerm returns the term bound to id
func (l *Layer) IdTerm(id uint64) (triplestore.Term, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		if id > cur.dict.offset {
			return cur.dict.term(id)
		}
	}
	return triplestore.Term{}, false
}

// IdTripleFor resolves a string triple to ids. It fails if any term is unbound.
func (l *Layer) IdTripleFor(t triplestore.StringTriple) (triplestore.IdTriple, bool) {
	terms := t.Terms()
	var ids [3]uint64
	for i, term := range terms {
		id, ok := l.TermId(term)
		if !ok {
			return triplestore.IdTriple{}, false
		}
		ids[i] = id
	}
	return triplestore.NewIdTriple(ids[0], ids[1], ids[2]), true
}

// StringTripleFor resolves an id triple back to strings
func (l *Layer) StringTripleFor(t triplestore.IdTriple) (triplestore.StringTriple, bool) {
	s, ok := l.IdTerm(t.Subject)
	if !ok || s.Kind != triplestore.Node {
		return triplestore.StringTriple{}, false
	}
	p, ok := l.IdTerm(t.Predicate)
	if !ok || p.Kind != triplestore.Node {
		return triplestore.StringTriple{}, false
	}
	o, ok := l.IdTerm(t.Object)
	if !ok {
		return triplestore.StringTriple{}, false
	}
	return triplestore.StringTriple{Subject: s.Text, Predicate: p.Text, Object: o}, true
}

// ContainsString reports whether the string triple is visible
func (l *Layer) ContainsString(t triplestore.StringTriple) bool {
	id, ok := l.IdTripleFor(t)
	return ok && l.Contains(id)
}

// StringTriples returns every visible triple in string form, in id order
func (l *Layer) StringTriples() []triplestore.StringTriple {
	ids := l.Triples()
	result := make([]triplestore.StringTriple, 0, len(ids))
	for _, t := range ids {
		if st, ok := l.StringTripleFor(t); ok {
			result = append(result, st)
		}
	}
	return result
}

// String returns a short description of the layer
func (l *Layer) String() string {
	return fmt.Sprintf("layer %s (depth %d, %d triples)", l.name, l.depth, l.count)
}
