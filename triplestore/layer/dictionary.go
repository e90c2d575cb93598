package layer

import (
	"github.com/wbrown/janus-triplestore/triplestore"
)

// dictionary is one layer's slice of the identifier space.
// Term i is bound to id offset+i+1, where offset is the highest id of the
// parent layer. Ids are never reused and 0 is never bound.
type dictionary struct {
	offset uint64
	terms  []triplestore.Term
	index  map[triplestore.Term]uint64
}

func newDictionary(offset uint64, terms []triplestore.Term) dictionary {
	d := dictionary{
		offset: offset,
		terms:  terms,
		index:  make(map[triplestore.Term]uint64, len(terms)),
	}
	for i, t := range terms {
		d.index[t] = offset + uint64(i) + 1
	}
	return d
}

// maxId is the highest id bound by this dictionary or its ancestors
func (d *dictionary) maxId() uint64 {
	return d.offset + uint64(len(d.terms))
}

func (d *dictionary) lookup(t triplestore.Term) (uint64, bool) {
	id, ok := d.index[t]
	return id, ok
}

// term returns the term for id if id was bound by this dictionary itself
func (d *dictionary) term(id uint64) (triplestore.Term, bool) {
	if id <= d.offset || id > d.maxId() {
		return triplestore.Term{}, false
	}
	return d.terms[id-d.offset-1], true
}

// add binds t to the next id. The caller must have checked t is unbound.
func (d *dictionary) add(t triplestore.Term) uint64 {
	d.terms = append(d.terms, t)
	id := d.maxId()
	d.index[t] = id
	return id
}
