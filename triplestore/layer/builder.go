package layer

import (
	"fmt"
	"sync"

	"github.com/wbrown/janus-triplestore/triplestore"
)

// Builder stages additions and removals against a base layer and seals
// them into a new Layer on Commit.
//
// A builder is owned by one writer. Calls are serialized internally, but
// interleaving mutations from several goroutines gives no useful ordering.
// After a successful Commit every method returns ErrBuilderCommitted.
// An abandoned builder leaves nothing behind.
type Builder struct {
	mu        sync.Mutex
	base      *Layer
	persister Persister
	committed bool

	dict      dictionary
	additions map[triplestore.IdTriple]struct{}
	removals  map[triplestore.IdTriple]struct{}
}

// NewBaseBuilder returns a builder for a layer with no parent.
// Commits are handed to p; a nil p keeps committed layers in memory only.
func NewBaseBuilder(p Persister) *Builder {
	return newBuilder(nil, p)
}

func newBuilder(base *Layer, p Persister) *Builder {
	var offset uint64
	if base != nil {
		offset = base.dict.maxId()
	}
	return &Builder{
		base:      base,
		persister: p,
		dict:      newDictionary(offset, nil),
		additions: make(map[triplestore.IdTriple]struct{}),
		removals:  make(map[triplestore.IdTriple]struct{}),
	}
}

// Base returns the layer this builder writes on top of, or nil
func (b *Builder) Base() *Layer {
	return b.base
}

// IsCommitted reports whether Commit has succeeded
func (b *Builder) IsCommitted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// PendingAdditions returns how many triples the next commit adds
func (b *Builder) PendingAdditions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.additions)
}

// PendingRemovals returns how many triples the next commit removes
func (b *Builder) PendingRemovals() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.removals)
}

// AddIdTriple stages t for addition. Every id must be bound in the base
// lineage or by an earlier string addition on this builder, and subject and
// predicate must be nodes. Returns true if t was not visible and now is.
func (b *Builder) AddIdTriple(t triplestore.IdTriple) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.committed {
		return false, triplestore.ContractError("add id triple", triplestore.ErrBuilderCommitted)
	}
	if err := b.checkIds(t); err != nil {
		return false, triplestore.ContractError("add id triple", err)
	}
	return b.add(t), nil
}

// AddStringTriple stages t for addition, binding provisional ids for terms
// the lineage has not seen. Only terms still used by an addition at commit
// time are written to the layer. Returns true if t was not visible and now is.
func (b *Builder) AddStringTriple(t triplestore.StringTriple) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.committed {
		return false, triplestore.ContractError("add string triple", triplestore.ErrBuilderCommitted)
	}
	if err := checkKind(t); err != nil {
		return false, triplestore.ContractError("add string triple", err)
	}

	// first occurrence order: subject, predicate, object
	terms := t.Terms()
	var ids [3]uint64
	for i, term := range terms {
		ids[i] = b.intern(term)
	}
	return b.add(triplestore.NewIdTriple(ids[0], ids[1], ids[2])), nil
}

// RemoveIdTriple stages t for removal. Returns true if t was visible and
// is now removed; removing an invisible triple is a no-op returning false.
func (b *Builder) RemoveIdTriple(t triplestore.IdTriple) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.committed {
		return false, triplestore.ContractError("remove id triple", triplestore.ErrBuilderCommitted)
	}
	return b.remove(t), nil
}

// RemoveStringTriple stages t for removal. Unknown terms never allocate ids.
func (b *Builder) RemoveStringTriple(t triplestore.StringTriple) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.committed {
		return false, triplestore.ContractError("remove string triple", triplestore.ErrBuilderCommitted)
	}
	if err := checkKind(t); err != nil {
		return false, triplestore.ContractError("remove string triple", err)
	}

	terms := t.Terms()
	var ids [3]uint64
	for i, term := range terms {
		id, ok := b.resolve(term)
		if !ok {
			return false, nil
		}
		ids[i] = id
	}
	return b.remove(triplestore.NewIdTriple(ids[0], ids[1], ids[2])), nil
}

// Commit seals the staged changes into a new layer and hands it to the
// persister. If persisting fails the builder is left untouched and may be
// committed again; on success the builder is consumed.
func (b *Builder) Commit() (*Layer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.committed {
		return nil, triplestore.ContractError("commit", triplestore.ErrBuilderCommitted)
	}

	rec := b.record()
	data := rec.Bytes()
	name := nameOf(data)

	if b.persister != nil {
		if err := b.persister.PersistLayer(name, data); err != nil {
			if triplestore.KindOf(err) == triplestore.KindUnknown {
				err = triplestore.IOError("commit", err)
			}
			return nil, err
		}
	}

	b.committed = true
	return newLayer(name, rec, b.base, b.persister), nil
}

// record snapshots the staged state. Builder-local terms no surviving
// addition uses are dropped and the rest renumbered in allocation order.
// Nothing is mutated, so a failed commit leaves the builder reusable.
func (b *Builder) record() *Record {
	offset := b.dict.offset
	used := make(map[uint64]struct{})
	for t := range b.additions {
		for _, id := range [3]uint64{t.Subject, t.Predicate, t.Object} {
			if id > offset {
				used[id] = struct{}{}
			}
		}
	}

	var terms []triplestore.Term
	remap := make(map[uint64]uint64, len(used))
	for i, term := range b.dict.terms {
		id := offset + uint64(i) + 1
		if _, ok := used[id]; !ok {
			continue
		}
		terms = append(terms, term)
		remap[id] = offset + uint64(len(terms))
	}
	renumber := func(id uint64) uint64 {
		if n, ok := remap[id]; ok {
			return n
		}
		return id
	}

	additions := make(map[triplestore.IdTriple]struct{}, len(b.additions))
	for t := range b.additions {
		additions[triplestore.NewIdTriple(renumber(t.Subject), renumber(t.Predicate), renumber(t.Object))] = struct{}{}
	}

	rec := &Record{
		Terms:     terms,
		Additions: sortedTriples(additions),
		Removals:  sortedTriples(b.removals),
	}
	if b.base != nil {
		rec.Parent = b.base.name
		rec.HasParent = true
	}
	return rec
}

func sortedTriples(set map[triplestore.IdTriple]struct{}) []triplestore.IdTriple {
	if len(set) == 0 {
		return nil
	}
	triples := make([]triplestore.IdTriple, 0, len(set))
	for t := range set {
		triples = append(triples, t)
	}
	triplestore.SortIdTriples(triples)
	return triples
}

func (b *Builder) inBase(t triplestore.IdTriple) bool {
	return b.base != nil && b.base.Contains(t)
}

// add applies an addition to the builder's view of the graph
func (b *Builder) add(t triplestore.IdTriple) bool {
	if _, ok := b.additions[t]; ok {
		return false
	}
	if _, ok := b.removals[t]; ok {
		delete(b.removals, t)
		return true
	}
	if b.inBase(t) {
		return false
	}
	b.additions[t] = struct{}{}
	return true
}

// remove applies a removal to the builder's view of the graph
func (b *Builder) remove(t triplestore.IdTriple) bool {
	if _, ok := b.additions[t]; ok {
		delete(b.additions, t)
		return true
	}
	if _, ok := b.removals[t]; ok {
		return false
	}
	if b.inBase(t) {
		b.removals[t] = struct{}{}
		return true
	}
	return false
}

// resolve finds the id of term in the base lineage or this builder
func (b *Builder) resolve(term triplestore.Term) (uint64, bool) {
	if id, ok := b.dict.lookup(term); ok {
		return id, true
	}
	if b.base != nil {
		return b.base.TermId(term)
	}
	return 0, false
}

func (b *Builder) intern(term triplestore.Term) uint64 {
	if id, ok := b.resolve(term); ok {
		return id
	}
	return b.dict.add(term)
}

// termOf finds the term bound to id in the base lineage or this builder
func (b *Builder) termOf(id uint64) (triplestore.Term, bool) {
	if t, ok := b.dict.term(id); ok {
		return t, true
	}
	if b.base != nil {
		return b.base.IdTerm(id)
	}
	return triplestore.Term{}, false
}

func checkKind(t triplestore.StringTriple) error {
	if !t.Object.Kind.Valid() {
		return fmt.Errorf("%w: %s", triplestore.ErrInvalidKind, t.Object.Kind)
	}
	return nil
}

func (b *Builder) checkIds(t triplestore.IdTriple) error {
	for _, id := range []uint64{t.Subject, t.Predicate} {
		term, ok := b.termOf(id)
		if !ok {
			return fmt.Errorf("%w: %d", triplestore.ErrUnboundId, id)
		}
		if term.Kind != triplestore.Node {
			return fmt.Errorf("%w: %d is %s", triplestore.ErrNotNode, id, term)
		}
	}
	if _, ok := b.termOf(t.Object); !ok {
		return fmt.Errorf("%w: %d", triplestore.ErrUnboundId, t.Object)
	}
	return nil
}
