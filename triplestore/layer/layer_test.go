package layer

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-triplestore/triplestore"
)

// memoryPersister keeps encoded records in a map
type memoryPersister struct {
	mu      sync.Mutex
	records map[Name][]byte
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{records: make(map[Name][]byte)}
}

func (p *memoryPersister) PersistLayer(name Name, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[name] = append([]byte(nil), data...)
	return nil
}

// failingPersister fails the first n calls
type failingPersister struct {
	failures int
	inner    *memoryPersister
}

func (p *failingPersister) PersistLayer(name Name, data []byte) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("disk full")
	}
	return p.inner.PersistLayer(name, data)
}

func commit(t *testing.T, b *Builder) *Layer {
	t.Helper()
	l, err := b.Commit()
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func addString(t *testing.T, b *Builder, st triplestore.StringTriple) bool {
	t.Helper()
	added, err := b.AddStringTriple(st)
	require.NoError(t, err)
	return added
}

func TestBaseLayerFromScratch(t *testing.T) {
	b := NewBaseBuilder(newMemoryPersister())
	assert.Nil(t, b.Base())

	assert.True(t, addString(t, b, triplestore.NewNodeTriple("a", "knows", "b")))
	assert.False(t, addString(t, b, triplestore.NewNodeTriple("a", "knows", "b")), "second add is idempotent")
	assert.Equal(t, 1, b.PendingAdditions())

	l := commit(t, b)
	assert.Nil(t, l.Parent())
	assert.Equal(t, 0, l.Depth())
	assert.Equal(t, 1, l.TripleCount())
	assert.Equal(t, uint64(3), l.MaxId())
	assert.Equal(t, []triplestore.StringTriple{triplestore.NewNodeTriple("a", "knows", "b")}, l.StringTriples())
}

func TestIdempotentRemoval(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
	base := commit(t, b)

	w := base.OpenWrite()
	missing := triplestore.NewNodeTriple("a", "knows", "c")
	for i := 0; i < 2; i++ {
		removed, err := w.RemoveStringTriple(missing)
		require.NoError(t, err)
		assert.False(t, removed)
	}

	// unknown terms are not interned by a removal
	next := commit(t, w)
	assert.Equal(t, base.MaxId(), next.MaxId())
	_, ok := next.NodeId("c")
	assert.False(t, ok)

	// removing a visible triple twice: true then false
	present := triplestore.NewNodeTriple("a", "knows", "b")
	w2 := next.OpenWrite()
	removed, err := w2.RemoveStringTriple(present)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = w2.RemoveStringTriple(present)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 1, w2.PendingRemovals())
}

func TestAddRemoveCancellation(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
	base := commit(t, b)

	w := base.OpenWrite()
	tr := triplestore.NewValueTriple("a", "name", "Alice")
	assert.True(t, addString(t, w, tr))
	removed, err := w.RemoveStringTriple(tr)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, w.PendingAdditions())

	l := commit(t, w)
	assert.False(t, l.ContainsString(tr))
	assert.Empty(t, l.Additions())
	assert.Equal(t, base.TripleCount(), l.TripleCount())

	// cancelled additions bind no terms
	_, ok := l.ValueId("Alice")
	assert.False(t, ok)
	assert.Equal(t, base.MaxId(), l.MaxId())
	assert.Equal(t, commit(t, base.OpenWrite()).Name(), l.Name())
}

func TestCancelledAdditionOnBaseBuilder(t *testing.T) {
	b := NewBaseBuilder(nil)
	tr := triplestore.NewNodeTriple("a", "knows", "b")
	assert.True(t, addString(t, b, tr))
	removed, err := b.RemoveStringTriple(tr)
	require.NoError(t, err)
	require.True(t, removed)

	l := commit(t, b)
	_, ok := l.NodeId("a")
	assert.False(t, ok)
	assert.Equal(t, uint64(0), l.MaxId())
	assert.Equal(t, commit(t, NewBaseBuilder(nil)).Name(), l.Name())
}

func TestUnusedTermsAreCompacted(t *testing.T) {
	b := NewBaseBuilder(nil)
	dropped := triplestore.NewNodeTriple("x", "knows", "y")
	addString(t, b, dropped)
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
	_, err := b.RemoveStringTriple(dropped)
	require.NoError(t, err)

	// provisional ids x=1 knows=2 y=3 a=4 b=5; a id add through them survives
	a, ok := b.resolve(triplestore.NodeTerm("a"))
	require.True(t, ok)
	knows, _ := b.resolve(triplestore.NodeTerm("knows"))
	added, err := b.AddIdTriple(triplestore.NewIdTriple(a, knows, a))
	require.NoError(t, err)
	require.True(t, added)

	l := commit(t, b)
	assert.Equal(t, uint64(3), l.MaxId())
	_, ok = l.NodeId("x")
	assert.False(t, ok)
	id, ok := l.NodeId("knows")
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)
	assert.ElementsMatch(t, []triplestore.StringTriple{
		triplestore.NewNodeTriple("a", "knows", "a"),
		triplestore.NewNodeTriple("a", "knows", "b"),
	}, l.StringTriples())
}

func TestInvalidObjectKind(t *testing.T) {
	p := newMemoryPersister()
	b := NewBaseBuilder(p)
	bad := triplestore.StringTriple{Subject: "a", Predicate: "p", Object: triplestore.Term{Kind: 7, Text: "x"}}

	added, err := b.AddStringTriple(bad)
	assert.False(t, added)
	assert.ErrorIs(t, err, triplestore.ErrInvalidKind)
	assert.Equal(t, triplestore.KindContractViolation, triplestore.KindOf(err))

	removed, err := b.RemoveStringTriple(bad)
	assert.False(t, removed)
	assert.ErrorIs(t, err, triplestore.ErrInvalidKind)
	assert.Equal(t, triplestore.KindContractViolation, triplestore.KindOf(err))

	// nothing was staged and the committed record reloads
	assert.Equal(t, 0, b.PendingAdditions())
	addString(t, b, triplestore.NewValueTriple("a", "p", "x"))
	l := commit(t, b)
	restored, err := Restore(l.Name(), p.records[l.Name()], nil, p)
	require.NoError(t, err)
	assert.Equal(t, l.StringTriples(), restored.StringTriples())
}

func TestReAddCancelsPendingRemoval(t *testing.T) {
	b := NewBaseBuilder(nil)
	tr := triplestore.NewNodeTriple("a", "knows", "b")
	addString(t, b, tr)
	base := commit(t, b)

	w := base.OpenWrite()
	removed, err := w.RemoveStringTriple(tr)
	require.NoError(t, err)
	require.True(t, removed)
	assert.True(t, addString(t, w, tr))

	l := commit(t, w)
	assert.True(t, l.ContainsString(tr))
	assert.Empty(t, l.Removals())
}

func TestLineageVisibility(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewNodeTriple("x", "is", "y"))
	layer0 := commit(t, b)

	tr := triplestore.NewNodeTriple("a", "knows", "b")
	w1 := layer0.OpenWrite()
	addString(t, w1, tr)
	layer1 := commit(t, w1)

	w2 := layer1.OpenWrite()
	removed, err := w2.RemoveStringTriple(tr)
	require.NoError(t, err)
	require.True(t, removed)
	layer2 := commit(t, w2)

	assert.False(t, layer0.ContainsString(tr))
	assert.True(t, layer1.ContainsString(tr))
	assert.False(t, layer2.ContainsString(tr))

	assert.Equal(t, 1, layer0.TripleCount())
	assert.Equal(t, 2, layer1.TripleCount())
	assert.Equal(t, 1, layer2.TripleCount())
	assert.Equal(t, layer0.Triples(), layer2.Triples())

	assert.Same(t, layer1, layer2.Parent(), "ancestry is shared, not copied")
	assert.True(t, layer0.IsAncestorOf(layer2))
	assert.True(t, layer1.IsAncestorOf(layer2))
	assert.False(t, layer2.IsAncestorOf(layer1))
	assert.False(t, layer2.IsAncestorOf(layer2))
}

func TestIdStringRoundTrip(t *testing.T) {
	b := NewBaseBuilder(nil)
	tr := triplestore.NewValueTriple("alice", "name", "Alice")
	addString(t, b, tr)
	l := commit(t, b)

	id, ok := l.IdTripleFor(tr)
	require.True(t, ok)
	assert.True(t, l.Contains(id))

	// first occurrence order: subject, predicate, object
	assert.Equal(t, triplestore.NewIdTriple(1, 2, 3), id)

	back, ok := l.StringTripleFor(id)
	require.True(t, ok)
	assert.Equal(t, tr, back)

	term, ok := l.IdTerm(id.Object)
	require.True(t, ok)
	assert.Equal(t, triplestore.ValueTerm("Alice"), term)

	// the node "Alice" is a different term from the value "Alice"
	_, ok = l.NodeId("Alice")
	assert.False(t, ok)

	// ids stay stable in descendants
	w := l.OpenWrite()
	addString(t, w, triplestore.NewNodeTriple("alice", "knows", "bob"))
	child := commit(t, w)
	childId, ok := child.IdTripleFor(tr)
	require.True(t, ok)
	assert.Equal(t, id, childId)
	bob, ok := child.NodeId("bob")
	require.True(t, ok)
	assert.Equal(t, uint64(5), bob)
}

func TestAddIdTriple(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewValueTriple("a", "name", "A"))
	base := commit(t, b)

	a, _ := base.NodeId("a")
	name, _ := base.NodeId("name")
	value, _ := base.ValueId("A")

	w := base.OpenWrite()

	// already visible
	added, err := w.AddIdTriple(triplestore.NewIdTriple(a, name, value))
	require.NoError(t, err)
	assert.False(t, added)

	// new combination of bound ids
	added, err = w.AddIdTriple(triplestore.NewIdTriple(a, name, a))
	require.NoError(t, err)
	assert.True(t, added)

	// ids introduced by a string add on the same builder are usable
	addString(t, w, triplestore.NewNodeTriple("b", "likes", "a"))
	b2, ok := w.resolve(triplestore.NodeTerm("b"))
	require.True(t, ok)
	added, err = w.AddIdTriple(triplestore.NewIdTriple(b2, name, value))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestAddIdTripleContractViolations(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewValueTriple("a", "name", "A"))
	base := commit(t, b)
	a, _ := base.NodeId("a")
	name, _ := base.NodeId("name")
	value, _ := base.ValueId("A")

	tests := []struct {
		name   string
		triple triplestore.IdTriple
		err    error
	}{
		{"zero id", triplestore.NewIdTriple(0, name, a), triplestore.ErrUnboundId},
		{"unbound subject", triplestore.NewIdTriple(99, name, a), triplestore.ErrUnboundId},
		{"unbound object", triplestore.NewIdTriple(a, name, 99), triplestore.ErrUnboundId},
		{"value subject", triplestore.NewIdTriple(value, name, a), triplestore.ErrNotNode},
		{"value predicate", triplestore.NewIdTriple(a, value, a), triplestore.ErrNotNode},
	}

	w := base.OpenWrite()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, err := w.AddIdTriple(tt.triple)
			assert.False(t, added)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, triplestore.KindContractViolation, triplestore.KindOf(err))
		})
	}

	// removals with unbound ids are benign no-ops
	removed, err := w.RemoveIdTriple(triplestore.NewIdTriple(99, 98, 97))
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCommittedBuilderIsConsumed(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
	commit(t, b)
	assert.True(t, b.IsCommitted())

	_, err := b.AddStringTriple(triplestore.NewNodeTriple("c", "knows", "d"))
	assert.ErrorIs(t, err, triplestore.ErrBuilderCommitted)
	_, err = b.AddIdTriple(triplestore.NewIdTriple(1, 2, 3))
	assert.ErrorIs(t, err, triplestore.ErrBuilderCommitted)
	_, err = b.RemoveIdTriple(triplestore.NewIdTriple(1, 2, 3))
	assert.ErrorIs(t, err, triplestore.ErrBuilderCommitted)
	_, err = b.RemoveStringTriple(triplestore.NewNodeTriple("a", "knows", "b"))
	assert.ErrorIs(t, err, triplestore.ErrBuilderCommitted)

	l, err := b.Commit()
	assert.Nil(t, l)
	assert.ErrorIs(t, err, triplestore.ErrBuilderCommitted)
	assert.Equal(t, triplestore.KindContractViolation, triplestore.KindOf(err))
}

func TestFailedCommitLeavesBuilderUsable(t *testing.T) {
	p := &failingPersister{failures: 1, inner: newMemoryPersister()}
	b := NewBaseBuilder(p)
	tr := triplestore.NewNodeTriple("a", "knows", "b")
	addString(t, b, tr)

	l, err := b.Commit()
	require.Error(t, err)
	assert.Nil(t, l)
	assert.Equal(t, triplestore.KindIO, triplestore.KindOf(err))
	assert.False(t, b.IsCommitted())
	assert.Empty(t, p.inner.records)

	// retry succeeds with the same staged content
	l = commit(t, b)
	assert.True(t, l.ContainsString(tr))
	assert.Contains(t, p.inner.records, l.Name())
}

func TestCommitIsDeterministic(t *testing.T) {
	build := func() *Layer {
		b := NewBaseBuilder(nil)
		addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
		addString(t, b, triplestore.NewValueTriple("b", "age", "42"))
		addString(t, b, triplestore.NewNodeTriple("c", "knows", "a"))
		return commit(t, b)
	}

	first, second := build(), build()
	assert.Equal(t, first.Name(), second.Name())
	assert.Equal(t, first.Triples(), second.Triples())

	other := NewBaseBuilder(nil)
	addString(t, other, triplestore.NewNodeTriple("c", "knows", "a"))
	assert.NotEqual(t, first.Name(), commit(t, other).Name())
}

func TestIndependentBuildersFromOneLayer(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
	base := commit(t, b)

	left, right := base.OpenWrite(), base.OpenWrite()
	addString(t, left, triplestore.NewNodeTriple("a", "knows", "left"))
	addString(t, right, triplestore.NewNodeTriple("a", "knows", "right"))
	l, r := commit(t, left), commit(t, right)

	assert.Same(t, base, l.Parent())
	assert.Same(t, base, r.Parent())
	assert.False(t, l.ContainsString(triplestore.NewNodeTriple("a", "knows", "right")))
	assert.False(t, r.ContainsString(triplestore.NewNodeTriple("a", "knows", "left")))
	assert.Equal(t, 1, base.TripleCount())

	// both lineages allocated the same fresh id for different terms
	leftId, _ := l.NodeId("left")
	rightId, _ := r.NodeId("right")
	assert.Equal(t, leftId, rightId)
}

func TestMatch(t *testing.T) {
	b := NewBaseBuilder(nil)
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "c"))
	addString(t, b, triplestore.NewNodeTriple("b", "knows", "c"))
	l := commit(t, b)

	a, _ := l.NodeId("a")
	c, _ := l.NodeId("c")
	assert.Len(t, l.Match(a, 0, 0), 2)
	assert.Len(t, l.Match(0, 0, c), 2)
	assert.Len(t, l.Match(0, 0, 0), 3)
	assert.Empty(t, l.Match(c, 0, 0))
}

func TestRestore(t *testing.T) {
	p := newMemoryPersister()
	b := NewBaseBuilder(p)
	addString(t, b, triplestore.NewNodeTriple("a", "knows", "b"))
	base := commit(t, b)

	w := base.OpenWrite()
	addString(t, w, triplestore.NewValueTriple("a", "name", "A"))
	w.RemoveStringTriple(triplestore.NewNodeTriple("a", "knows", "b"))
	child := commit(t, w)

	restoredBase, err := Restore(base.Name(), p.records[base.Name()], nil, p)
	require.NoError(t, err)
	restoredChild, err := Restore(child.Name(), p.records[child.Name()], restoredBase, p)
	require.NoError(t, err)

	assert.Equal(t, child.Triples(), restoredChild.Triples())
	assert.Equal(t, child.StringTriples(), restoredChild.StringTriples())
	assert.Equal(t, child.MaxId(), restoredChild.MaxId())
	assert.Equal(t, child.TripleCount(), restoredChild.TripleCount())

	// restored layers keep writing through the persister
	w2 := restoredChild.OpenWrite()
	addString(t, w2, triplestore.NewNodeTriple("c", "knows", "a"))
	grandchild := commit(t, w2)
	assert.Contains(t, p.records, grandchild.Name())

	_, err = Restore(child.Name(), p.records[child.Name()], nil, p)
	assert.ErrorIs(t, err, triplestore.ErrCorruptRecord, "missing parent")

	_, err = Restore(base.Name(), p.records[child.Name()], restoredBase, p)
	assert.ErrorIs(t, err, triplestore.ErrCorruptRecord, "name mismatch")

	_, err = Restore(base.Name(), p.records[base.Name()], restoredBase, p)
	assert.ErrorIs(t, err, triplestore.ErrCorruptRecord, "base layer with parent")
}

func TestRecordEncoding(t *testing.T) {
	rec := &Record{
		Parent:    Name{1, 2, 3},
		HasParent: true,
		Terms: []triplestore.Term{
			triplestore.NodeTerm("alice"),
			triplestore.ValueTerm("Alice \"Al\" Smith"),
			triplestore.ValueTerm(""),
		},
		Additions: []triplestore.IdTriple{{Subject: 1, Predicate: 2, Object: 3}, {Subject: 1 << 40, Predicate: 2, Object: 300}},
		Removals:  []triplestore.IdTriple{{Subject: 4, Predicate: 5, Object: 6}},
	}

	decoded, err := RecordFromBytes(rec.Bytes())
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)

	data := rec.Bytes()
	for _, bad := range [][]byte{nil, data[:len(data)-1], append(append([]byte(nil), data...), 0), {9, 0, 0, 0, 0}} {
		_, err := RecordFromBytes(bad)
		assert.ErrorIs(t, err, triplestore.ErrCorruptRecord)
	}
}

func TestNameText(t *testing.T) {
	b := NewBaseBuilder(nil)
	l := commit(t, b)

	text := l.Name().String()
	assert.Len(t, text, 25)
	parsed, err := ParseName(text)
	require.NoError(t, err)
	assert.Equal(t, l.Name(), parsed)
	assert.False(t, l.Name().IsZero())
	assert.Equal(t, text[:8], l.Name().Short())
}
