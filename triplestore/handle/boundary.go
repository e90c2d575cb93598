package handle

import (
	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
	"github.com/wbrown/janus-triplestore/triplestore/storage"
)

// OpenStore opens the store at path
func (b *Boundary) OpenStore(path string) triplestore.Result[Handle] {
	cfg := b.config
	cfg.Path = path
	s, err := storage.Open(cfg)
	if err != nil {
		return triplestore.Fail[Handle](err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return triplestore.Ok(register(b, b.stores, s, &storeRef{store: s, refs: 1}))
}

// ReleaseStore releases a store handle. The store closes once nothing
// derived from it is still live.
func (b *Boundary) ReleaseStore(h Handle) triplestore.Result[struct{}] {
	return releaseFrom(b, b.stores, "release store", h)
}

// CreateDatabase creates a database in the store
func (b *Boundary) CreateDatabase(store Handle, name string) triplestore.Result[Handle] {
	const op = "create database"
	e, ok := lookup(b, b.stores, store)
	if !ok {
		return invalid[Handle](op, store)
	}

	db, err := e.value.Create(name)
	if err != nil {
		return triplestore.Fail[Handle](err)
	}
	return b.putDatabase(op, store, db, e.owner)
}

// OpenDatabase opens a database. The result is empty if it does not exist.
func (b *Boundary) OpenDatabase(store Handle, name string) triplestore.Result[Handle] {
	const op = "open database"
	e, ok := lookup(b, b.stores, store)
	if !ok {
		return invalid[Handle](op, store)
	}

	db, err := e.value.Open(name)
	if err != nil {
		return triplestore.Fail[Handle](err)
	}
	if db == nil {
		return triplestore.Empty[Handle]()
	}
	return b.putDatabase(op, store, db, e.owner)
}

// ReleaseDatabase releases a database handle
func (b *Boundary) ReleaseDatabase(h Handle) triplestore.Result[struct{}] {
	return releaseFrom(b, b.databases, "release database", h)
}

// DatabaseHead returns a handle on the database head. The result is empty
// if no head was ever set.
func (b *Boundary) DatabaseHead(db Handle) triplestore.Result[Handle] {
	const op = "database head"
	e, ok := lookup(b, b.databases, db)
	if !ok {
		return invalid[Handle](op, db)
	}

	head, err := e.value.Head()
	if err != nil {
		return triplestore.Fail[Handle](err)
	}
	if head == nil {
		return triplestore.Empty[Handle]()
	}
	return b.putLayer(op, db, head, e.owner)
}

// DatabaseSetHead moves the head to the layer. Ok(false) means the head
// moved since the layer's base was read.
func (b *Boundary) DatabaseSetHead(db, l Handle) triplestore.Result[bool] {
	const op = "database set head"
	d, ok := lookup(b, b.databases, db)
	if !ok {
		return invalid[bool](op, db)
	}
	target, ok := lookup(b, b.layers, l)
	if !ok {
		return invalid[bool](op, l)
	}

	advanced, err := d.value.SetHead(target.value)
	if err != nil {
		return triplestore.Fail[bool](err)
	}
	return triplestore.Ok(advanced)
}

// StoreCreateBaseLayer returns a builder for a layer with no parent
func (b *Boundary) StoreCreateBaseLayer(store Handle) triplestore.Result[Handle] {
	const op = "create base layer"
	e, ok := lookup(b, b.stores, store)
	if !ok {
		return invalid[Handle](op, store)
	}
	return b.putBuilder(op, store, e.value.CreateBaseLayer(), e.owner)
}

// LayerOpenWrite returns a builder based on the layer
func (b *Boundary) LayerOpenWrite(l Handle) triplestore.Result[Handle] {
	const op = "open write"
	e, ok := lookup(b, b.layers, l)
	if !ok {
		return invalid[Handle](op, l)
	}
	return b.putBuilder(op, l, e.value.OpenWrite(), e.owner)
}

// ReleaseLayer releases a layer handle
func (b *Boundary) ReleaseLayer(h Handle) triplestore.Result[struct{}] {
	return releaseFrom(b, b.layers, "release layer", h)
}

// BuilderAddIdTriple stages an id triple for addition
func (b *Boundary) BuilderAddIdTriple(builder Handle, subject, predicate, object uint64) triplestore.Result[bool] {
	return b.mutate("add id triple", builder, func(w *layer.Builder) (bool, error) {
		return w.AddIdTriple(triplestore.NewIdTriple(subject, predicate, object))
	})
}

// BuilderAddStringNodeTriple stages a triple whose object is a node
func (b *Boundary) BuilderAddStringNodeTriple(builder Handle, subject, predicate, object string) triplestore.Result[bool] {
	return b.mutate("add string node triple", builder, func(w *layer.Builder) (bool, error) {
		return w.AddStringTriple(triplestore.NewNodeTriple(subject, predicate, object))
	})
}

// BuilderAddStringValueTriple stages a triple whose object is a value
func (b *Boundary) BuilderAddStringValueTriple(builder Handle, subject, predicate, object string) triplestore.Result[bool] {
	return b.mutate("add string value triple", builder, func(w *layer.Builder) (bool, error) {
		return w.AddStringTriple(triplestore.NewValueTriple(subject, predicate, object))
	})
}

// BuilderRemoveIdTriple stages an id triple for removal
func (b *Boundary) BuilderRemoveIdTriple(builder Handle, subject, predicate, object uint64) triplestore.Result[bool] {
	return b.mutate("remove id triple", builder, func(w *layer.Builder) (bool, error) {
		return w.RemoveIdTriple(triplestore.NewIdTriple(subject, predicate, object))
	})
}

// BuilderRemoveStringNodeTriple stages a node triple for removal
func (b *Boundary) BuilderRemoveStringNodeTriple(builder Handle, subject, predicate, object string) triplestore.Result[bool] {
	return b.mutate("remove string node triple", builder, func(w *layer.Builder) (bool, error) {
		return w.RemoveStringTriple(triplestore.NewNodeTriple(subject, predicate, object))
	})
}

// BuilderRemoveStringValueTriple stages a value triple for removal
func (b *Boundary) BuilderRemoveStringValueTriple(builder Handle, subject, predicate, object string) triplestore.Result[bool] {
	return b.mutate("remove string value triple", builder, func(w *layer.Builder) (bool, error) {
		return w.RemoveStringTriple(triplestore.NewValueTriple(subject, predicate, object))
	})
}

// BuilderCommit seals the builder into a layer. On success the builder
// handle is consumed and a layer handle returned; on failure the builder
// handle stays valid so the commit can be retried.
func (b *Boundary) BuilderCommit(builder Handle) triplestore.Result[Handle] {
	const op = "commit"
	e, ok := lookup(b, b.builders, builder)
	if !ok {
		return invalid[Handle](op, builder)
	}

	l, err := e.value.Commit()
	if err != nil {
		return triplestore.Fail[Handle](err)
	}

	// the builder's store reference moves to the layer
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.builders.take(builder); !ok {
		// released while committing
		h, ok := derive(b, b.layers, l, e.owner)
		if !ok {
			return invalid[Handle](op, builder)
		}
		return triplestore.Ok(h)
	}
	return triplestore.Ok(register(b, b.layers, l, e.owner))
}

// ReleaseBuilder discards a builder and everything staged in it
func (b *Boundary) ReleaseBuilder(h Handle) triplestore.Result[struct{}] {
	return releaseFrom(b, b.builders, "release builder", h)
}

func (b *Boundary) mutate(op string, h Handle, fn func(*layer.Builder) (bool, error)) triplestore.Result[bool] {
	e, ok := lookup(b, b.builders, h)
	if !ok {
		return invalid[bool](op, h)
	}
	changed, err := fn(e.value)
	if err != nil {
		return triplestore.Fail[bool](err)
	}
	return triplestore.Ok(changed)
}

// putDatabase, putLayer and putBuilder register an object derived from
// the handle src. They fail if src's store closed since src was looked up.
func (b *Boundary) putDatabase(op string, src Handle, db *storage.Database, owner *storeRef) triplestore.Result[Handle] {
	return put(b, b.databases, op, src, db, owner)
}

func (b *Boundary) putLayer(op string, src Handle, l *layer.Layer, owner *storeRef) triplestore.Result[Handle] {
	return put(b, b.layers, op, src, l, owner)
}

func (b *Boundary) putBuilder(op string, src Handle, w *layer.Builder, owner *storeRef) triplestore.Result[Handle] {
	return put(b, b.builders, op, src, w, owner)
}

func put[T any](b *Boundary, t table[T], op string, src Handle, value T, owner *storeRef) triplestore.Result[Handle] {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := derive(b, t, value, owner)
	if !ok {
		return invalid[Handle](op, src)
	}
	return triplestore.Ok(h)
}
