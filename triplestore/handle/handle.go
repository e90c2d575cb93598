// Package handle exposes the store through opaque integer handles, for
// callers that cannot hold Go pointers across the call boundary.
//
// Every object handed out (store, database, layer, builder) gets a handle
// that stays valid until it is released. Committing a builder consumes its
// handle. A store is closed once its own handle and every handle derived
// from it have been released. Using a released, consumed or unknown handle
// fails with ErrInvalidHandle; it never panics.
package handle

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
	"github.com/wbrown/janus-triplestore/triplestore/storage"
)

// Handle is an opaque reference to an object owned by a Boundary.
// 0 is never issued.
type Handle uint64

// storeRef counts the live handles that depend on one open store
type storeRef struct {
	store *storage.Store
	refs  int
}

type entry[T any] struct {
	value T
	owner *storeRef
}

// table maps handles of one kind to their objects
type table[T any] struct {
	items map[Handle]entry[T]
}

func newTable[T any]() table[T] {
	return table[T]{items: make(map[Handle]entry[T])}
}

func (t table[T]) get(h Handle) (entry[T], bool) {
	e, ok := t.items[h]
	return e, ok
}

func (t table[T]) take(h Handle) (entry[T], bool) {
	e, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}
	return e, ok
}

// Boundary owns every object reachable through handles
type Boundary struct {
	mu     sync.Mutex
	config storage.Config
	logger *slog.Logger
	next   Handle

	stores    table[*storage.Store]
	databases table[*storage.Database]
	layers    table[*layer.Layer]
	builders  table[*layer.Builder]
}

// New returns a Boundary that opens stores with config, replacing its Path
// with the path given to OpenStore.
func New(config storage.Config) *Boundary {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Boundary{
		config:    config,
		logger:    logger,
		stores:    newTable[*storage.Store](),
		databases: newTable[*storage.Database](),
		layers:    newTable[*layer.Layer](),
		builders:  newTable[*layer.Builder](),
	}
}

// Live returns the number of unreleased handles
func (b *Boundary) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stores.items) + len(b.databases.items) + len(b.layers.items) + len(b.builders.items)
}

// Close releases every handle and closes every store
func (b *Boundary) Close() error {
	b.mu.Lock()
	var stores []*storage.Store
	seen := make(map[*storeRef]bool)
	collect := func(owner *storeRef) {
		if owner != nil && !seen[owner] {
			seen[owner] = true
			owner.refs = 0
			stores = append(stores, owner.store)
		}
	}
	for _, e := range b.stores.items {
		collect(e.owner)
	}
	for _, e := range b.databases.items {
		collect(e.owner)
	}
	for _, e := range b.layers.items {
		collect(e.owner)
	}
	for _, e := range b.builders.items {
		collect(e.owner)
	}
	clear(b.stores.items)
	clear(b.databases.items)
	clear(b.layers.items)
	clear(b.builders.items)
	b.mu.Unlock()

	var firstErr error
	for _, s := range stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// issue allocates the next handle. Caller holds b.mu.
func (b *Boundary) issue() Handle {
	b.next++
	return b.next
}

// derive registers a handle that keeps owner's store open. It fails once
// the store has lost its last reference. Caller holds b.mu.
func derive[T any](b *Boundary, t table[T], value T, owner *storeRef) (Handle, bool) {
	if owner.refs == 0 {
		return 0, false
	}
	owner.refs++
	return register(b, t, value, owner), true
}

// register issues a handle for value without touching owner. Caller holds b.mu.
func register[T any](b *Boundary, t table[T], value T, owner *storeRef) Handle {
	h := b.issue()
	t.items[h] = entry[T]{value: value, owner: owner}
	return h
}

// release drops one reference and returns the store to close, if any.
// Caller holds b.mu.
func release(owner *storeRef) *storage.Store {
	owner.refs--
	if owner.refs == 0 {
		return owner.store
	}
	return nil
}

func (b *Boundary) closeStore(s *storage.Store) error {
	if s == nil {
		return nil
	}
	b.logger.Debug("closing store", "path", s.Path())
	return s.Close()
}

func invalid[T any](op string, h Handle) triplestore.Result[T] {
	return triplestore.Fail[T](triplestore.ContractError(op, fmt.Errorf("%w: %d", triplestore.ErrInvalidHandle, h)))
}

func lookup[T any](b *Boundary, t table[T], h Handle) (entry[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return t.get(h)
}

// releaseFrom removes h from t and closes its store if h was the last
// reference to it.
func releaseFrom[T any](b *Boundary, t table[T], op string, h Handle) triplestore.Result[struct{}] {
	b.mu.Lock()
	e, ok := t.take(h)
	var closing *storage.Store
	if ok {
		closing = release(e.owner)
	}
	b.mu.Unlock()

	if !ok {
		return invalid[struct{}](op, h)
	}
	if err := b.closeStore(closing); err != nil {
		return triplestore.Fail[struct{}](err)
	}
	return triplestore.Empty[struct{}]()
}
