// Package storage persists layers and database labels in BadgerDB and
// exposes them as a Store of named, versioned databases.
//
// A database is a label: a name, an optional head layer, and a version
// that counts head changes. Layers are written once under their content
// derived name and never modified. Heads move only forward along a
// lineage, so a writer whose base has been superseded loses the race and
// must rebuild on the new head.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"golang.org/x/sync/singleflight"

	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/annotations"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
)

// Store is a directory of databases sharing one layer pool
type Store struct {
	backend *BadgerStore
	logger  *slog.Logger
	events  *annotations.Collector
	path    string

	// labelMu serializes head changes and deletions
	labelMu sync.Mutex

	cacheLayers bool
	cacheMu     sync.Mutex
	cache       map[layer.Name]weak.Pointer[layer.Layer]
	loads       singleflight.Group

	closed atomic.Bool
}

// Open opens or creates the store described by cfg
func Open(cfg Config) (*Store, error) {
	start := time.Now()
	logger := cfg.logger()

	path := cfg.Path
	if cfg.InMemory {
		path = ":memory:"
	}

	backend, err := NewBadgerStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "path", path, "error", err)
		return nil, triplestore.IOError("open store", err)
	}

	s := &Store{
		backend:     backend,
		logger:      logger,
		events:      annotations.NewCollector(cfg.Handler),
		path:        path,
		cacheLayers: cfg.CacheLayers,
		cache:       make(map[layer.Name]weak.Pointer[layer.Layer]),
	}

	logger.Info("store opened", "path", path, "sync_writes", cfg.SyncWrites)
	s.events.AddTiming(annotations.StoreOpened, start, map[string]interface{}{
		"path": path,
	})
	return s, nil
}

// Path returns the store directory, or ":memory:"
func (s *Store) Path() string {
	return s.path
}

// Events returns the most recent annotation events
func (s *Store) Events() []annotations.Event {
	return s.events.Events()
}

// Create registers a new database with no head
func (s *Store) Create(name string) (*Database, error) {
	const op = "create database"
	if err := s.check(op); err != nil {
		return nil, err
	}
	start := time.Now()

	if _, err := s.backend.CreateLabel(name); err != nil {
		if errors.Is(err, triplestore.ErrAlreadyExists) {
			return nil, triplestore.ExistsError(op, name)
		}
		return nil, s.backendError(op, err)
	}

	s.logger.Info("database created", "database", name)
	s.events.AddTiming(annotations.DatabaseCreated, start, map[string]interface{}{
		"database": name,
	})
	return &Database{store: s, name: name}, nil
}

// Open returns the named database, or nil if it does not exist
func (s *Store) Open(name string) (*Database, error) {
	const op = "open database"
	if err := s.check(op); err != nil {
		return nil, err
	}

	label, err := s.backend.GetLabel(name)
	if err != nil {
		return nil, s.backendError(op, err)
	}
	if label == nil {
		return nil, nil
	}
	return &Database{store: s, name: name}, nil
}

// Databases returns the names of all databases, sorted
func (s *Store) Databases() ([]string, error) {
	const op = "list databases"
	if err := s.check(op); err != nil {
		return nil, err
	}

	names, err := s.backend.Labels()
	if err != nil {
		return nil, s.backendError(op, err)
	}
	return names, nil
}

// Delete removes a database. Its layers stay in the store and remain
// reachable by name. Returns false if the database did not exist.
func (s *Store) Delete(name string) (bool, error) {
	const op = "delete database"
	if err := s.check(op); err != nil {
		return false, err
	}
	start := time.Now()

	s.labelMu.Lock()
	deleted, err := s.backend.DeleteLabel(name)
	s.labelMu.Unlock()
	if err != nil {
		return false, s.backendError(op, err)
	}

	if deleted {
		s.logger.Info("database deleted", "database", name)
		s.events.AddTiming(annotations.DatabaseDeleted, start, map[string]interface{}{
			"database": name,
		})
	}
	return deleted, nil
}

// CreateBaseLayer returns a builder for a new layer with no parent.
// Committing it persists the layer in this store.
func (s *Store) CreateBaseLayer() *layer.Builder {
	return layer.NewBaseBuilder(s)
}

// PersistLayer implements layer.Persister
func (s *Store) PersistLayer(name layer.Name, data []byte) error {
	const op = "persist layer"
	if err := s.check(op); err != nil {
		return err
	}
	start := time.Now()

	if err := s.backend.PersistLayer(name, data); err != nil {
		layerCommitTotal.WithLabelValues("error").Inc()
		return s.backendError(op, err)
	}
	layerCommitTotal.WithLabelValues("ok").Inc()
	layerCommitBytes.Observe(float64(len(data)))

	s.logger.Debug("layer persisted", "layer", name, "bytes", len(data))
	if s.events.Enabled() {
		fields := map[string]interface{}{"layer": name.Short(), "bytes": len(data)}
		if rec, err := layer.RecordFromBytes(data); err == nil {
			fields["additions"] = len(rec.Additions)
			fields["removals"] = len(rec.Removals)
			fields["terms"] = len(rec.Terms)
		}
		s.events.AddTiming(annotations.LayerCommitted, start, fields)
	}
	return nil
}

// Layer returns the named layer with its full lineage, or nil if this
// store has no such layer.
func (s *Store) Layer(name layer.Name) (*layer.Layer, error) {
	const op = "load layer"
	if err := s.check(op); err != nil {
		return nil, err
	}

	if l := s.cached(name); l != nil {
		layerLoadTotal.WithLabelValues("cache").Inc()
		return l, nil
	}

	v, err, _ := s.loads.Do(string(name[:]), func() (interface{}, error) {
		return s.loadLayer(name)
	})
	if err != nil {
		return nil, err
	}
	l, _ := v.(*layer.Layer)
	return l, nil
}

// loadLayer reads records from name back to the nearest cached ancestor
// (or the root) and restores them oldest first.
func (s *Store) loadLayer(name layer.Name) (*layer.Layer, error) {
	const op = "load layer"
	start := time.Now()

	type pending struct {
		name layer.Name
		data []byte
	}
	var chain []pending
	var parent *layer.Layer

	for cur := name; ; {
		if l := s.cached(cur); l != nil {
			parent = l
			break
		}

		data, err := s.backend.GetLayer(cur)
		if err != nil {
			return nil, s.backendError(op, err)
		}
		if data == nil {
			if len(chain) == 0 {
				layerLoadTotal.WithLabelValues("missing").Inc()
				return nil, nil
			}
			return nil, s.backendError(op, fmt.Errorf("%w: ancestor %s of %s is missing", triplestore.ErrCorruptRecord, cur, name))
		}

		rec, err := layer.RecordFromBytes(data)
		if err != nil {
			return nil, s.backendError(op, fmt.Errorf("layer %s: %w", cur, err))
		}
		chain = append(chain, pending{name: cur, data: data})
		if !rec.HasParent {
			break
		}
		cur = rec.Parent
	}

	for i := len(chain) - 1; i >= 0; i-- {
		l, err := layer.Restore(chain[i].name, chain[i].data, parent, s)
		if err != nil {
			return nil, s.backendError(op, err)
		}
		s.remember(l)
		parent = l
	}

	layerLoadTotal.WithLabelValues("disk").Inc()
	s.logger.Debug("layer loaded", "layer", name, "records", len(chain))
	s.events.AddTiming(annotations.LayerLoaded, start, map[string]interface{}{
		"layer":   name.Short(),
		"records": len(chain),
	})
	return parent, nil
}

// Close closes the store. Layers already loaded stay readable; anything
// that touches the backend fails with ErrStoreClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	start := time.Now()

	if err := s.backend.Close(); err != nil {
		s.logger.Error("failed to close store", "path", s.path, "error", err)
		return triplestore.IOError("close store", err)
	}

	s.logger.Info("store closed", "path", s.path)
	s.events.AddTiming(annotations.StoreClosed, start, nil)
	return nil
}

func (s *Store) check(op string) error {
	if s.closed.Load() {
		return triplestore.ContractError(op, triplestore.ErrStoreClosed)
	}
	return nil
}

// backendError logs and reports a persistence failure as KindIO
func (s *Store) backendError(op string, err error) error {
	s.logger.Error("backend failure", "op", op, "error", err)
	s.events.Add(annotations.Event{
		Name:  annotations.ErrorBackend,
		Start: time.Now(),
		End:   time.Now(),
		Data:  map[string]interface{}{"op": op, "error": err.Error()},
	})
	return triplestore.IOError(op, err)
}

func (s *Store) cached(name layer.Name) *layer.Layer {
	if !s.cacheLayers {
		return nil
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if p, ok := s.cache[name]; ok {
		return p.Value()
	}
	return nil
}

// remember caches l weakly; the entry is dropped once l is collected
func (s *Store) remember(l *layer.Layer) {
	if !s.cacheLayers {
		return
	}
	name := l.Name()

	s.cacheMu.Lock()
	if p, ok := s.cache[name]; ok && p.Value() != nil {
		s.cacheMu.Unlock()
		return
	}
	s.cache[name] = weak.Make(l)
	s.cacheMu.Unlock()

	runtime.AddCleanup(l, s.forget, name)
}

func (s *Store) forget(name layer.Name) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if p, ok := s.cache[name]; ok && p.Value() == nil {
		delete(s.cache, name)
	}
}
