package storage

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
)

// BadgerStore persists layer records and labels in BadgerDB.
// Every write is a single badger transaction, so a failed write leaves no
// partial state behind.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens the badger database described by cfg
func NewBadgerStore(cfg Config) (*BadgerStore, error) {
	opts, err := cfg.badgerOptions()
	if err != nil {
		return nil, err
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// PersistLayer writes a layer record. Records are content addressed, so an
// existing record under the same name is left as is.
func (s *BadgerStore) PersistLayer(name layer.Name, data []byte) error {
	key := layerKey(name)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check layer %s: %w", name, err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to write layer %s: %w", name, err)
		}
		return nil
	})
}

// GetLayer returns a layer record, or nil if it does not exist
func (s *BadgerStore) GetLayer(name layer.Name) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(layerKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s: %w", name, err)
	}
	return data, nil
}

// HasLayer reports whether a layer record exists
func (s *BadgerStore) HasLayer(name layer.Name) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(layerKey(name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check layer %s: %w", name, err)
	}
	return true, nil
}

// GetLabel returns a label, or nil if it does not exist
func (s *BadgerStore) GetLabel(name string) (*Label, error) {
	var label *Label
	err := s.db.View(func(txn *badger.Txn) error {
		l, err := readLabel(txn, name)
		label = l
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read label %q: %w", name, err)
	}
	return label, nil
}

// CreateLabel writes an empty label. It fails with ErrAlreadyExists if the
// name is taken.
func (s *BadgerStore) CreateLabel(name string) (Label, error) {
	label := Label{Name: name}
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := readLabel(txn, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %q", triplestore.ErrAlreadyExists, name)
		}
		return txn.Set(labelKey(name), label.Bytes())
	})
	if err != nil {
		return Label{}, err
	}
	return label, nil
}

// DeleteLabel removes a label. Returns false if it did not exist.
// Layer records are kept.
func (s *BadgerStore) DeleteLabel(name string) (bool, error) {
	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		existing, err := readLabel(txn, name)
		if err != nil || existing == nil {
			return err
		}
		deleted = true
		return txn.Delete(labelKey(name))
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete label %q: %w", name, err)
	}
	return deleted, nil
}

// Labels returns every label name, sorted
func (s *BadgerStore) Labels() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{prefixLabel}

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, string(it.Item().Key()[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// UpdateLabel reads a label and writes back the result of fn in one
// transaction. fn returns false to leave the label unchanged. A missing
// label is passed to fn as nil. A write conflict with a concurrent
// transaction is reported as (false, nil).
func (s *BadgerStore) UpdateLabel(name string, fn func(current *Label) (Label, bool)) (bool, error) {
	updated := false
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readLabel(txn, name)
		if err != nil {
			return err
		}
		next, ok := fn(current)
		if !ok {
			return nil
		}
		if err := txn.Set(labelKey(name), next.Bytes()); err != nil {
			return err
		}
		updated = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update label %q: %w", name, err)
	}
	return updated, nil
}

// Close closes the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func readLabel(txn *badger.Txn, name string) (*Label, error) {
	item, err := txn.Get(labelKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var label Label
	err = item.Value(func(val []byte) error {
		l, err := LabelFromBytes(name, val)
		label = l
		return err
	})
	if err != nil {
		return nil, err
	}
	return &label, nil
}
