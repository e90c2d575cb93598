package storage

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/annotations"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
)

// Database is a handle on a named label in a Store.
// It holds no state of its own; every call reads the current label.
type Database struct {
	store *Store
	name  string
}

// Name returns the database name
func (d *Database) Name() string {
	return d.name
}

// Label returns the current label
func (d *Database) Label() (Label, error) {
	const op = "read label"
	label, err := d.label(op)
	if err != nil {
		return Label{}, err
	}
	return *label, nil
}

// Head returns the current head layer, or nil if none was ever set
func (d *Database) Head() (*layer.Layer, error) {
	const op = "read head"
	label, err := d.label(op)
	if err != nil {
		return nil, err
	}
	if !label.HasHead() {
		return nil, nil
	}

	l, err := d.store.Layer(*label.Layer)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, d.store.backendError(op, fmt.Errorf("%w: head %s of %q is missing", triplestore.ErrCorruptRecord, label.Layer, d.name))
	}
	return l, nil
}

// SetHead moves the head to l if the database has no head yet or the
// current head is a strict ancestor of l. Otherwise it returns false and
// the caller should rebuild on the new head and try again. The layer must
// have been persisted in this store.
func (d *Database) SetHead(l *layer.Layer) (bool, error) {
	const op = "set head"
	if err := d.store.check(op); err != nil {
		return false, err
	}
	if l == nil {
		return false, triplestore.ContractError(op, fmt.Errorf("%w: nil layer", triplestore.ErrLayerNotPersisted))
	}
	start := time.Now()
	defer func() {
		setHeadDuration.Observe(time.Since(start).Seconds())
	}()

	name := l.Name()
	persisted, err := d.store.backend.HasLayer(name)
	if err != nil {
		setHeadTotal.WithLabelValues("error").Inc()
		return false, d.store.backendError(op, err)
	}
	if !persisted {
		setHeadTotal.WithLabelValues("error").Inc()
		return false, triplestore.ContractError(op, fmt.Errorf("%w: %s", triplestore.ErrLayerNotPersisted, name))
	}

	d.store.labelMu.Lock()
	defer d.store.labelMu.Unlock()

	var missing bool
	var next Label
	advanced, err := d.store.backend.UpdateLabel(d.name, func(current *Label) (Label, bool) {
		if current == nil {
			missing = true
			return Label{}, false
		}
		if current.HasHead() && !descendsFrom(l, *current.Layer) {
			return Label{}, false
		}
		next = Label{Name: d.name, Layer: &name, Version: current.Version + 1}
		return next, true
	})
	switch {
	case err != nil:
		setHeadTotal.WithLabelValues("error").Inc()
		return false, d.store.backendError(op, err)
	case missing:
		setHeadTotal.WithLabelValues("error").Inc()
		return false, triplestore.ContractError(op, fmt.Errorf("%w: %q", triplestore.ErrDatabaseDeleted, d.name))
	case !advanced:
		setHeadTotal.WithLabelValues("rejected").Inc()
		d.store.logger.Debug("head change rejected", "database", d.name, "layer", name)
		d.store.events.AddTiming(annotations.HeadRejected, start, map[string]interface{}{
			"database": d.name,
			"layer":    name.Short(),
		})
		return false, nil
	}

	d.store.remember(l)
	setHeadTotal.WithLabelValues("advanced").Inc()
	d.store.logger.Debug("head advanced", "database", d.name, "layer", name, "version", next.Version)
	d.store.events.AddTiming(annotations.HeadAdvanced, start, map[string]interface{}{
		"database": d.name,
		"layer":    name.Short(),
		"version":  next.Version,
	})
	return true, nil
}

// History returns the head and its ancestors, newest first
func (d *Database) History() ([]*layer.Layer, error) {
	head, err := d.Head()
	if err != nil || head == nil {
		return nil, err
	}

	history := make([]*layer.Layer, 0, head.Depth()+1)
	for l := head; l != nil; l = l.Parent() {
		history = append(history, l)
	}
	return history, nil
}

func (d *Database) label(op string) (*Label, error) {
	if err := d.store.check(op); err != nil {
		return nil, err
	}
	label, err := d.store.backend.GetLabel(d.name)
	if err != nil {
		return nil, d.store.backendError(op, err)
	}
	if label == nil {
		return nil, triplestore.ContractError(op, fmt.Errorf("%w: %q", triplestore.ErrDatabaseDeleted, d.name))
	}
	return label, nil
}

// descendsFrom reports whether ancestor is a strict ancestor of l
func descendsFrom(l *layer.Layer, ancestor layer.Name) bool {
	for p := l.Parent(); p != nil; p = p.Parent() {
		if p.Name() == ancestor {
			return true
		}
	}
	return false
}
