package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
)

// Key prefixes. Layers and labels share one badger keyspace.
const (
	prefixLayer byte = 'L' // 'L' + 20-byte layer name -> layer record
	prefixLabel byte = 'N' // 'N' + label name -> encoded Label
)

// layerKey returns the key of a layer record
func layerKey(name layer.Name) []byte {
	key := make([]byte, 1+len(name))
	key[0] = prefixLayer
	copy(key[1:], name[:])
	return key
}

// labelKey returns the key of a label
func labelKey(name string) []byte {
	key := make([]byte, 1+len(name))
	key[0] = prefixLabel
	copy(key[1:], name)
	return key
}

// Label is the named, versioned pointer that makes a database.
// Layer is nil until the first head is set; Version counts head changes.
type Label struct {
	Name    string
	Layer   *layer.Name
	Version uint64
}

// HasHead reports whether the label points at a layer
func (l Label) HasHead() bool {
	return l.Layer != nil
}

// String returns a short description of the label
func (l Label) String() string {
	if !l.HasHead() {
		return fmt.Sprintf("%s@%d -> (none)", l.Name, l.Version)
	}
	return fmt.Sprintf("%s@%d -> %s", l.Name, l.Version, l.Layer)
}

// Bytes returns the stored form of the label
// Format: uvarint(version) flag(1) [layer(20)]
func (l Label) Bytes() []byte {
	buf := make([]byte, 0, binary.MaxVarintLen64+1+20)
	buf = binary.AppendUvarint(buf, l.Version)
	if !l.HasHead() {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return append(buf, l.Layer[:]...)
}

// LabelFromBytes decodes a stored label. The name lives in the key.
func LabelFromBytes(name string, data []byte) (Label, error) {
	version, n := binary.Uvarint(data)
	if n <= 0 || n >= len(data) {
		return Label{}, fmt.Errorf("%w: label %q: bad version", triplestore.ErrCorruptRecord, name)
	}
	data = data[n:]

	l := Label{Name: name, Version: version}
	switch {
	case data[0] == 0 && len(data) == 1:
	case data[0] == 1 && len(data) == 21:
		var ln layer.Name
		copy(ln[:], data[1:])
		l.Layer = &ln
	default:
		return Label{}, fmt.Errorf("%w: label %q: bad layer field", triplestore.ErrCorruptRecord, name)
	}
	return l, nil
}
