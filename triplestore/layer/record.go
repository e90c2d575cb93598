package layer

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/janus-triplestore/triplestore"
)

const recordVersion = 1

const flagHasParent = 1 << 0

// Record is the persisted form of a layer: everything needed to rebuild
// it on top of its parent.
type Record struct {
	Parent    Name
	HasParent bool
	Terms     []triplestore.Term     // Terms bound by this layer, in id order
	Additions []triplestore.IdTriple // Sorted
	Removals  []triplestore.IdTriple // Sorted
}

// Bytes returns the serialized form of the record
// Format: version(1) flags(1) [parent(20)]
//
//	uvarint(#terms)     { kind(1) uvarint(len) text }
//	uvarint(#additions) { uvarint(s) uvarint(p) uvarint(o) }
//	uvarint(#removals)  { uvarint(s) uvarint(p) uvarint(o) }
func (r *Record) Bytes() []byte {
	size := 2 + 20 + 3*binary.MaxVarintLen64 + 3*binary.MaxVarintLen64*(len(r.Additions)+len(r.Removals))
	for _, t := range r.Terms {
		size += 1 + binary.MaxVarintLen64 + len(t.Text)
	}
	buf := make([]byte, 0, size)

	var flags byte
	if r.HasParent {
		flags |= flagHasParent
	}
	buf = append(buf, recordVersion, flags)
	if r.HasParent {
		buf = append(buf, r.Parent[:]...)
	}

	buf = binary.AppendUvarint(buf, uint64(len(r.Terms)))
	for _, t := range r.Terms {
		buf = append(buf, byte(t.Kind))
		buf = binary.AppendUvarint(buf, uint64(len(t.Text)))
		buf = append(buf, t.Text...)
	}

	buf = appendTriples(buf, r.Additions)
	buf = appendTriples(buf, r.Removals)
	return buf
}

func appendTriples(buf []byte, triples []triplestore.IdTriple) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(triples)))
	for _, t := range triples {
		buf = binary.AppendUvarint(buf, t.Subject)
		buf = binary.AppendUvarint(buf, t.Predicate)
		buf = binary.AppendUvarint(buf, t.Object)
	}
	return buf
}

// RecordFromBytes deserializes a record
func RecordFromBytes(data []byte) (*Record, error) {
	d := recordDecoder{data: data}

	version := d.u8()
	flags := d.u8()
	if d.err == nil && version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported layer record version %d", triplestore.ErrCorruptRecord, version)
	}

	r := &Record{HasParent: flags&flagHasParent != 0}
	if r.HasParent {
		copy(r.Parent[:], d.take(20))
	}

	if n := d.count(); n > 0 {
		r.Terms = make([]triplestore.Term, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			kind := triplestore.ObjectKind(d.u8())
			if d.err == nil && kind != triplestore.Node && kind != triplestore.Value {
				d.fail("invalid term kind %d", kind)
			}
			text := string(d.take(d.count()))
			r.Terms = append(r.Terms, triplestore.Term{Kind: kind, Text: text})
		}
	}

	r.Additions = d.triples()
	r.Removals = d.triples()

	if d.err == nil && len(d.data) != 0 {
		d.fail("%d trailing bytes", len(d.data))
	}
	if d.err != nil {
		return nil, d.err
	}
	return r, nil
}

// recordDecoder reads sequentially and remembers the first error
type recordDecoder struct {
	data []byte
	err  error
}

func (d *recordDecoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", triplestore.ErrCorruptRecord, fmt.Sprintf(format, args...))
	}
}

func (d *recordDecoder) u8() byte {
	b := d.take(1)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

func (d *recordDecoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.data) {
		d.fail("truncated: need %d bytes, have %d", n, len(d.data))
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *recordDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data)
	if n <= 0 {
		d.fail("bad varint")
		return 0
	}
	d.data = d.data[n:]
	return v
}

// count reads a length prefix, bounded by the remaining input
func (d *recordDecoder) count() int {
	v := d.uvarint()
	if v > uint64(len(d.data)) {
		d.fail("count %d exceeds remaining %d bytes", v, len(d.data))
		return 0
	}
	return int(v)
}

func (d *recordDecoder) triples() []triplestore.IdTriple {
	n := d.count()
	if n == 0 {
		return nil
	}
	triples := make([]triplestore.IdTriple, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		triples = append(triples, triplestore.IdTriple{
			Subject:   d.uvarint(),
			Predicate: d.uvarint(),
			Object:    d.uvarint(),
		})
	}
	return triples
}
