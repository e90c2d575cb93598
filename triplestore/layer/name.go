package layer

import (
	"crypto/sha1"

	"github.com/wbrown/janus-triplestore/triplestore/codec"
)

// Name identifies a layer: the SHA1 of its encoded record.
// Identical content on top of the same parent always yields the same name.
type Name [20]byte

// nameOf hashes an encoded record
func nameOf(data []byte) Name {
	return sha1.Sum(data)
}

// String returns the 25-character L85 form
func (n Name) String() string {
	return codec.EncodeName(n)
}

// Short returns the first 8 characters of the L85 form, for display
func (n Name) Short() string {
	return n.String()[:8]
}

// IsZero reports whether n is the zero name
func (n Name) IsZero() bool {
	return n == Name{}
}

// ParseName parses the L85 form produced by String
func ParseName(s string) (Name, error) {
	b, err := codec.DecodeName(s)
	return Name(b), err
}
