// Package codec provides L85, a lexicographically sortable base-85 text
// encoding used to render 20-byte layer names as 25 printable characters.
// Sorting encoded strings gives the same order as sorting the raw bytes.
package codec

import (
	"errors"
	"fmt"
)

// Alphabet is sorted by byte value, which is what preserves ordering
const Alphabet = "!$%&()+,-./" +
	"0123456789:;<=>@" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ[]_`" +
	"abcdefghijklmnopqrstuvwxyz{}"

// NameLen is the encoded length of a 20-byte name
const NameLen = 25

var (
	// digit+1 per alphabet byte; 0 marks an invalid character
	decodeTable [256]byte

	ErrInvalidCharacter = errors.New("invalid L85 character")
	ErrIncompleteGroup  = errors.New("invalid L85 encoding: incomplete group")
)

func init() {
	for i := 0; i < len(Alphabet); i++ {
		decodeTable[Alphabet[i]] = byte(i + 1)
	}
}

// Encode encodes bytes as L85. Every 4 input bytes become 5 characters;
// a trailing group of n bytes becomes n+1 characters.
func Encode(src []byte) string {
	out := make([]byte, 0, len(src)*5/4+5)
	for len(src) > 0 {
		var group [4]byte
		n := copy(group[:], src)
		src = src[n:]

		v := uint32(group[0])<<24 | uint32(group[1])<<16 | uint32(group[2])<<8 | uint32(group[3])
		var digits [5]byte
		for j := 4; j >= 0; j-- {
			digits[j] = Alphabet[v%85]
			v /= 85
		}
		out = append(out, digits[:n+1]...)
	}
	return string(out)
}

// Decode reverses Encode
func Decode(src string) ([]byte, error) {
	for i := 0; i < len(src); i++ {
		if decodeTable[src[i]] == 0 {
			return nil, fmt.Errorf("%w at position %d: %q", ErrInvalidCharacter, i, src[i])
		}
	}

	out := make([]byte, 0, len(src)*4/5+4)
	for len(src) > 0 {
		n := min(5, len(src))
		chunk := src[:n]
		src = src[n:]
		if n == 1 {
			return nil, ErrIncompleteGroup
		}

		// short groups are padded with the highest digit so truncation
		// during encoding cannot borrow from the kept bytes
		v := uint32(0)
		for j := 0; j < 5; j++ {
			d := uint32(84)
			if j < n {
				d = uint32(decodeTable[chunk[j]] - 1)
			}
			v = v*85 + d
		}
		group := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
		out = append(out, group[:n-1]...)
	}
	return out, nil
}

// EncodeName encodes a 20-byte name to exactly NameLen characters
func EncodeName(name [20]byte) string {
	return Encode(name[:])
}

// DecodeName decodes exactly NameLen characters to a 20-byte name
func DecodeName(src string) ([20]byte, error) {
	var name [20]byte
	if len(src) != NameLen {
		return name, fmt.Errorf("expected %d characters, got %d", NameLen, len(src))
	}
	decoded, err := Decode(src)
	if err != nil {
		return name, err
	}
	copy(name[:], decoded)
	return name, nil
}
