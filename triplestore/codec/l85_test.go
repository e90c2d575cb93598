package codec

import (
	"bytes"
	"crypto/sha1"
	"sort"
	"testing"
)

func TestNameEncoding(t *testing.T) {
	for _, s := range []string{"hello", "world", "layer", "test", "example"} {
		name := sha1.Sum([]byte(s))
		encoded := EncodeName(name)

		if len(encoded) != NameLen {
			t.Errorf("Wrong length for %q: got %d chars", s, len(encoded))
		}

		decoded, err := DecodeName(encoded)
		if err != nil {
			t.Errorf("Decode error for %q: %v", s, err)
			continue
		}
		if decoded != name {
			t.Errorf("Round trip failed for %q", s)
		}
	}
}

func TestEncodingPreservesSortOrder(t *testing.T) {
	inputs := []string{
		"", "a", "b", "c", "aa", "ab", "ba", "bb",
		"alice", "bob", "charlie", "diana", "eve",
		"test1", "test2", "test10", "test20",
	}

	names := make([][20]byte, len(inputs))
	for i, s := range inputs {
		names[i] = sha1.Sum([]byte(s))
	}

	byBytes := append([][20]byte(nil), names...)
	sort.Slice(byBytes, func(i, j int) bool {
		return bytes.Compare(byBytes[i][:], byBytes[j][:]) < 0
	})

	byText := append([][20]byte(nil), names...)
	sort.Slice(byText, func(i, j int) bool {
		return EncodeName(byText[i]) < EncodeName(byText[j])
	})

	for i := range byBytes {
		if byBytes[i] != byText[i] {
			t.Fatalf("Sort order mismatch at position %d: %x vs %x", i, byBytes[i][:8], byText[i][:8])
		}
	}
}

func TestAlphabet(t *testing.T) {
	if len(Alphabet) != 85 {
		t.Fatalf("Alphabet length is %d, expected 85", len(Alphabet))
	}

	sorted := []byte(Alphabet)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if string(sorted) != Alphabet {
		t.Error("Alphabet is not in sorted order")
	}
}

func TestOddLengths(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"one byte", []byte{0x7f}},
		{"three bytes", []byte{0xff, 0x00, 0x10}},
		{"all ones", bytes.Repeat([]byte{0xFF}, 20)},
		{"all zeros", bytes.Repeat([]byte{0x00}, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.input)
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if !bytes.Equal(decoded, tt.input) && !(len(decoded) == 0 && len(tt.input) == 0) {
				t.Errorf("Round trip failed: %x -> %s -> %x", tt.input, encoded, decoded)
			}
		})
	}
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	if _, err := Decode("ab\"cd"); err == nil {
		t.Error("expected error for invalid character")
	}
	if _, err := DecodeName("short"); err == nil {
		t.Error("expected error for short name")
	}
	if _, err := Decode("abcde1"); err == nil {
		t.Error("expected error for dangling single character group")
	}
}
