package triplestore

import (
	"cmp"
	"slices"
	"strings"
)

// CompareIdTriples compares two id triples by subject, then predicate, then object.
// Returns -1, 0 or 1.
func CompareIdTriples(left, right IdTriple) int {
	if c := cmp.Compare(left.Subject, right.Subject); c != 0 {
		return c
	}
	if c := cmp.Compare(left.Predicate, right.Predicate); c != 0 {
		return c
	}
	return cmp.Compare(left.Object, right.Object)
}

// SortIdTriples sorts triples in place in (S, P, O) order
func SortIdTriples(triples []IdTriple) {
	slices.SortFunc(triples, CompareIdTriples)
}

// CompareTerms orders nodes before values, then by text
func CompareTerms(left, right Term) int {
	if left.Kind != right.Kind {
		return cmp.Compare(left.Kind, right.Kind)
	}
	return strings.Compare(left.Text, right.Text)
}

// CompareStringTriples compares two string triples by subject, predicate, then object
func CompareStringTriples(left, right StringTriple) int {
	if c := strings.Compare(left.Subject, right.Subject); c != 0 {
		return c
	}
	if c := strings.Compare(left.Predicate, right.Predicate); c != 0 {
		return c
	}
	return CompareTerms(left.Object, right.Object)
}

// SortStringTriples sorts triples in place
func SortStringTriples(triples []StringTriple) {
	slices.SortFunc(triples, CompareStringTriples)
}
