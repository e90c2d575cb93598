package triplestore

import (
	"fmt"
	"strconv"
)

// ObjectKind tags the object position of a string triple
type ObjectKind uint8

const (
	Node  ObjectKind = iota // Another entity in the graph
	Value                   // A literal value
)

// Valid reports whether k is Node or Value
func (k ObjectKind) Valid() bool {
	return k == Node || k == Value
}

// String returns "node" or "value"
func (k ObjectKind) String() string {
	switch k {
	case Node:
		return "node"
	case Value:
		return "value"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Term is a single string term of the identifier space.
// A node and a value with the same text are different terms.
type Term struct {
	Kind ObjectKind
	Text string
}

// NodeTerm creates a node term
func NodeTerm(s string) Term {
	return Term{Kind: Node, Text: s}
}

// ValueTerm creates a value term
func ValueTerm(s string) Term {
	return Term{Kind: Value, Text: s}
}

// String returns the term in display form: nodes bare, values quoted
func (t Term) String() string {
	if t.Kind == Value {
		return strconv.Quote(t.Text)
	}
	return t.Text
}

// IdTriple is a fact expressed in resolved identifiers.
// Identifiers are only meaningful relative to a layer's identifier space.
type IdTriple struct {
	Subject   uint64
	Predicate uint64
	Object    uint64
}

// NewIdTriple creates an id triple
func NewIdTriple(s, p, o uint64) IdTriple {
	return IdTriple{Subject: s, Predicate: p, Object: o}
}

// String returns a string representation of the IdTriple
func (t IdTriple) String() string {
	return fmt.Sprintf("[%d %d %d]", t.Subject, t.Predicate, t.Object)
}

// StringTriple is a fact expressed in string terms.
// Subject and predicate are always nodes; the object is a node or a value.
type StringTriple struct {
	Subject   string
	Predicate string
	Object    Term
}

// NewNodeTriple creates a string triple whose object is a node
func NewNodeTriple(s, p, o string) StringTriple {
	return StringTriple{Subject: s, Predicate: p, Object: NodeTerm(o)}
}

// NewValueTriple creates a string triple whose object is a value
func NewValueTriple(s, p, o string) StringTriple {
	return StringTriple{Subject: s, Predicate: p, Object: ValueTerm(o)}
}

// Terms returns the three terms in subject, predicate, object order
func (t StringTriple) Terms() [3]Term {
	return [3]Term{NodeTerm(t.Subject), NodeTerm(t.Predicate), t.Object}
}

// String returns a string representation of the StringTriple
func (t StringTriple) String() string {
	return fmt.Sprintf("[%s %s %s]", t.Subject, t.Predicate, t.Object)
}
