package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wbrown/janus-triplestore/triplestore"
)

// ParseTriple parses "subject predicate object". A double-quoted object is
// a value; anything else is a node.
func ParseTriple(line string) (triplestore.StringTriple, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return triplestore.StringTriple{}, fmt.Errorf("expected subject predicate object, got %q", line)
	}
	subject, predicate := fields[0], fields[1]

	// object is everything after the predicate
	rest := strings.TrimSpace(line)
	for _, f := range fields[:2] {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, f))
	}

	if strings.HasPrefix(rest, `"`) {
		value, err := strconv.Unquote(rest)
		if err != nil {
			return triplestore.StringTriple{}, fmt.Errorf("invalid quoted value %s: %w", rest, err)
		}
		return triplestore.NewValueTriple(subject, predicate, value), nil
	}
	if len(fields) != 3 {
		return triplestore.StringTriple{}, fmt.Errorf("node object must be a single word, got %q (quote values)", rest)
	}
	return triplestore.NewNodeTriple(subject, predicate, rest), nil
}

// ReadTriples parses one triple per line. Blank lines and lines starting
// with # are skipped.
func ReadTriples(r io.Reader) ([]triplestore.StringTriple, error) {
	var triples []triplestore.StringTriple
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := ParseTriple(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		triples = append(triples, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading triples: %w", err)
	}
	return triples, nil
}
