package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-triplestore/triplestore"
	"github.com/wbrown/janus-triplestore/triplestore/layer"
	"github.com/wbrown/janus-triplestore/triplestore/storage"
)

// formatTable renders rows as a markdown table followed by a row count
func formatTable(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return "_No rows_\n"
	}

	out := &strings.Builder{}

	// AlignNone keeps the markdown separators simple
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	fmt.Fprintf(out, "\n_%d rows_\n", len(rows))
	return out.String()
}

// formatTriples renders the visible triples of l. With ids the rows follow
// id order; otherwise they are sorted by text.
func formatTriples(l *layer.Layer, withIds bool) string {
	if withIds {
		var rows [][]string
		for _, id := range l.Triples() {
			t, ok := l.StringTripleFor(id)
			if !ok {
				continue
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d %d %d", id.Subject, id.Predicate, id.Object),
				t.Subject, t.Predicate, t.Object.String(),
			})
		}
		return formatTable([]string{"ids", "subject", "predicate", "object"}, rows)
	}

	triples := l.StringTriples()
	triplestore.SortStringTriples(triples)
	rows := make([][]string, 0, len(triples))
	for _, t := range triples {
		rows = append(rows, []string{t.Subject, t.Predicate, t.Object.String()})
	}
	return formatTable([]string{"subject", "predicate", "object"}, rows)
}

// formatHistory renders a lineage, newest first
func formatHistory(history []*layer.Layer) string {
	rows := make([][]string, 0, len(history))
	for _, l := range history {
		parent := "-"
		if p := l.Parent(); p != nil {
			parent = p.Name().Short()
		}
		rows = append(rows, []string{
			fmt.Sprint(l.Depth()),
			l.Name().String(),
			parent,
			fmt.Sprintf("+%d", len(l.Additions())),
			fmt.Sprintf("-%d", len(l.Removals())),
			fmt.Sprint(l.TripleCount()),
		})
	}
	return formatTable([]string{"depth", "layer", "parent", "added", "removed", "triples"}, rows)
}

// formatLabels renders database labels
func formatLabels(labels []storage.Label) string {
	rows := make([][]string, 0, len(labels))
	for _, l := range labels {
		head := "-"
		if l.HasHead() {
			head = l.Layer.String()
		}
		rows = append(rows, []string{l.Name, fmt.Sprint(l.Version), head})
	}
	return formatTable([]string{"database", "version", "head"}, rows)
}
