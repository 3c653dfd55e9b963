// Package formation renders contingents as seating diagrams and composes
// them into the two-row parade layout.
package formation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"

	"github.com/eugenenazirov/parade-allocator/internal/parade"
	"github.com/eugenenazirov/parade-allocator/internal/seating"
)

const (
	// DefaultColumnWidth is the width each diagram is right-justified to.
	DefaultColumnWidth = 50
	// DefaultRowSize is the number of seat rows in a contingent diagram.
	DefaultRowSize = 5
)

// Options controls how a formation is drawn.
type Options struct {
	RowSize     int
	Capacity    int
	ColumnWidth int
}

type diagram struct {
	ordinal int
	diff    int
	lines   []string
}

// Compose draws every contingent, orders the diagrams closest-to-capacity
// first (ties keep their original order), splits them into two display rows
// and lays each row out side by side. The first row holds ceil(n/2) diagrams.
func Compose(contingents []parade.Contingent, opts Options) string {
	if len(contingents) == 0 {
		return ""
	}
	opts = opts.withDefaults()

	diagrams := make([]diagram, len(contingents))
	for i, c := range contingents {
		diagrams[i] = newDiagram(i+1, c, opts.RowSize, opts.Capacity)
	}
	slices.SortStableFunc(diagrams, func(a, b diagram) int {
		return cmp.Compare(a.diff, b.diff)
	})

	split := (len(diagrams) + 1) / 2
	lines := renderRow(diagrams[:split], opts.ColumnWidth)
	if second := diagrams[split:]; len(second) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderRow(second, opts.ColumnWidth)...)
	}
	return strings.Join(lines, "\n")
}

// newDiagram renders one contingent: a header naming its ordinal and
// composition followed by its seat grid.
func newDiagram(ordinal int, c parade.Contingent, rowSize, capacity int) diagram {
	total := c.Total()
	grid := seating.Generate(total, rowSize)

	lines := make([]string, 0, grid.Rows+1)
	lines = append(lines, fmt.Sprintf("C%d (%s)", ordinal, c.Composition()))
	lines = append(lines, grid.Lines(seating.Marker)...)

	diff := capacity - total
	if diff < 0 {
		diff = -diff
	}
	return diagram{ordinal: ordinal, diff: diff, lines: lines}
}

func renderRow(diagrams []diagram, width int) []string {
	height := 0
	for _, d := range diagrams {
		height = max(height, len(d.lines))
	}

	blank := strings.Repeat(" ", width)
	out := make([]string, 0, height)
	for i := 0; i < height; i++ {
		var b strings.Builder
		for _, d := range diagrams {
			if i < len(d.lines) {
				b.WriteString(runewidth.FillLeft(d.lines[i], width))
			} else {
				b.WriteString(blank)
			}
		}
		out = append(out, strings.TrimLeftFunc(b.String(), unicode.IsSpace))
	}
	return out
}

func (o Options) withDefaults() Options {
	if o.RowSize <= 0 {
		o.RowSize = DefaultRowSize
	}
	if o.ColumnWidth <= 0 {
		o.ColumnWidth = DefaultColumnWidth
	}
	return o
}
