package formation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

func contingent(pairs ...any) parade.Contingent {
	var as []parade.Assignment
	for i := 0; i < len(pairs); i += 2 {
		as = append(as, parade.Assignment{Group: pairs[i].(string), Count: pairs[i+1].(int)})
	}
	return parade.NewContingent(as...)
}

func TestComposeOrdersByDistanceToCapacity(t *testing.T) {
	contingents := []parade.Contingent{
		contingent("A", 10),
		contingent("B", 3),
		contingent("A", 4, "B", 4),
	}

	got := Compose(contingents, Options{RowSize: 2, Capacity: 10, ColumnWidth: 12})

	want := strings.Join([]string{
		"C1 (10 A)C3 (4 A, 4 B)",
		"x x x x x     x x x x",
		"x x x x x     x x x x",
		"",
		"C2 (3 B)",
		"x x",
		"x  ",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestComposeIsDeterministic(t *testing.T) {
	contingents := []parade.Contingent{
		contingent("A", 85),
		contingent("B", 90),
		contingent("C", 85),
		contingent("D", 60, "E", 25),
		contingent("F", 15),
	}
	opts := Options{RowSize: 5, Capacity: 90}

	first := Compose(contingents, opts)
	second := Compose(contingents, opts)
	assert.Equal(t, first, second)

	// Ties at diff 5 keep their original order: C1, C3, C4.
	header := strings.Split(first, "\n")[0]
	assert.True(t, strings.HasPrefix(header, "C2 (90 B)"), header)
	assert.Less(t, strings.Index(header, "C1 ("), strings.Index(header, "C3 ("))
	assert.NotContains(t, header, "C4 (")

	blocks := strings.Split(first, "\n\n")
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[1], "C4 (60 D, 25 E)")
	assert.Contains(t, blocks[1], "C5 (15 F)")
}

func TestComposeDefaultWidthRightAligns(t *testing.T) {
	got := Compose([]parade.Contingent{contingent("A", 5), contingent("B", 5), contingent("C", 5)}, Options{RowSize: 5, Capacity: 5})

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 6+1+6)
	// The second diagram of the first row is right-aligned in its own 50 wide column.
	assert.Equal(t, "C1 (5 A)"+strings.Repeat(" ", DefaultColumnWidth-len("C2 (5 B)"))+"C2 (5 B)", lines[0])
	assert.Equal(t, "x"+strings.Repeat(" ", DefaultColumnWidth-1)+"x", lines[1])
}

func TestComposeEdgeCases(t *testing.T) {
	assert.Equal(t, "", Compose(nil, Options{RowSize: 5, Capacity: 90}))

	single := Compose([]parade.Contingent{contingent("A", 2)}, Options{RowSize: 2, Capacity: 90})
	assert.Equal(t, "C1 (2 A)\nx\nx", single)
}

func TestRemap(t *testing.T) {
	contingents := make([]parade.Contingent, 8)
	for i := range contingents {
		contingents[i] = contingent(string(rune('A'+i)), i+1)
	}

	got, err := Remap(contingents, map[int]int{1: 6, 8: 5, 5: 4, 3: 3, 2: 7})
	require.NoError(t, err)

	var order []int
	for _, c := range got {
		order = append(order, c.Total())
	}
	assert.Equal(t, []int{4, 6, 3, 5, 8, 1, 2, 7}, order)
	// Content is untouched.
	assert.Equal(t, "A", got[5].Assignments[0].Group)
}

func TestRemapEmptyMapCopies(t *testing.T) {
	in := []parade.Contingent{contingent("A", 1), contingent("B", 2)}
	got, err := Remap(in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestRemapRejectsInvalidMaps(t *testing.T) {
	in := []parade.Contingent{contingent("A", 1), contingent("B", 2), contingent("C", 3)}

	tests := map[string]map[int]int{
		"duplicate slot":    {1: 2, 3: 2},
		"ordinal too large": {4: 1},
		"ordinal too small": {0: 1},
		"slot out of range": {1: 9},
		"slot zero":         {2: 0},
	}
	for name, positions := range tests {
		positions := positions
		t.Run(name, func(t *testing.T) {
			_, err := Remap(in, positions)
			require.Error(t, err)
			assert.True(t, errors.Is(err, parade.ErrConfiguration))
		})
	}
}

func TestParsePositions(t *testing.T) {
	got, err := ParsePositions("1:6, 8:5 ,5:4,")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 6, 8: 5, 5: 4}, got)

	for _, raw := range []string{"1-6", "a:1", "1:b", "1:2,1:3"} {
		_, err := ParsePositions(raw)
		assert.ErrorIs(t, err, parade.ErrConfiguration, raw)
	}
}
