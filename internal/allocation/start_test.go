package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// paradeGround is the twelve-group roster of a full parade: 1006 people.
func paradeGround() []parade.Group {
	return []parade.Group{
		{Name: "A", Size: 127},
		{Name: "B", Size: 77},
		{Name: "C", Size: 30},
		{Name: "D", Size: 112},
		{Name: "E", Size: 86},
		{Name: "F", Size: 135},
		{Name: "G", Size: 117},
		{Name: "H", Size: 12},
		{Name: "I", Size: 44},
		{Name: "J", Size: 107},
		{Name: "K", Size: 46},
		{Name: "L", Size: 113},
	}
}

func TestGreedyStartPacksParadeGroundTightly(t *testing.T) {
	m, err := BuildModel(paradeGround(), testParams(), -1)
	require.NoError(t, err)

	start := greedyStart(m, -1)
	require.NotNil(t, start)
	assert.Zero(t, m.Program.Violation(start))

	used := 0
	for _, z := range m.Z {
		used += int(start[z.Index()])
	}
	assert.Equal(t, 12, used)
	// 74 empty seats plus 23 group placements at beta 5.
	assert.InDelta(t, 189, m.Program.Objective(start), 1e-9)
}

func TestGreedyStartTopsUpChunkedGroup(t *testing.T) {
	residual := []parade.Group{
		{Name: "A", Size: 127},
		{Name: "B", Size: 12, AvoidSplit: true},
	}
	m, err := BuildModel(residual, testParams(), -1)
	require.NoError(t, err)

	start := greedyStart(m, -1)
	require.NotNil(t, start)
	assert.Zero(t, m.Program.Violation(start))

	// A fills one contingent, B shares the next with three of A, A's last 34 follow.
	assert.Equal(t, 90.0, start[m.X[0][0].Index()])
	assert.Equal(t, 12.0, start[m.X[1][1].Index()])
	assert.Equal(t, 3.0, start[m.X[0][1].Index()])
	assert.Equal(t, 3.0, start[m.M[1][1].Index()])
	assert.Equal(t, 34.0, start[m.X[0][2].Index()])
	assert.Zero(t, start[m.Z[3].Index()])
	assert.InDelta(t, 151, m.Program.Objective(start), 1e-9)
}

func TestGreedyStartRespectsFixedCount(t *testing.T) {
	residual := []parade.Group{
		{Name: "A", Size: 127},
		{Name: "B", Size: 12, AvoidSplit: true},
	}

	m, err := BuildModel(residual, testParams(), 3)
	require.NoError(t, err)
	start := greedyStart(m, 3)
	require.NotNil(t, start)
	assert.Zero(t, m.Program.Violation(start))

	m, err = BuildModel(residual, testParams(), 4)
	require.NoError(t, err)
	assert.Nil(t, greedyStart(m, 4))
}

func TestGreedyStartGivesUpWithoutFreeMembers(t *testing.T) {
	params := testParams()
	params.Capacity = 10
	residual := []parade.Group{
		{Name: "X", Size: 6, AvoidSplit: true},
		{Name: "Y", Size: 6, AvoidSplit: true},
		{Name: "Z", Size: 6, AvoidSplit: true},
	}
	m, err := BuildModel(residual, params, -1)
	require.NoError(t, err)

	assert.Nil(t, greedyStart(m, -1))
}
