package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

func testParams() Params {
	p := DefaultParams()
	p.TimeLimit = 0
	return p
}

func TestBuildModelShape(t *testing.T) {
	residual := []parade.Group{
		{Name: "A", Size: 127},
		{Name: "B", Size: 12, AvoidSplit: true},
	}

	m, err := BuildModel(residual, testParams(), -1)
	require.NoError(t, err)

	// floor(139/90) + 3
	assert.Equal(t, 4, m.Candidates)
	assert.Len(t, m.X, 2)
	assert.Len(t, m.Z, 4)
	assert.NotContains(t, m.M, 0)
	require.Contains(t, m.M, 1)
	assert.Len(t, m.M[1], 4)

	// x and y per group and candidate, z per candidate, m for the chunked group.
	assert.Equal(t, 2*4*2+4+4, m.Program.NumVars())
	// capacity, non-empty and order rows per candidate; conservation and
	// linking per group; single plus two row-multiple rows per candidate for B.
	assert.Equal(t, 4*2+3+2+2*4+1+2*4, m.Program.NumConstraints())

	v := m.Program.Variable(m.X[0][2])
	assert.Equal(t, milp.Integer, v.Kind)
	assert.Equal(t, 127.0, v.Upper)
	assert.Equal(t, 18.0, m.Program.Variable(m.M[1][0]).Upper)
}

func TestBuildModelOptionalRows(t *testing.T) {
	residual := []parade.Group{{Name: "A", Size: 100}}
	params := testParams()
	params.StrictMinCapacity = 30

	plain, err := BuildModel(residual, testParams(), -1)
	require.NoError(t, err)
	withMin, err := BuildModel(residual, params, 2)
	require.NoError(t, err)

	// One minimum-fill row per candidate plus the fixed count row.
	assert.Equal(t, plain.Program.NumConstraints()+plain.Candidates+1, withMin.Program.NumConstraints())
}

func TestBuildModelObjectiveOfHandAssignment(t *testing.T) {
	residual := []parade.Group{
		{Name: "A", Size: 127},
		{Name: "B", Size: 12, AvoidSplit: true},
	}
	m, err := BuildModel(residual, testParams(), -1)
	require.NoError(t, err)

	values := make([]float64, m.Program.NumVars())
	set := func(v milp.Var, x float64) { values[v.Index()] = x }
	// C1: 78 A + 12 B = 90 (18 rows of 5), C2: 49 A.
	set(m.X[0][0], 78)
	set(m.Y[0][0], 1)
	set(m.X[1][0], 12)
	set(m.Y[1][0], 1)
	set(m.M[1][0], 18)
	set(m.X[0][1], 49)
	set(m.Y[0][1], 1)
	set(m.Z[0], 1)
	set(m.Z[1], 1)

	assert.InDelta(t, 0, m.Program.Violation(values), 1e-9)
	// underfill 41 * alpha 1 + 3 present groups * beta 5
	assert.InDelta(t, 56, m.Program.Objective(values), 1e-9)

	// Moving one A out of C1 leaves B in a contingent of 89, not whole rows.
	set(m.X[0][0], 77)
	set(m.X[0][1], 50)
	assert.Greater(t, m.Program.Violation(values), 0.5)
}

func TestBuildModelRejectsInvalidInput(t *testing.T) {
	_, err := BuildModel([]parade.Group{{Name: "A", Size: 50}}, testParams(), 4)
	assert.ErrorIs(t, err, parade.ErrConfiguration)

	_, err = BuildModel([]parade.Group{{Name: "A", Size: 95, AvoidSplit: true}}, testParams(), -1)
	assert.ErrorIs(t, err, parade.ErrConfiguration)

	params := testParams()
	params.Capacity = 0
	_, err = BuildModel([]parade.Group{{Name: "A", Size: 5}}, params, -1)
	assert.ErrorIs(t, err, parade.ErrConfiguration)
}

func TestExtract(t *testing.T) {
	residual := []parade.Group{{Name: "A", Size: 30}, {Name: "B", Size: 20}}
	m, err := BuildModel(residual, testParams(), -1)
	require.NoError(t, err)

	values := make([]float64, m.Program.NumVars())
	values[m.X[1][0].Index()] = 20
	values[m.X[0][0].Index()] = 9.9999999
	values[m.X[0][2].Index()] = 20.0000001
	sol := &milp.Solution{Status: milp.StatusFeasible, Objective: 12.5, Values: values}

	pre := []parade.Contingent{parade.NewContingent(parade.Assignment{Group: "C", Count: 90})}
	alloc := Extract(m, sol, pre)

	require.Len(t, alloc.Contingents, 3)
	assert.Equal(t, pre[0], alloc.Contingents[0])
	assert.Equal(t, []parade.Assignment{{Group: "A", Count: 10}, {Group: "B", Count: 20}}, alloc.Contingents[1].Assignments)
	assert.Equal(t, []parade.Assignment{{Group: "A", Count: 20}}, alloc.Contingents[2].Assignments)
	assert.Equal(t, 12.5, alloc.Objective)
	assert.Equal(t, "FEASIBLE", alloc.Status)
	assert.Equal(t, 1, alloc.Preallocated)
}
