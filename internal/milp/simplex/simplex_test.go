package simplex

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
)

func inf() float64 { return math.Inf(1) }

func TestRelaxTextbookProblem(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:   []float64{-1, -2},
		Rows:   [][]float64{{-1, 2}, {3, 1}},
		Senses: []milp.Sense{milp.LessEqual, milp.LessEqual},
		RHS:    []float64{4, 9},
		Lower:  []float64{0, 0},
		Upper:  []float64{inf(), inf()},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	require.Equal(t, milp.LPOptimal, sol.Status)
	assert.InDelta(t, -8, sol.Objective, 1e-9)
	assert.InDelta(t, 2, sol.X[0], 1e-9)
	assert.InDelta(t, 3, sol.X[1], 1e-9)
}

func TestRelaxUpperBoundFlip(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:   []float64{-1},
		Rows:   [][]float64{{1}},
		Senses: []milp.Sense{milp.LessEqual},
		RHS:    []float64{10},
		Lower:  []float64{0},
		Upper:  []float64{3},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	require.Equal(t, milp.LPOptimal, sol.Status)
	assert.InDelta(t, 3, sol.X[0], 1e-9)
	assert.InDelta(t, -3, sol.Objective, 1e-9)
}

func TestRelaxEqualityWithBounds(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:     []float64{1, -1},
		Constant: 2,
		Rows:     [][]float64{{1, 1}},
		Senses:   []milp.Sense{milp.Equal},
		RHS:      []float64{3},
		Lower:    []float64{0, 0},
		Upper:    []float64{2, 2},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	require.Equal(t, milp.LPOptimal, sol.Status)
	assert.InDelta(t, 1, sol.X[0], 1e-9)
	assert.InDelta(t, 2, sol.X[1], 1e-9)
	assert.InDelta(t, 1, sol.Objective, 1e-9)
}

func TestRelaxGreaterEqualRows(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:   []float64{1, 1},
		Rows:   [][]float64{{1, 1}, {1, -1}},
		Senses: []milp.Sense{milp.GreaterEqual, milp.Equal},
		RHS:    []float64{4, 0},
		Lower:  []float64{0, 0},
		Upper:  []float64{inf(), inf()},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	require.Equal(t, milp.LPOptimal, sol.Status)
	assert.InDelta(t, 4, sol.Objective, 1e-9)
	assert.InDelta(t, 2, sol.X[0], 1e-9)
	assert.InDelta(t, 2, sol.X[1], 1e-9)
}

func TestRelaxNonZeroLowerBounds(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:   []float64{1, 1},
		Rows:   [][]float64{{1, 1}},
		Senses: []milp.Sense{milp.LessEqual},
		RHS:    []float64{10},
		Lower:  []float64{2, 3},
		Upper:  []float64{5, 5},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	require.Equal(t, milp.LPOptimal, sol.Status)
	assert.InDelta(t, 5, sol.Objective, 1e-9)
}

func TestRelaxInfeasible(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:   []float64{1, 1},
		Rows:   [][]float64{{1, 1}},
		Senses: []milp.Sense{milp.GreaterEqual},
		RHS:    []float64{5},
		Lower:  []float64{0, 0},
		Upper:  []float64{1, 1},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, milp.LPInfeasible, sol.Status)
}

func TestRelaxCrossedBoundsAreInfeasible(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:  []float64{1},
		Lower: []float64{3},
		Upper: []float64{2},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, milp.LPInfeasible, sol.Status)
}

func TestRelaxUnbounded(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:   []float64{-1, 0},
		Rows:   [][]float64{{1, -1}},
		Senses: []milp.Sense{milp.LessEqual},
		RHS:    []float64{1},
		Lower:  []float64{0, 0},
		Upper:  []float64{inf(), inf()},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	assert.Equal(t, milp.LPUnbounded, sol.Status)
}

func TestRelaxNoRows(t *testing.T) {
	lp := &milp.LinearProgram{
		Cost:  []float64{2, -3},
		Lower: []float64{1, 0},
		Upper: []float64{4, 2},
	}

	sol, err := New().Relax(context.Background(), lp)
	require.NoError(t, err)
	require.Equal(t, milp.LPOptimal, sol.Status)
	assert.InDelta(t, 2-6, sol.Objective, 1e-9)
}

func TestRelaxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lp := &milp.LinearProgram{
		Cost:   []float64{-1},
		Rows:   [][]float64{{1}},
		Senses: []milp.Sense{milp.LessEqual},
		RHS:    []float64{1},
		Lower:  []float64{0},
		Upper:  []float64{inf()},
	}
	_, err := New().Relax(ctx, lp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelaxModelRelaxation(t *testing.T) {
	m := milp.NewModel()
	x := m.NewVar("x", milp.Continuous, 0, 4)
	y := m.NewVar("y", milp.Continuous, 0, 4)
	m.AddConstraint("sum", milp.Sum(x, y).AddConstant(1), milp.LessEqual, 6)
	m.Minimize(milp.NewExpr().AddTerm(x, -2).AddTerm(y, -1))

	sol, err := New().Relax(context.Background(), m.LinearProgram())
	require.NoError(t, err)
	require.Equal(t, milp.LPOptimal, sol.Status)
	assert.InDelta(t, 4, sol.X[0], 1e-9)
	assert.InDelta(t, 1, sol.X[1], 1e-9)
	assert.InDelta(t, -9, sol.Objective, 1e-9)
	assert.InDelta(t, 0, m.Violation(sol.X), 1e-9)
}
