// Package simplex solves linear programs with a dense, bounded-variable,
// two-phase primal simplex method. It is the default relaxation backend for
// branch and bound: bounds are handled implicitly, so tightening a variable
// in a search node does not add rows.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
)

const (
	optimalityTol   = 1e-9
	pivotTol        = 1e-9
	phaseOneTol     = 1e-6
	degenerateLimit = 50
)

// ErrIterationLimit is returned when the method fails to converge.
var ErrIterationLimit = errors.New("simplex: iteration limit reached")

type varState int8

const (
	atLower varState = iota
	atUpper
	free
	basic
)

// Relaxer implements milp.Relaxer.
type Relaxer struct {
	// MaxIterations caps pivots per phase; zero picks a limit from the problem size.
	MaxIterations int
}

// New returns a Relaxer with default limits.
func New() *Relaxer {
	return &Relaxer{}
}

type tableau struct {
	rows, cols int
	t          [][]float64
	d          []float64
	lower      []float64
	upper      []float64
	x          []float64
	basis      []int
	state      []varState
	iter       int
	maxIter    int
}

// Relax solves lp.
func (r *Relaxer) Relax(ctx context.Context, lp *milp.LinearProgram) (*milp.LPSolution, error) {
	n := lp.NumVars()
	m := len(lp.Rows)
	for j := 0; j < n; j++ {
		if lp.Lower[j] > lp.Upper[j]+pivotTol {
			return &milp.LPSolution{Status: milp.LPInfeasible}, nil
		}
	}

	slacks := 0
	slackOf := make([]int, m)
	for i, s := range lp.Senses {
		slackOf[i] = -1
		if s != milp.Equal {
			slackOf[i] = n + slacks
			slacks++
		}
	}
	artStart := n + slacks
	cols := artStart + m

	tb := &tableau{
		rows:  m,
		cols:  cols,
		t:     make([][]float64, m),
		d:     make([]float64, cols),
		lower: make([]float64, cols),
		upper: make([]float64, cols),
		x:     make([]float64, cols),
		basis: make([]int, m),
		state: make([]varState, cols),
	}
	tb.maxIter = r.MaxIterations
	if tb.maxIter <= 0 {
		tb.maxIter = 50*(m+cols) + 1000
	}

	for j := 0; j < n; j++ {
		tb.lower[j], tb.upper[j] = lp.Lower[j], lp.Upper[j]
		switch {
		case !math.IsInf(lp.Lower[j], -1):
			tb.x[j], tb.state[j] = lp.Lower[j], atLower
		case !math.IsInf(lp.Upper[j], 1):
			tb.x[j], tb.state[j] = lp.Upper[j], atUpper
		default:
			tb.x[j], tb.state[j] = 0, free
		}
	}
	for j := n; j < cols; j++ {
		tb.lower[j], tb.upper[j] = 0, math.Inf(1)
	}

	for i := 0; i < m; i++ {
		if len(lp.Rows[i]) != n {
			return nil, fmt.Errorf("simplex: row %d has %d coefficients, want %d", i, len(lp.Rows[i]), n)
		}
		row := make([]float64, cols)
		copy(row, lp.Rows[i])
		switch lp.Senses[i] {
		case milp.LessEqual:
			row[slackOf[i]] = 1
		case milp.GreaterEqual:
			row[slackOf[i]] = -1
		}
		resid := lp.RHS[i]
		for j := 0; j < n; j++ {
			resid -= lp.Rows[i][j] * tb.x[j]
		}
		if resid < 0 {
			for k := range row {
				row[k] = -row[k]
			}
			resid = -resid
		}
		art := artStart + i
		row[art] = 1
		tb.t[i] = row
		tb.basis[i] = art
		tb.state[art] = basic
		tb.x[art] = resid
	}

	// Phase one: drive the artificial variables to zero.
	phaseOne := make([]float64, cols)
	scale := 1.0
	for i := 0; i < m; i++ {
		phaseOne[artStart+i] = 1
		scale = math.Max(scale, math.Abs(lp.RHS[i]))
	}
	tb.setCosts(phaseOne)
	if _, err := tb.run(ctx); err != nil {
		return nil, err
	}
	infeasibility := 0.0
	for j := artStart; j < cols; j++ {
		infeasibility += tb.x[j]
	}
	if infeasibility > phaseOneTol*scale {
		return &milp.LPSolution{Status: milp.LPInfeasible}, nil
	}

	for j := artStart; j < cols; j++ {
		tb.upper[j] = 0
		if tb.state[j] == basic {
			tb.x[j] = 0
		} else {
			tb.x[j], tb.state[j] = 0, atLower
		}
	}

	// Phase two: optimise the real objective.
	phaseTwo := make([]float64, cols)
	copy(phaseTwo, lp.Cost)
	tb.setCosts(phaseTwo)
	tb.iter = 0
	status, err := tb.run(ctx)
	if err != nil {
		return nil, err
	}
	if status == milp.LPUnbounded {
		return &milp.LPSolution{Status: milp.LPUnbounded}, nil
	}

	x := make([]float64, n)
	copy(x, tb.x[:n])
	obj := lp.Constant
	for j, c := range lp.Cost {
		obj += c * x[j]
	}
	return &milp.LPSolution{Status: milp.LPOptimal, Objective: obj, X: x}, nil
}

func (tb *tableau) setCosts(c []float64) {
	copy(tb.d, c)
	for i := 0; i < tb.rows; i++ {
		cb := c[tb.basis[i]]
		if cb == 0 {
			continue
		}
		for j, v := range tb.t[i] {
			if v != 0 {
				tb.d[j] -= cb * v
			}
		}
	}
}

func (tb *tableau) run(ctx context.Context) (milp.LPStatus, error) {
	degenerate := 0
	for {
		if tb.iter%64 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if tb.iter >= tb.maxIter {
			return 0, ErrIterationLimit
		}
		tb.iter++

		bland := degenerate > degenerateLimit
		j, dir := tb.price(bland)
		if j < 0 {
			return milp.LPOptimal, nil
		}
		row, theta := tb.ratio(j, dir, bland)
		if math.IsInf(theta, 1) {
			return milp.LPUnbounded, nil
		}
		if theta <= 1e-12 {
			degenerate++
		} else {
			degenerate = 0
		}

		tb.move(j, dir, theta)
		if row < 0 {
			if dir > 0 {
				tb.x[j], tb.state[j] = tb.upper[j], atUpper
			} else {
				tb.x[j], tb.state[j] = tb.lower[j], atLower
			}
			continue
		}
		tb.pivot(row, j, dir)
	}
}

// price picks the entering column and its direction of travel: Dantzig's
// rule, or Bland's smallest index while the search is stalling.
func (tb *tableau) price(bland bool) (int, float64) {
	best, bestDir, bestScore := -1, 0.0, 0.0
	for j := 0; j < tb.cols; j++ {
		st := tb.state[j]
		if st == basic || tb.upper[j]-tb.lower[j] <= 0 {
			continue
		}
		dj := tb.d[j]
		var dir float64
		switch st {
		case atLower:
			if dj < -optimalityTol {
				dir = 1
			}
		case atUpper:
			if dj > optimalityTol {
				dir = -1
			}
		case free:
			if dj < -optimalityTol {
				dir = 1
			} else if dj > optimalityTol {
				dir = -1
			}
		}
		if dir == 0 {
			continue
		}
		if bland {
			return j, dir
		}
		if score := math.Abs(dj); score > bestScore {
			best, bestDir, bestScore = j, dir, score
		}
	}
	return best, bestDir
}

// ratio returns the row whose basic variable blocks the move first and the
// step length. Row -1 means the entering variable reaches its own opposite
// bound first.
func (tb *tableau) ratio(j int, dir float64, bland bool) (int, float64) {
	theta := tb.upper[j] - tb.lower[j]
	leave := -1
	leaveAlpha := 0.0
	for i := 0; i < tb.rows; i++ {
		alpha := dir * tb.t[i][j]
		if math.Abs(alpha) <= pivotTol {
			continue
		}
		b := tb.basis[i]
		var limit float64
		if alpha > 0 {
			if math.IsInf(tb.lower[b], -1) {
				continue
			}
			limit = (tb.x[b] - tb.lower[b]) / alpha
		} else {
			if math.IsInf(tb.upper[b], 1) {
				continue
			}
			limit = (tb.upper[b] - tb.x[b]) / -alpha
		}
		if limit < 0 {
			limit = 0
		}

		switch {
		case limit < theta-1e-12:
			theta, leave, leaveAlpha = limit, i, alpha
		case leave >= 0 && limit <= theta+1e-12:
			better := math.Abs(alpha) > math.Abs(leaveAlpha)
			if bland {
				better = b < tb.basis[leave]
			}
			if better {
				theta, leave, leaveAlpha = math.Min(theta, limit), i, alpha
			}
		}
	}
	return leave, theta
}

func (tb *tableau) move(j int, dir, theta float64) {
	if theta == 0 {
		return
	}
	step := dir * theta
	for i := 0; i < tb.rows; i++ {
		if a := tb.t[i][j]; a != 0 {
			tb.x[tb.basis[i]] -= step * a
		}
	}
	tb.x[j] += step
}

func (tb *tableau) pivot(r, j int, dir float64) {
	leaving := tb.basis[r]
	if dir*tb.t[r][j] > 0 {
		tb.x[leaving], tb.state[leaving] = tb.lower[leaving], atLower
	} else {
		tb.x[leaving], tb.state[leaving] = tb.upper[leaving], atUpper
	}
	tb.basis[r] = j
	tb.state[j] = basic

	pivotRow := tb.t[r]
	inv := 1 / pivotRow[j]
	for k, v := range pivotRow {
		if v != 0 {
			pivotRow[k] = v * inv
		}
	}
	pivotRow[j] = 1

	for i := 0; i < tb.rows; i++ {
		if i == r {
			continue
		}
		row := tb.t[i]
		f := row[j]
		if f == 0 {
			continue
		}
		for k, v := range pivotRow {
			if v != 0 {
				row[k] -= f * v
			}
		}
		row[j] = 0
	}

	if f := tb.d[j]; f != 0 {
		for k, v := range pivotRow {
			if v != 0 {
				tb.d[k] -= f * v
			}
		}
	}
	tb.d[j] = 0
}
