package milp

import "context"

// LinearProgram is the dense continuous relaxation of a Model:
//
//	minimize   Cost·x + Constant
//	subject to Rows[i]·x (Senses[i]) RHS[i]
//	           Lower <= x <= Upper
type LinearProgram struct {
	Cost     []float64
	Constant float64
	Rows     [][]float64
	Senses   []Sense
	RHS      []float64
	Lower    []float64
	Upper    []float64
}

// NumVars returns the number of structural variables.
func (lp *LinearProgram) NumVars() int { return len(lp.Cost) }

// WithBounds returns a copy of lp sharing its rows but using the given bounds.
func (lp *LinearProgram) WithBounds(lower, upper []float64) *LinearProgram {
	out := *lp
	out.Lower = lower
	out.Upper = upper
	return &out
}

// LPStatus is the outcome of a relaxation.
type LPStatus int

const (
	LPOptimal LPStatus = iota
	LPInfeasible
	LPUnbounded
)

func (s LPStatus) String() string {
	switch s {
	case LPOptimal:
		return "optimal"
	case LPInfeasible:
		return "infeasible"
	default:
		return "unbounded"
	}
}

// LPSolution is the result of solving a LinearProgram.
type LPSolution struct {
	Status    LPStatus
	Objective float64
	X         []float64
}

// Relaxer solves linear programs. Branch-and-bound backends call it once
// per node with tightened bounds.
type Relaxer interface {
	Relax(ctx context.Context, lp *LinearProgram) (*LPSolution, error)
}

// LinearProgram builds the dense relaxation of the model. Repeated terms on
// the same variable are merged.
func (m *Model) LinearProgram() *LinearProgram {
	n := len(m.vars)
	lp := &LinearProgram{
		Cost:     make([]float64, n),
		Constant: m.objective.Constant,
		Rows:     make([][]float64, len(m.constraints)),
		Senses:   make([]Sense, len(m.constraints)),
		RHS:      make([]float64, len(m.constraints)),
		Lower:    make([]float64, n),
		Upper:    make([]float64, n),
	}
	for _, t := range m.objective.Terms {
		lp.Cost[t.Var.id] += t.Coef
	}
	for i, c := range m.constraints {
		row := make([]float64, n)
		for _, t := range c.Terms {
			row[t.Var.id] += t.Coef
		}
		lp.Rows[i] = row
		lp.Senses[i] = c.Sense
		lp.RHS[i] = c.RHS
	}
	for i, v := range m.vars {
		lp.Lower[i] = v.Lower
		lp.Upper[i] = v.Upper
	}
	return lp
}

// IsIntegral reports whether variable i must take an integer value.
func (m *Model) IsIntegral(i int) bool {
	return m.vars[i].Kind != Continuous
}
