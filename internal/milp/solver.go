package milp

import (
	"context"
	"errors"
	"time"
)

// Status is the outcome reported by a solver.
type Status int

const (
	StatusError Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	default:
		return "ERROR"
	}
}

// Usable reports whether the solution carries values callers may use.
func (s Status) Usable() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// ErrNoSolution is returned when the time limit expires before any feasible
// point was found.
var ErrNoSolution = errors.New("milp: time limit reached without a feasible solution")

// Solution is the result of a solve.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Nodes     int
	Elapsed   time.Duration
}

// Value returns the solved value of v.
func (s *Solution) Value(v Var) float64 {
	if s == nil || v.id >= len(s.Values) {
		return 0
	}
	return s.Values[v.id]
}

// Progress is a snapshot of a running solve.
type Progress struct {
	Elapsed      time.Duration
	Nodes        int
	HasIncumbent bool
	Incumbent    float64
	// Improved is set when this snapshot announces a new incumbent.
	Improved bool
}

// Observer receives progress from a running solve. Implementations must not
// block; they are called on the solving goroutine.
type Observer interface {
	OnProgress(Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

// OnProgress calls f(p).
func (f ObserverFunc) OnProgress(p Progress) { f(p) }

// Options tunes a single solve.
type Options struct {
	// TimeLimit bounds the search; zero means no limit.
	TimeLimit time.Duration
	Observer  Observer
	// Start is a complete assignment tried as the first incumbent. It is
	// ignored when its length does not match the model or it is infeasible.
	Start []float64
}

// Solver is implemented by MILP backends.
type Solver interface {
	Solve(ctx context.Context, m *Model, opts Options) (*Solution, error)
}
