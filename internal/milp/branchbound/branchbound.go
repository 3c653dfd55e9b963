// Package branchbound solves mixed-integer programs by depth-first branch
// and bound over a pluggable LP relaxation.
package branchbound

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
)

const (
	defaultIntegralityTol = 1e-6
	defaultInterval       = time.Second
	feasibilityTol        = 1e-4
)

// ErrUnbounded is returned when a relaxation has no finite optimum.
var ErrUnbounded = errors.New("branchbound: relaxation is unbounded")

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger used for search diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIntegralityTolerance sets how far from an integer a value may be and
// still count as integral.
func WithIntegralityTolerance(tol float64) Option {
	return func(s *Solver) {
		if tol > 0 {
			s.intTol = tol
		}
	}
}

// WithProgressInterval sets how often observers receive heartbeat snapshots.
func WithProgressInterval(d time.Duration) Option {
	return func(s *Solver) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Solver implements milp.Solver.
type Solver struct {
	relaxer  milp.Relaxer
	logger   *zap.Logger
	intTol   float64
	interval time.Duration
	now      func() time.Time
}

// New returns a Solver using relaxer for node relaxations.
func New(relaxer milp.Relaxer, opts ...Option) *Solver {
	s := &Solver{
		relaxer:  relaxer,
		logger:   zap.NewNop(),
		intTol:   defaultIntegralityTol,
		interval: defaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type node struct {
	lower []float64
	upper []float64
	bound float64
}

type search struct {
	model    *milp.Model
	opts     milp.Options
	start    time.Time
	lastBeat time.Time

	nodes     int
	found     bool
	best      float64
	incumbent []float64
}

// Solve runs the search until the tree is exhausted, the time limit expires
// or ctx is cancelled.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Solution, error) {
	parent := ctx
	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	base := m.LinearProgram()
	n := base.NumVars()
	integral := make([]bool, n)
	lower := append([]float64(nil), base.Lower...)
	upper := append([]float64(nil), base.Upper...)
	for j := 0; j < n; j++ {
		integral[j] = m.IsIntegral(j)
		if integral[j] {
			lower[j] = math.Ceil(lower[j] - s.intTol)
			upper[j] = math.Floor(upper[j] + s.intTol)
		}
	}

	st := &search{model: m, opts: opts, start: s.now()}
	st.lastBeat = st.start
	if len(opts.Start) == n {
		s.accept(st, opts.Start, integral)
		s.logger.Debug("start point evaluated",
			zap.Bool("accepted", st.found),
			zap.Float64("objective", st.best),
		)
	}
	stack := []node{{lower: lower, upper: upper, bound: math.Inf(-1)}}
	timedOut := false

	for len(stack) > 0 {
		if ctx.Err() != nil {
			timedOut = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if st.prunes(nd.bound) {
			continue
		}

		st.nodes++
		s.heartbeat(st)
		relax, err := s.relaxer.Relax(ctx, base.WithBounds(nd.lower, nd.upper))
		if err != nil {
			if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				timedOut = true
				break
			}
			return nil, fmt.Errorf("branchbound: node %d: %w", st.nodes, err)
		}
		switch relax.Status {
		case milp.LPInfeasible:
			continue
		case milp.LPUnbounded:
			return &milp.Solution{Status: milp.StatusError, Nodes: st.nodes, Elapsed: s.now().Sub(st.start)}, ErrUnbounded
		}
		if st.prunes(relax.Objective) {
			continue
		}

		j := s.branchVariable(relax.X, integral)
		if j < 0 {
			s.accept(st, relax.X, integral)
			continue
		}

		v := relax.X[j]
		f := math.Floor(v)
		down := node{lower: nd.lower, upper: append([]float64(nil), nd.upper...), bound: relax.Objective}
		down.upper[j] = f
		up := node{lower: append([]float64(nil), nd.lower...), upper: nd.upper, bound: relax.Objective}
		up.lower[j] = f + 1
		// The child on the rounding side of v is explored first.
		if v-f >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if timedOut && parent.Err() != nil {
		return nil, parent.Err()
	}

	sol := &milp.Solution{Nodes: st.nodes, Elapsed: s.now().Sub(st.start)}
	switch {
	case st.found && !timedOut:
		sol.Status = milp.StatusOptimal
	case st.found:
		sol.Status = milp.StatusFeasible
	case !timedOut:
		sol.Status = milp.StatusInfeasible
	default:
		sol.Status = milp.StatusError
		s.logger.Warn("time limit reached without incumbent",
			zap.Int("nodes", st.nodes),
			zap.Duration("elapsed", sol.Elapsed),
		)
		return sol, milp.ErrNoSolution
	}
	if st.found {
		sol.Objective = st.best
		sol.Values = st.incumbent
	}

	s.logger.Info("branch and bound finished",
		zap.String("status", sol.Status.String()),
		zap.Int("nodes", st.nodes),
		zap.Duration("elapsed", sol.Elapsed),
		zap.Float64("objective", sol.Objective),
	)
	return sol, nil
}

func (st *search) prunes(bound float64) bool {
	if !st.found {
		return false
	}
	return bound >= st.best-1e-6*math.Max(1, math.Abs(st.best))
}

// branchVariable returns the integer variable whose value is furthest from
// an integer, or -1 when every integer variable is integral.
func (s *Solver) branchVariable(x []float64, integral []bool) int {
	best, bestFrac := -1, s.intTol
	for j, v := range x {
		if !integral[j] {
			continue
		}
		frac := math.Abs(v - math.Round(v))
		if frac > bestFrac {
			best, bestFrac = j, frac
		}
	}
	return best
}

func (s *Solver) accept(st *search, x []float64, integral []bool) {
	values := make([]float64, len(x))
	for j, v := range x {
		if integral[j] {
			v = math.Round(v)
		}
		values[j] = v
	}
	if viol := st.model.Violation(values); viol > feasibilityTol {
		s.logger.Debug("discarding rounded point", zap.Float64("violation", viol))
		return
	}
	obj := st.model.Objective(values)
	if st.found && obj >= st.best {
		return
	}
	st.found = true
	st.best = obj
	st.incumbent = values

	s.logger.Debug("new incumbent",
		zap.Float64("objective", obj),
		zap.Int("nodes", st.nodes),
	)
	s.notify(st, true)
}

func (s *Solver) heartbeat(st *search) {
	if now := s.now(); now.Sub(st.lastBeat) >= s.interval {
		s.notify(st, false)
	}
}

func (s *Solver) notify(st *search, improved bool) {
	now := s.now()
	st.lastBeat = now
	if st.opts.Observer == nil {
		return
	}
	st.opts.Observer.OnProgress(milp.Progress{
		Elapsed:      now.Sub(st.start),
		Nodes:        st.nodes,
		HasIncumbent: st.found,
		Incumbent:    st.best,
		Improved:     improved,
	})
}
