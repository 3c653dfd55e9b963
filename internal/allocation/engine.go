package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// Engine chains chunking, model building, solving and extraction.
type Engine struct {
	solver milp.Solver
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Engine solving with solver.
func New(solver milp.Solver, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{solver: solver, logger: logger, now: time.Now}
}

// Allocate assigns every member of groups to a contingent.
func (e *Engine) Allocate(ctx context.Context, groups []parade.Group, params Params) (*parade.Allocation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateGroups(groups); err != nil {
		return nil, err
	}
	start := e.now()

	preallocated, residual := Chunk(groups, params.Capacity)
	target := residualTarget(params.FixNumContingents, len(preallocated))
	people := 0
	for _, g := range residual {
		people += g.Size
	}
	e.logger.Info("pre-allocation complete",
		zap.Int("preallocated", len(preallocated)),
		zap.Int("residual_groups", len(residual)),
		zap.Int("residual_people", people),
		zap.Int("target", target),
	)
	if params.FixNumContingents > 0 && len(preallocated) > params.FixNumContingents {
		e.logger.Warn("pre-allocation exceeds the requested contingent count",
			zap.Int("requested", params.FixNumContingents),
			zap.Int("preallocated", len(preallocated)),
		)
	}

	if people == 0 {
		if target > 0 {
			return nil, fmt.Errorf("%w: %d contingents requested but only %d can be formed",
				parade.ErrModelInfeasible, params.FixNumContingents, len(preallocated))
		}
		alloc := &parade.Allocation{
			Contingents:  append([]parade.Contingent(nil), preallocated...),
			Status:       milp.StatusOptimal.String(),
			Preallocated: len(preallocated),
		}
		if err := Verify(groups, alloc, params); err != nil {
			return nil, err
		}
		return alloc, nil
	}

	model, err := BuildModel(residual, params, target)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("model built",
		zap.Int("variables", model.Program.NumVars()),
		zap.Int("constraints", model.Program.NumConstraints()),
		zap.Int("candidates", model.Candidates),
	)

	seed := greedyStart(model, target)
	if seed != nil {
		e.logger.Debug("greedy packing supplied as start point",
			zap.Float64("objective", model.Program.Objective(seed)),
		)
	}

	sol, err := e.solver.Solve(ctx, model.Program, milp.Options{
		TimeLimit: params.TimeLimit,
		Observer:  params.Observer,
		Start:     seed,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", parade.ErrSolver, err)
	}
	switch sol.Status {
	case milp.StatusInfeasible:
		return nil, fmt.Errorf("%w: no assignment of %d people fits %d candidate contingents of capacity %d",
			parade.ErrModelInfeasible, people, model.Candidates, params.Capacity)
	case milp.StatusError:
		return nil, fmt.Errorf("%w: backend reported %s", parade.ErrSolver, sol.Status)
	}

	alloc := Extract(model, sol, preallocated)
	if err := Verify(groups, alloc, params); err != nil {
		return nil, err
	}

	e.logger.Info("allocation complete",
		zap.String("status", alloc.Status),
		zap.Float64("objective", alloc.Objective),
		zap.Int("contingents", len(alloc.Contingents)),
		zap.Int("nodes", sol.Nodes),
		zap.Duration("elapsed", e.now().Sub(start)),
	)
	return alloc, nil
}

// Verify checks an allocation against the groups it was built from: every
// member is seated exactly once, solver-built contingents respect the
// capacity bounds and each chunked remainder sits whole in a contingent
// sized to full seat rows.
func Verify(groups []parade.Group, alloc *parade.Allocation, params Params) error {
	totals := alloc.GroupTotals()
	for _, g := range groups {
		if totals[g.Name] != g.Size {
			return fmt.Errorf("%w: group %q has %d of %d members assigned",
				parade.ErrSolver, g.Name, totals[g.Name], g.Size)
		}
		delete(totals, g.Name)
	}
	if len(totals) > 0 {
		return fmt.Errorf("%w: allocation contains %d unknown groups", parade.ErrSolver, len(totals))
	}

	chunked := make(map[string]bool)
	for _, g := range groups {
		if g.Policy() == parade.PolicyChunked && g.Size%params.Capacity != 0 {
			chunked[g.Name] = true
		}
	}
	seen := make(map[string]int)
	for idx, c := range alloc.Contingents {
		if idx < alloc.Preallocated {
			continue
		}
		total := c.Total()
		if total > params.Capacity {
			return fmt.Errorf("%w: contingent %d holds %d people, capacity is %d",
				parade.ErrSolver, idx+1, total, params.Capacity)
		}
		if params.StrictMinCapacity > 0 && total < params.StrictMinCapacity {
			return fmt.Errorf("%w: contingent %d holds %d people, minimum is %d",
				parade.ErrSolver, idx+1, total, params.StrictMinCapacity)
		}
		for _, a := range c.Assignments {
			if !chunked[a.Group] {
				continue
			}
			seen[a.Group]++
			if total%params.RowSize != 0 {
				return fmt.Errorf("%w: contingent %d with group %q holds %d people, not a multiple of %d",
					parade.ErrSolver, idx+1, a.Group, total, params.RowSize)
			}
		}
	}
	for name := range chunked {
		if seen[name] != 1 {
			return fmt.Errorf("%w: group %q spans %d contingents", parade.ErrSolver, name, seen[name])
		}
	}
	return nil
}
