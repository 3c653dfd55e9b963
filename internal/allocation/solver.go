package allocation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
	"github.com/eugenenazirov/parade-allocator/internal/milp/branchbound"
	"github.com/eugenenazirov/parade-allocator/internal/milp/simplex"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// BackendSimplex is the bounded dense simplex relaxer.
const BackendSimplex = "simplex"

// Backends lists the supported solver backends.
func Backends() []string {
	return []string{BackendSimplex}
}

// NewSolver returns a branch-and-bound solver whose node relaxations are
// computed by the named backend. An empty name selects the simplex backend.
func NewSolver(backend string, logger *zap.Logger) (milp.Solver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var relaxer milp.Relaxer
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSimplex:
		relaxer = simplex.New()
	default:
		return nil, fmt.Errorf("%w: unknown solver %q (want one of %s)",
			parade.ErrConfiguration, backend, strings.Join(Backends(), ", "))
	}
	return branchbound.New(relaxer, branchbound.WithLogger(logger.Named("milp"))), nil
}
