package parade

import "errors"

var (
	// ErrConfiguration is returned when required settings are missing, malformed or conflicting.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrModelInfeasible is returned when the constraint set admits no allocation.
	ErrModelInfeasible = errors.New("allocation model is infeasible")
	// ErrSolver is returned when the solving backend fails or returns an unusable answer.
	ErrSolver = errors.New("solver failure")
	// ErrParse is returned when tabular input cannot be parsed.
	ErrParse = errors.New("malformed tabular input")
)
