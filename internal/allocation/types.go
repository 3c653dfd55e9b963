// Package allocation assigns groups of people to fixed-capacity contingents.
// Groups that must not be mixed are carved into full contingents up front;
// everything that remains is handed to a MILP solver that trades underfill
// against group mixing.
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// Defaults applied by callers when a setting is absent.
const (
	DefaultCapacity  = 90
	DefaultRowSize   = 5
	DefaultAlpha     = 1.0
	DefaultBeta      = 5.0
	DefaultTimeLimit = 60 * time.Second
)

// Params tunes one allocation run.
type Params struct {
	Capacity int
	RowSize  int
	// StrictMinCapacity is the smallest headcount a used contingent may hold; zero disables it.
	StrictMinCapacity int
	// Alpha weighs underfill and Beta weighs group mixing in the objective.
	Alpha float64
	Beta  float64
	// FixNumContingents requests an exact number of contingents; zero leaves it free.
	FixNumContingents int
	TimeLimit         time.Duration
	Observer          milp.Observer
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Capacity:  DefaultCapacity,
		RowSize:   DefaultRowSize,
		Alpha:     DefaultAlpha,
		Beta:      DefaultBeta,
		TimeLimit: DefaultTimeLimit,
	}
}

// Validate reports the first invalid setting.
func (p Params) Validate() error {
	switch {
	case p.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", parade.ErrConfiguration, p.Capacity)
	case p.RowSize <= 0:
		return fmt.Errorf("%w: contingent row size must be positive, got %d", parade.ErrConfiguration, p.RowSize)
	case p.RowSize > p.Capacity:
		return fmt.Errorf("%w: contingent row size %d exceeds capacity %d", parade.ErrConfiguration, p.RowSize, p.Capacity)
	case p.StrictMinCapacity < 0 || p.StrictMinCapacity > p.Capacity:
		return fmt.Errorf("%w: strict minimum capacity must be between 0 and %d, got %d",
			parade.ErrConfiguration, p.Capacity, p.StrictMinCapacity)
	case p.Alpha < 0 || p.Beta < 0:
		return fmt.Errorf("%w: alpha and beta must be non-negative", parade.ErrConfiguration)
	case p.FixNumContingents < 0:
		return fmt.Errorf("%w: fixed contingent count must not be negative, got %d", parade.ErrConfiguration, p.FixNumContingents)
	case p.TimeLimit < 0:
		return fmt.Errorf("%w: time limit must not be negative", parade.ErrConfiguration)
	}
	return nil
}

// ValidateGroups checks that every group has a unique name and a
// non-negative size.
func ValidateGroups(groups []parade.Group) error {
	if len(groups) == 0 {
		return fmt.Errorf("%w: at least one group is required", parade.ErrConfiguration)
	}
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("%w: group name must not be empty", parade.ErrConfiguration)
		}
		if _, dup := seen[g.Name]; dup {
			return fmt.Errorf("%w: duplicate group %q", parade.ErrConfiguration, g.Name)
		}
		seen[g.Name] = struct{}{}
		if g.Size < 0 {
			return fmt.Errorf("%w: group %q has negative size %d", parade.ErrConfiguration, g.Name, g.Size)
		}
	}
	return nil
}

// Allocator describes the behaviour required from an allocation engine.
type Allocator interface {
	Allocate(ctx context.Context, groups []parade.Group, params Params) (*parade.Allocation, error)
}
