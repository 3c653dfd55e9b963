package allocation

import (
	"math"

	"github.com/eugenenazirov/parade-allocator/internal/milp"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// Extract turns solved values into contingents. Pre-allocated contingents
// come first; empty candidates are dropped and only groups with a positive
// count are kept, in residual order.
func Extract(m *Model, sol *milp.Solution, preallocated []parade.Contingent) *parade.Allocation {
	out := &parade.Allocation{
		Contingents:  make([]parade.Contingent, 0, len(preallocated)+m.Candidates),
		Objective:    sol.Objective,
		Status:       sol.Status.String(),
		Preallocated: len(preallocated),
	}
	out.Contingents = append(out.Contingents, preallocated...)

	for c := 0; c < m.Candidates; c++ {
		var assignments []parade.Assignment
		for i, g := range m.Groups {
			n := int(math.Round(sol.Value(m.X[i][c])))
			if n > 0 {
				assignments = append(assignments, parade.Assignment{Group: g.Name, Count: n})
			}
		}
		if len(assignments) == 0 {
			continue
		}
		out.Contingents = append(out.Contingents, parade.NewContingent(assignments...))
	}
	return out
}
