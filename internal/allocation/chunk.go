package allocation

import "github.com/eugenenazirov/parade-allocator/internal/parade"

// Chunk carves full single-group contingents out of every chunked group and
// returns them together with the groups left for the optimizer. A chunked
// group keeps its remainder, if any, in the residual set; free groups pass
// through whole. The residual keeps the input order.
func Chunk(groups []parade.Group, capacity int) ([]parade.Contingent, []parade.Group) {
	var (
		full     []parade.Contingent
		residual = make([]parade.Group, 0, len(groups))
	)
	for _, g := range groups {
		if g.Policy() != parade.PolicyChunked || capacity <= 0 {
			residual = append(residual, g)
			continue
		}
		remaining := g.Size
		for remaining >= capacity {
			full = append(full, parade.NewContingent(parade.Assignment{Group: g.Name, Count: capacity}))
			remaining -= capacity
		}
		if remaining > 0 {
			g.Size = remaining
			residual = append(residual, g)
		}
	}
	return full, residual
}

// residualTarget reduces a requested contingent count by the contingents
// already carved out. It returns -1 when no count was requested.
func residualTarget(requested, preallocated int) int {
	if requested <= 0 {
		return -1
	}
	return max(requested-preallocated, 0)
}
