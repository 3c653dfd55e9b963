package allocation

import (
	"slices"

	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// packing is a candidate assignment: counts[b][i] people of residual group i
// sit in contingent b.
type packing struct {
	counts [][]int
	totals []int
	groups int
}

func (p *packing) open() int {
	p.counts = append(p.counts, make([]int, p.groups))
	p.totals = append(p.totals, 0)
	return len(p.totals) - 1
}

func (p *packing) put(b, i, n int) {
	p.counts[b][i] += n
	p.totals[b] += n
}

// greedyStart packs the residual groups without search and returns the model
// values of that packing, or nil when it uses more contingents than the model
// offers or misses the fixed target.
//
// Free groups first fill whole contingents on their own. Chunked groups go
// first-fit decreasing into shared contingents that are then topped up with
// free members to a whole number of seat rows. The free leftovers, largest
// first, are poured into fresh contingents one after another, so at most
// ceil(leftovers/capacity) of them are opened.
func greedyStart(m *Model, target int) []float64 {
	capacity, row := m.params.Capacity, m.params.RowSize
	remaining := make([]int, len(m.Groups))
	var free, chunked []int
	for i, g := range m.Groups {
		remaining[i] = g.Size
		if g.Policy() == parade.PolicyChunked {
			chunked = append(chunked, i)
		} else {
			free = append(free, i)
		}
	}
	bySize := func(a, b int) int { return remaining[b] - remaining[a] }
	slices.SortStableFunc(free, bySize)
	slices.SortStableFunc(chunked, bySize)

	p := &packing{groups: len(m.Groups)}
	for _, i := range free {
		for remaining[i] >= capacity {
			p.put(p.open(), i, capacity)
			remaining[i] -= capacity
		}
	}

	var shared []int
	for _, i := range chunked {
		placed := false
		for _, b := range shared {
			if roundUp(p.totals[b]+remaining[i], row) <= capacity {
				p.put(b, i, remaining[i])
				placed = true
				break
			}
		}
		if !placed {
			if roundUp(remaining[i], row) > capacity {
				return nil
			}
			b := p.open()
			p.put(b, i, remaining[i])
			shared = append(shared, b)
		}
		remaining[i] = 0
	}
	for _, b := range shared {
		need := roundUp(p.totals[b], row) - p.totals[b]
		for _, i := range free {
			if need == 0 {
				break
			}
			take := min(need, remaining[i])
			if take > 0 {
				p.put(b, i, take)
				remaining[i] -= take
				need -= take
			}
		}
		if need > 0 {
			return nil
		}
	}

	slices.SortStableFunc(free, bySize)
	current := -1
	for _, i := range free {
		for remaining[i] > 0 {
			if current < 0 || p.totals[current] == capacity {
				current = p.open()
			}
			take := min(remaining[i], capacity-p.totals[current])
			p.put(current, i, take)
			remaining[i] -= take
		}
	}

	used := len(p.totals)
	if used > m.Candidates || (target >= 0 && used != target) {
		return nil
	}
	return p.values(m)
}

func (p *packing) values(m *Model) []float64 {
	values := make([]float64, m.Program.NumVars())
	for b, counts := range p.counts {
		values[m.Z[b].Index()] = 1
		for i, n := range counts {
			if n == 0 {
				continue
			}
			values[m.X[i][b].Index()] = float64(n)
			values[m.Y[i][b].Index()] = 1
			if aux, ok := m.M[i]; ok {
				values[aux[b].Index()] = float64(p.totals[b] / m.params.RowSize)
			}
		}
	}
	return values
}

func roundUp(n, step int) int {
	return (n + step - 1) / step * step
}
