package formation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// Remap moves contingents to fixed ceremonial slots. positions maps an
// original 1-based ordinal to its 1-based final slot; contingents not named
// in the map fill the free slots in their original order. The content of each
// contingent is never modified.
func Remap(contingents []parade.Contingent, positions map[int]int) ([]parade.Contingent, error) {
	n := len(contingents)
	out := make([]parade.Contingent, n)
	if len(positions) == 0 {
		copy(out, contingents)
		return out, nil
	}

	sources := make([]int, 0, len(positions))
	for from := range positions {
		sources = append(sources, from)
	}
	slices.Sort(sources)

	filled := make([]bool, n)
	taken := make(map[int]int, len(positions))
	for _, from := range sources {
		to := positions[from]
		if from < 1 || from > n {
			return nil, fmt.Errorf("%w: position map references contingent %d, only %d exist", parade.ErrConfiguration, from, n)
		}
		if to < 1 || to > n {
			return nil, fmt.Errorf("%w: contingent %d mapped to slot %d outside 1..%d", parade.ErrConfiguration, from, to, n)
		}
		if prev, ok := taken[to]; ok {
			return nil, fmt.Errorf("%w: contingents %d and %d both mapped to slot %d", parade.ErrConfiguration, prev, from, to)
		}
		taken[to] = from
		out[to-1] = contingents[from-1]
		filled[to-1] = true
	}

	next := 1
	for slot := range out {
		if filled[slot] {
			continue
		}
		for {
			if _, placed := positions[next]; !placed {
				break
			}
			next++
		}
		out[slot] = contingents[next-1]
		next++
	}

	return out, nil
}

// ParsePositions parses a position map written as "from:to" pairs separated
// by commas, e.g. "1:6, 8:5".
func ParsePositions(raw string) (map[int]int, error) {
	positions := make(map[int]int)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fromRaw, toRaw, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: position %q must be written as from:to", parade.ErrConfiguration, part)
		}
		from, err := strconv.Atoi(strings.TrimSpace(fromRaw))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid contingent number %q", parade.ErrConfiguration, fromRaw)
		}
		to, err := strconv.Atoi(strings.TrimSpace(toRaw))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid slot %q", parade.ErrConfiguration, toRaw)
		}
		if _, dup := positions[from]; dup {
			return nil, fmt.Errorf("%w: contingent %d positioned twice", parade.ErrConfiguration, from)
		}
		positions[from] = to
	}
	return positions, nil
}
