package report

import (
	"fmt"
	"io"
	"strings"
)

// WriteSummary prints a human readable overview of res.
func WriteSummary(w io.Writer, res Result) error {
	var b strings.Builder
	people := 0
	for _, g := range res.Groups {
		people += g.Size
	}
	alloc := res.Allocation

	fmt.Fprintf(&b, "Total people: %d\n", people)
	fmt.Fprintf(&b, "Contingent capacity: %d\n", res.Params.Capacity)
	fmt.Fprintf(&b, "Solver status: %s\n", alloc.Status)
	fmt.Fprintf(&b, "Objective value: %.2f (lower = better)\n", alloc.Objective)
	fmt.Fprintf(&b, "(alpha=%g, beta=%g)\n\n", res.Params.Alpha, res.Params.Beta)

	for i, c := range alloc.Contingents {
		marker := ""
		if i < alloc.Preallocated {
			marker = " [preallocated]"
		}
		fmt.Fprintf(&b, "Contingent #%d: total=%d, #groups=%d%s\n", i+1, c.Total(), c.GroupCount(), marker)
		fmt.Fprintf(&b, "   -> %s\n", c.AssignmentString())
	}

	fmt.Fprintf(&b, "\nNumber of contingents used: %d\n", len(alloc.Contingents))
	fmt.Fprintf(&b, "Grand total assigned: %d\n", alloc.TotalPeople())

	_, err := io.WriteString(w, b.String())
	return err
}
