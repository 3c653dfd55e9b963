package parade

import (
	"fmt"
	"strings"
)

// Policy describes how the engine treats a group when forming contingents.
type Policy int

const (
	// PolicyFree lets the optimizer split the group across any number of contingents.
	PolicyFree Policy = iota
	// PolicyChunked carves full contingents out of the group up front and keeps
	// the remainder together in a single contingent.
	PolicyChunked
)

func (p Policy) String() string {
	switch p {
	case PolicyFree:
		return "free"
	case PolicyChunked:
		return "chunked"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Group is a named population segment with a fixed head-count.
type Group struct {
	Name       string `json:"name"`
	Size       int    `json:"size"`
	AvoidSplit bool   `json:"avoidSplit"`
}

// Policy returns the allocation policy for the group. An empty group has
// nothing to keep together and is always free.
func (g Group) Policy() Policy {
	if g.AvoidSplit && g.Size > 0 {
		return PolicyChunked
	}
	return PolicyFree
}

// Assignment is the number of people a group contributes to one contingent.
type Assignment struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

// Contingent is an ordered composition of group assignments.
type Contingent struct {
	Assignments []Assignment `json:"assignments"`
}

// NewContingent builds a contingent from assignments, preserving their order.
func NewContingent(assignments ...Assignment) Contingent {
	out := make([]Assignment, len(assignments))
	copy(out, assignments)
	return Contingent{Assignments: out}
}

// Total returns the number of people in the contingent.
func (c Contingent) Total() int {
	total := 0
	for _, a := range c.Assignments {
		total += a.Count
	}
	return total
}

// GroupCount returns the number of distinct groups in the contingent.
func (c Contingent) GroupCount() int {
	return len(c.Assignments)
}

// Count returns how many people of the named group are in the contingent.
func (c Contingent) Count(group string) int {
	for _, a := range c.Assignments {
		if a.Group == group {
			return a.Count
		}
	}
	return 0
}

// Labels returns the group names in insertion order.
func (c Contingent) Labels() []string {
	labels := make([]string, len(c.Assignments))
	for i, a := range c.Assignments {
		labels[i] = a.Group
	}
	return labels
}

// Composition renders the contingent as "count label" pairs, e.g. "64 SI, 21 IDTI".
func (c Contingent) Composition() string {
	parts := make([]string, len(c.Assignments))
	for i, a := range c.Assignments {
		parts[i] = fmt.Sprintf("%d %s", a.Count, a.Group)
	}
	return strings.Join(parts, ", ")
}

// AssignmentString renders the contingent as "label:count" pairs, the form
// used in tabular results.
func (c Contingent) AssignmentString() string {
	parts := make([]string, len(c.Assignments))
	for i, a := range c.Assignments {
		parts[i] = fmt.Sprintf("%s:%d", a.Group, a.Count)
	}
	return strings.Join(parts, ", ")
}

// Allocation is the ordered result of one engine run.
type Allocation struct {
	Contingents []Contingent `json:"contingents"`
	Objective   float64      `json:"objective"`
	Status      string       `json:"status"`
	// Preallocated counts the leading contingents carved out before solving.
	Preallocated int `json:"preallocated"`
}

// TotalPeople returns the number of people seated across all contingents.
func (a *Allocation) TotalPeople() int {
	total := 0
	for _, c := range a.Contingents {
		total += c.Total()
	}
	return total
}

// GroupTotals sums each group's assigned count across all contingents.
func (a *Allocation) GroupTotals() map[string]int {
	totals := make(map[string]int)
	for _, c := range a.Contingents {
		for _, as := range c.Assignments {
			totals[as.Group] += as.Count
		}
	}
	return totals
}
