// Package report serialises allocation results: the tabular CSV file read
// back by the formation drawer, an XLSX workbook, a PDF of the rendered
// formation and the console summary.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/eugenenazirov/parade-allocator/internal/allocation"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// DefaultPrefix names result files.
const DefaultPrefix = "parade_allocation"

// Section titles of the tabular result.
const (
	titleResults    = "Parade Allocation Results"
	titleParameters = "Input Parameters"
	titleGroups     = "Input Group Sizes"
	titleDetails    = "Contingent Details"
	titleSummary    = "Summary Statistics"
)

// Parameter labels read back by ReadCSV.
const (
	labelRowSize  = "Contingent Row Size"
	labelCapacity = "Contingent Capacity"
)

var detailsHeader = []string{"Contingent #", "Total People", "Group Assignments", "Number of Groups"}

// Result is an allocation together with the inputs that produced it.
type Result struct {
	Params     allocation.Params
	Groups     []parade.Group
	Allocation *parade.Allocation
	Generated  time.Time
}

// FileName returns "<prefix>_YYYYMMDD_HHMMSS.<ext>".
func FileName(prefix, ext string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), ext)
}

func parameterRows(p allocation.Params) [][]string {
	fixed := "None"
	if p.FixNumContingents > 0 {
		fixed = strconv.Itoa(p.FixNumContingents)
	}
	return [][]string{
		{labelRowSize, strconv.Itoa(p.RowSize)},
		{labelCapacity, strconv.Itoa(p.Capacity)},
		{"Strict Min Capacity", strconv.Itoa(p.StrictMinCapacity)},
		{"Alpha", formatFloat(p.Alpha)},
		{"Beta", formatFloat(p.Beta)},
		{"Fixed Contingents", fixed},
		{"Time Limit", strconv.FormatFloat(p.TimeLimit.Seconds(), 'f', -1, 64)},
	}
}

func groupRows(groups []parade.Group) [][]string {
	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{g.Name, strconv.Itoa(g.Size), yesNo(g.AvoidSplit)}
	}
	return rows
}

func detailRows(alloc *parade.Allocation) [][]string {
	rows := make([][]string, len(alloc.Contingents))
	for i, c := range alloc.Contingents {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(c.Total()),
			c.AssignmentString(),
			strconv.Itoa(c.GroupCount()),
		}
	}
	return rows
}

func summaryRows(res Result) [][]string {
	people := 0
	for _, g := range res.Groups {
		people += g.Size
	}
	assigned := res.Allocation.TotalPeople()
	return [][]string{
		{"Objective Value", formatFloat(res.Allocation.Objective)},
		{"Solver Status", res.Allocation.Status},
		{"Total People", strconv.Itoa(people)},
		{"Total Contingents Used", strconv.Itoa(len(res.Allocation.Contingents))},
		{"Preallocated Contingents", strconv.Itoa(res.Allocation.Preallocated)},
		{"Total People Assigned", strconv.Itoa(assigned)},
		{"All Members Assigned", yesNo(assigned == people)},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
