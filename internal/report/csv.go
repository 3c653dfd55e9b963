package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eugenenazirov/parade-allocator/internal/allocation"
	"github.com/eugenenazirov/parade-allocator/internal/formation"
	"github.com/eugenenazirov/parade-allocator/internal/parade"
)

// WriteCSV writes res in the sectioned tabular layout.
func WriteCSV(w io.Writer, res Result) error {
	if res.Allocation == nil {
		return errors.New("report: result has no allocation")
	}
	cw := csv.NewWriter(w)

	records := [][]string{
		{titleResults},
		{"Generated on", res.Generated.Format("2006-01-02 15:04:05")},
		{},
		{titleParameters},
		{"Parameter", "Value"},
	}
	records = append(records, parameterRows(res.Params)...)
	records = append(records, []string{}, []string{titleGroups}, []string{"Group", "Size", "Avoid Split"})
	records = append(records, groupRows(res.Groups)...)
	records = append(records, []string{}, []string{titleDetails}, detailsHeader)
	records = append(records, detailRows(res.Allocation)...)
	records = append(records, []string{}, []string{titleSummary})
	records = append(records, summaryRows(res)...)

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}

// Formation is what the drawer needs from a tabular result.
type Formation struct {
	RowSize     int
	Capacity    int
	Contingents []parade.Contingent
}

// ReadCSV parses a tabular result. Row size and capacity default to 5 and 90
// when the parameters section does not carry them.
func ReadCSV(r io.Reader) (*Formation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	out := &Formation{RowSize: formation.DefaultRowSize, Capacity: allocation.DefaultCapacity}
	var (
		section    string
		skipHeader bool
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", parade.ErrParse, err)
		}
		line, _ := reader.FieldPos(0)

		if len(record) == 1 {
			if title := strings.TrimSpace(record[0]); isSection(title) {
				section, skipHeader = title, true
				continue
			}
			if section != titleDetails && section != titleParameters {
				section = ""
				continue
			}
		}
		if skipHeader {
			skipHeader = false
			continue
		}

		switch section {
		case titleParameters:
			if err := parseParameter(out, record, line); err != nil {
				return nil, err
			}
		case titleDetails:
			c, err := parseDetail(record, line)
			if err != nil {
				return nil, err
			}
			out.Contingents = append(out.Contingents, c)
		}
	}
	return out, nil
}

func isSection(title string) bool {
	switch title {
	case titleParameters, titleGroups, titleDetails, titleSummary:
		return true
	}
	return false
}

func parseParameter(out *Formation, record []string, line int) error {
	if len(record) != 2 {
		return fmt.Errorf("%w: line %d: parameter rows have 2 columns, got %d", parade.ErrParse, line, len(record))
	}
	var target *int
	switch strings.TrimSpace(record[0]) {
	case labelRowSize:
		target = &out.RowSize
	case labelCapacity:
		target = &out.Capacity
	default:
		return nil
	}
	v, err := parsePositive(record[1])
	if err != nil {
		return fmt.Errorf("%w: line %d: %s: %v", parade.ErrParse, line, record[0], err)
	}
	*target = v
	return nil
}

func parseDetail(record []string, line int) (parade.Contingent, error) {
	if len(record) != len(detailsHeader) {
		return parade.Contingent{}, fmt.Errorf("%w: line %d: contingent rows have %d columns, got %d",
			parade.ErrParse, line, len(detailsHeader), len(record))
	}
	ints := make([]int, 0, 3)
	for _, idx := range []int{0, 1, 3} {
		v, err := strconv.Atoi(strings.TrimSpace(record[idx]))
		if err != nil {
			return parade.Contingent{}, fmt.Errorf("%w: line %d: %s %q is not an integer",
				parade.ErrParse, line, detailsHeader[idx], record[idx])
		}
		ints = append(ints, v)
	}
	ordinal, total, groupCount := ints[0], ints[1], ints[2]

	c, err := ParseComposition(record[2])
	if err != nil {
		return parade.Contingent{}, fmt.Errorf("line %d: contingent %d: %w", line, ordinal, err)
	}
	if c.Total() != total {
		return parade.Contingent{}, fmt.Errorf("%w: line %d: contingent %d totals %d but its groups sum to %d",
			parade.ErrParse, line, ordinal, total, c.Total())
	}
	if c.GroupCount() != groupCount {
		return parade.Contingent{}, fmt.Errorf("%w: line %d: contingent %d lists %d groups but declares %d",
			parade.ErrParse, line, ordinal, c.GroupCount(), groupCount)
	}
	return c, nil
}

// ParseComposition parses "A:78, B:12" into a contingent.
func ParseComposition(raw string) (parade.Contingent, error) {
	var assignments []parade.Assignment
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(part, " \t'\"")
		if part == "" {
			continue
		}
		label, count, ok := strings.Cut(part, ":")
		if !ok {
			return parade.Contingent{}, fmt.Errorf("%w: assignment %q is not label:count", parade.ErrParse, part)
		}
		label = strings.Trim(label, " \t'\"")
		n, err := strconv.Atoi(strings.Trim(count, " \t'\""))
		if err != nil || n <= 0 || label == "" {
			return parade.Contingent{}, fmt.Errorf("%w: assignment %q is not label:count", parade.ErrParse, part)
		}
		assignments = append(assignments, parade.Assignment{Group: label, Count: n})
	}
	if len(assignments) == 0 {
		return parade.Contingent{}, fmt.Errorf("%w: empty composition", parade.ErrParse)
	}
	return parade.NewContingent(assignments...), nil
}

func parsePositive(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%d is not positive", v)
	}
	return v, nil
}
