package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	sheetContingents = "Contingents"
	sheetSummary     = "Summary"
)

// WriteXLSX writes res as a workbook with a Contingents sheet and a Summary
// sheet holding the parameters, group sizes and statistics.
func WriteXLSX(w io.Writer, res Result) error {
	if res.Allocation == nil {
		return errors.New("report: result has no allocation")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetContingents); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	rows := [][]any{toRow(detailsHeader)}
	for i, c := range res.Allocation.Contingents {
		rows = append(rows, []any{i + 1, c.Total(), c.AssignmentString(), c.GroupCount()})
	}
	if err := writeRows(f, sheetContingents, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetContingents, "A", "B", 14); err != nil {
		return fmt.Errorf("report: column width: %w", err)
	}
	if err := f.SetColWidth(sheetContingents, "C", "C", 48); err != nil {
		return fmt.Errorf("report: column width: %w", err)
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("report: add sheet: %w", err)
	}
	summary := [][]any{{titleParameters}}
	for _, r := range parameterRows(res.Params) {
		summary = append(summary, toRow(r))
	}
	summary = append(summary, nil, []any{titleGroups}, []any{"Group", "Size", "Avoid Split"})
	for _, g := range res.Groups {
		summary = append(summary, []any{g.Name, g.Size, yesNo(g.AvoidSplit)})
	}
	summary = append(summary, nil, []any{titleSummary})
	for _, r := range summaryRows(res) {
		summary = append(summary, toRow(r))
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 28); err != nil {
		return fmt.Errorf("report: column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write xlsx: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("report: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// toRow keeps numeric cells numeric.
func toRow(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if n, err := strconv.Atoi(v); err == nil {
			out[i] = n
			continue
		}
		out[i] = v
	}
	return out
}
