// Package seating lays out a contingent's head-count as a rectangular grid of
// seats with a fixed number of rows.
package seating

import "strings"

// Marker is the character used to draw an occupied seat.
const Marker = "x"

// Grid is a rows x columns occupancy matrix; true marks an occupied seat.
type Grid struct {
	Rows    int
	Columns int
	seats   [][]bool
}

// Generate returns the smallest grid with the given number of rows that holds
// count people. The first column is kept full; missing seats are taken from
// the second column onwards, back row first. A single-column grid loses its
// seats from the back row forward.
func Generate(count, rows int) Grid {
	if rows <= 0 {
		return Grid{}
	}
	if count < 0 {
		count = 0
	}

	columns := (count + rows - 1) / rows
	seats := make([][]bool, rows)
	for r := range seats {
		seats[r] = make([]bool, columns)
		for c := range seats[r] {
			seats[r][c] = true
		}
	}

	missing := rows*columns - count
	startCol := 1
	if columns == 1 {
		startCol = 0
	}
	for col := startCol; missing > 0 && col < columns; col++ {
		for r := rows - 1; r >= 0 && missing > 0; r-- {
			seats[r][col] = false
			missing--
		}
	}

	return Grid{Rows: rows, Columns: columns, seats: seats}
}

// Seat reports whether the seat at row r, column c is occupied.
func (g Grid) Seat(r, c int) bool {
	if r < 0 || r >= g.Rows || c < 0 || c >= g.Columns {
		return false
	}
	return g.seats[r][c]
}

// Occupied returns the number of occupied seats.
func (g Grid) Occupied() int {
	n := 0
	for _, row := range g.seats {
		for _, s := range row {
			if s {
				n++
			}
		}
	}
	return n
}

// Lines renders one line per seat row, occupied seats as marker and empty
// seats as a blank, columns separated by one space.
func (g Grid) Lines(marker string) []string {
	blank := strings.Repeat(" ", len(marker))
	lines := make([]string, g.Rows)
	cells := make([]string, g.Columns)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Columns; c++ {
			if g.seats[r][c] {
				cells[c] = marker
			} else {
				cells[c] = blank
			}
		}
		lines[r] = strings.Join(cells, " ")
	}
	return lines
}

func (g Grid) String() string {
	return strings.Join(g.Lines(Marker), "\n")
}
