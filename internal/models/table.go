package models

import "strings"

// Table is a header row plus string cells, the shape spreadsheets are read
// into and written from.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of the column whose header equals name after
// trimming and case folding, or -1.
func (t Table) ColumnIndex(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, c := range t.Columns {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return i
		}
	}
	return -1
}

// Cell returns row[col] or "" when the row is short or col is negative.
func (t Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// Len is the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Clone returns a deep copy, so callers can transform tables without aliasing
// the caller's slices.
func (t Table) Clone() Table {
	out := Table{Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// Concat appends the rows of other, aligning them by column name. Columns only
// present in other are added at the end.
func (t Table) Concat(other Table) Table {
	out := t.Clone()
	index := make([]int, len(other.Columns))
	for i, c := range other.Columns {
		j := out.ColumnIndex(c)
		if j < 0 {
			out.Columns = append(out.Columns, c)
			j = len(out.Columns) - 1
		}
		index[i] = j
	}
	for i := range out.Rows {
		for len(out.Rows[i]) < len(out.Columns) {
			out.Rows[i] = append(out.Rows[i], "")
		}
	}
	for _, r := range other.Rows {
		row := make([]string, len(out.Columns))
		for i, v := range r {
			if i < len(index) {
				row[index[i]] = v
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
