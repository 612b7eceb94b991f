// Package compare diffs two finished report tables by program name.
package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/models"
)

// ColumnDiff is one column whose value differs between reports.
type ColumnDiff struct {
	Column string
	Old    string
	New    string
}

// Change pairs the old and new rows of a program whose attributes differ.
type Change struct {
	ProgramName string
	Old         []string
	New         []string
	Diffs       []ColumnDiff
}

// Result holds the three outcomes. Added and Removed keep their table's
// columns. Diagnostic is set, and everything else empty, when a report lacks
// a program-name column.
type Result struct {
	Added      models.Table
	Removed    models.Table
	Changed    []Change
	Diagnostic string
}

// Empty reports whether the reports are equivalent.
func (r Result) Empty() bool {
	return r.Added.Len() == 0 && r.Removed.Len() == 0 && len(r.Changed) == 0
}

// FindProgramColumn returns the first column whose header contains both
// "program" and "name", or -1.
func FindProgramColumn(columns []string) int {
	for i, c := range columns {
		lower := strings.ToLower(c)
		if strings.Contains(lower, "program") && strings.Contains(lower, "name") {
			return i
		}
	}
	return -1
}

// Reports compares oldT against newT. Neither table is modified.
func Reports(oldT, newT models.Table) Result {
	keyOld := FindProgramColumn(oldT.Columns)
	keyNew := FindProgramColumn(newT.Columns)
	if keyOld < 0 || keyNew < 0 {
		return Result{
			Added:   models.Table{Columns: append([]string(nil), newT.Columns...)},
			Removed: models.Table{Columns: append([]string(nil), oldT.Columns...)},
			Diagnostic: fmt.Sprintf("could not find a program name column; old report columns: %q; new report columns: %q",
				oldT.Columns, newT.Columns),
		}
	}

	oldRows := indexRows(oldT, keyOld)
	newRows := indexRows(newT, keyNew)

	res := Result{
		Added:   models.Table{Columns: append([]string(nil), newT.Columns...)},
		Removed: models.Table{Columns: append([]string(nil), oldT.Columns...)},
	}
	for _, row := range newT.Rows {
		if _, ok := oldRows[cell(row, keyNew)]; !ok {
			res.Added.Rows = append(res.Added.Rows, append([]string(nil), row...))
		}
	}
	for _, row := range oldT.Rows {
		if _, ok := newRows[cell(row, keyOld)]; !ok {
			res.Removed.Rows = append(res.Removed.Rows, append([]string(nil), row...))
		}
	}

	columns := unionColumns(oldT.Columns, newT.Columns)
	var common []string
	for name := range oldRows {
		if _, ok := newRows[name]; ok {
			common = append(common, name)
		}
	}
	sort.Strings(common)

	for _, name := range common {
		o, n := oldRows[name], newRows[name]
		var diffs []ColumnDiff
		for _, col := range columns {
			if sameColumn(col, oldT.Columns[keyOld]) || sameColumn(col, newT.Columns[keyNew]) {
				continue
			}
			ov := cell(o, oldT.ColumnIndex(col))
			nv := cell(n, newT.ColumnIndex(col))
			if ov != nv {
				diffs = append(diffs, ColumnDiff{Column: col, Old: ov, New: nv})
			}
		}
		if len(diffs) > 0 {
			res.Changed = append(res.Changed, Change{
				ProgramName: name,
				Old:         append([]string(nil), o...),
				New:         append([]string(nil), n...),
				Diffs:       diffs,
			})
		}
	}
	return res
}

// indexRows maps program name to its first row.
func indexRows(t models.Table, key int) map[string][]string {
	out := make(map[string][]string, len(t.Rows))
	for _, row := range t.Rows {
		name := cell(row, key)
		if _, dup := out[name]; !dup {
			out[name] = row
		}
	}
	return out
}

// unionColumns lists old's columns, then new's columns old lacks. Names are
// compared case-insensitively after trimming.
func unionColumns(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, cols := range [][]string{a, b} {
		for _, c := range cols {
			k := strings.ToLower(strings.TrimSpace(c))
			if !seen[k] {
				seen[k] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func sameColumn(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
