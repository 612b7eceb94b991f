package services

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Lllllllleong/catalogreport/internal/compare"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
)

// CompareOptions locate the data in both workbooks. FirstRow is the 1-based
// row holding the column headers; rows above it are skipped.
type CompareOptions struct {
	Sheet    string
	FirstRow int
}

func (o CompareOptions) skipRows() int {
	if o.FirstRow > 1 {
		return o.FirstRow - 1
	}
	return 0
}

// CompareWorkbooks reads two report workbooks and diffs them.
func CompareWorkbooks(oldR, newR io.Reader, opts CompareOptions, logger *slog.Logger) (compare.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	oldT, err := sheet.Decode(oldR, opts.Sheet, opts.skipRows())
	if err != nil {
		return compare.Result{}, fmt.Errorf("old report: %w", err)
	}
	newT, err := sheet.Decode(newR, opts.Sheet, opts.skipRows())
	if err != nil {
		return compare.Result{}, fmt.Errorf("new report: %w", err)
	}

	res := compare.Reports(oldT, newT)
	if res.Diagnostic != "" {
		logger.Warn("Reports could not be compared", "diagnostic", res.Diagnostic)
	} else {
		logger.Info("Reports compared.", "added", res.Added.Len(), "removed", res.Removed.Len(), "changed", len(res.Changed))
	}
	return res, nil
}

// NewCompareResponse renders a comparison for JSON clients.
func NewCompareResponse(res compare.Result) models.CompareResponse {
	resp := models.CompareResponse{
		Status:     "success",
		Diagnostic: res.Diagnostic,
		Added:      programNames(res.Added),
		Removed:    programNames(res.Removed),
		Changed:    []models.ChangedItem{},
	}
	if res.Diagnostic != "" {
		resp.Status = "incomparable"
	}
	for _, c := range res.Changed {
		item := models.ChangedItem{ProgramName: c.ProgramName}
		for _, d := range c.Diffs {
			item.Columns = append(item.Columns, models.ColumnDiff{Column: d.Column, Old: d.Old, New: d.New})
		}
		resp.Changed = append(resp.Changed, item)
	}
	return resp
}

func programNames(t models.Table) []string {
	names := []string{}
	key := compare.FindProgramColumn(t.Columns)
	if key < 0 {
		return names
	}
	for _, row := range t.Rows {
		names = append(names, t.Cell(row, key))
	}
	return names
}
