// Package sheet reads and writes report tables as xlsx workbooks.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/fileutil"
	"github.com/Lllllllleong/catalogreport/internal/models"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name reports are written to and read from.
const DefaultSheet = "Sheet1"

// highlightColor fills rows that need manual review.
const highlightColor = "FFFF00"

// ErrSheetRead wraps every failure to load a table from a workbook.
var ErrSheetRead = errors.New("failed to read sheet")

// Encode renders t as an xlsx workbook with a single DefaultSheet. Rows whose
// approval status is Manual Review, or that carry a flag, are filled yellow.
func Encode(t models.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	flagStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{highlightColor}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight style: %w", err)
	}

	if err := writeRow(f, 1, t.Columns); err != nil {
		return nil, err
	}
	if len(t.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err := f.SetCellStyle(DefaultSheet, "A1", last, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	status := t.ColumnIndex(ColApprovalStatus)
	flag := t.ColumnIndex(ColFlag)
	for i, row := range t.Rows {
		n := i + 2
		if err := writeRow(f, n, row); err != nil {
			return nil, err
		}
		if !needsReview(t, row, status, flag) || len(t.Columns) == 0 {
			continue
		}
		first, _ := excelize.CoordinatesToCellName(1, n)
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), n)
		if err := f.SetCellStyle(DefaultSheet, first, last, flagStyle); err != nil {
			return nil, fmt.Errorf("failed to highlight row %d: %w", n, err)
		}
	}

	for i, c := range t.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to name column %d: %w", i+1, err)
		}
		w, ok := columnWidths[c]
		if !ok {
			w = defaultWidth
		}
		if err := f.SetColWidth(DefaultSheet, name, name, w); err != nil {
			return nil, fmt.Errorf("failed to set width of %q: %w", c, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes t to path, replacing it via a temporary file in the same
// directory so readers never observe a partial workbook.
func WriteFile(path string, t models.Table) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data)
}

// Decode reads sheetName from an xlsx workbook. skipRows rows above the header
// are ignored, so a sheet whose data begins on row 5 has its header on row 4
// and skipRows 3. Blank rows are dropped and short rows padded to the header
// width. Data past the last header cell gets a column named after its letter,
// such as "Column Q".
func Decode(r io.Reader, sheetName string, skipRows int) (models.Table, error) {
	if sheetName == "" {
		sheetName = DefaultSheet
	}
	if skipRows < 0 {
		skipRows = 0
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.Table{}, fmt.Errorf("%w: %w", ErrSheetRead, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return models.Table{}, fmt.Errorf("%w: sheet %q not found (have %s)",
			ErrSheetRead, sheetName, strings.Join(f.GetSheetList(), ", "))
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return models.Table{}, fmt.Errorf("%w: %w", ErrSheetRead, err)
	}
	if len(rows) <= skipRows {
		return models.Table{}, fmt.Errorf("%w: sheet %q has %d rows, header expected on row %d",
			ErrSheetRead, sheetName, len(rows), skipRows+1)
	}

	t := models.Table{Columns: trimAll(rows[skipRows])}
	var data [][]string
	for _, row := range rows[skipRows+1:] {
		if !blank(row) {
			data = append(data, row)
		}
	}
	for _, row := range data {
		for len(t.Columns) < width(row) {
			name, err := excelize.ColumnNumberToName(len(t.Columns) + 1)
			if err != nil {
				return models.Table{}, fmt.Errorf("%w: %w", ErrSheetRead, err)
			}
			t.Columns = append(t.Columns, "Column "+name)
		}
	}
	for _, row := range data {
		cells := make([]string, len(t.Columns))
		copy(cells, row[:min(len(row), len(t.Columns))])
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// ReadFile opens path and decodes it with Decode.
func ReadFile(path, sheetName string, skipRows int) (models.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Table{}, fmt.Errorf("%w: %w", ErrSheetRead, err)
	}
	return Decode(bytes.NewReader(data), sheetName, skipRows)
}

func writeRow(f *excelize.File, n int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", n, err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", n, err)
	}
	return nil
}

func needsReview(t models.Table, row []string, status, flag int) bool {
	if strings.TrimSpace(t.Cell(row, flag)) != "" {
		return true
	}
	s, ok := models.ParseApprovalStatus(t.Cell(row, status))
	return ok && s == models.StatusManualReview
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// width is the row's length without trailing blank cells.
func width(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
