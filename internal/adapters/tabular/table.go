// Package tabular reads the CSV and XLSX tables written by the fit
// framework into the numeric types of the domain packages.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrEmptyTable        = errors.New("table has no data rows")
	ErrMissingColumn     = errors.New("missing column")
	ErrParse             = errors.New("unparseable value")
	ErrMissingSheet      = errors.New("missing sheet")
)

// Table is a header row plus data rows, in file order.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// ReadTable loads a .csv file or the first sheet of a .xlsx file. The first
// row is the header; blank lines are skipped.
func ReadTable(path string) (*Table, error) {
	return ReadSheet(path, "")
}

// ReadSheet is ReadTable with a preferred sheet name for .xlsx files. A
// workbook with a single sheet is read whatever its name; in a workbook with
// several sheets the named one must exist. CSV files ignore the sheet.
func ReadSheet(path, sheet string) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	return newTable(path, rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrEmptyTable, path)
	}
	name := sheets[0]
	if sheet != "" && len(sheets) > 1 {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: %q in %s", ErrMissingSheet, sheet, path)
		}
		name = sheet
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}
	return rows, nil
}

func newTable(path string, rows [][]string) (*Table, error) {
	var data [][]string
	for _, r := range rows {
		if isBlank(r) {
			continue
		}
		data = append(data, r)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, path)
	}

	t := &Table{Path: path, index: make(map[string]int)}
	for i, h := range data[0] {
		h = strings.TrimSpace(h)
		t.Header = append(t.Header, h)
		t.index[h] = i
	}
	t.Rows = data[1:]
	return t, nil
}

func isBlank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Has reports whether the table has a column named col.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Require returns ErrMissingColumn naming the first absent column.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return fmt.Errorf("%w: %q in %s", ErrMissingColumn, c, t.Path)
		}
	}
	return nil
}

// String returns the trimmed cell at data row i, column col.
func (t *Table) String(i int, col string) (string, error) {
	j, ok := t.index[col]
	if !ok {
		return "", fmt.Errorf("%w: %q in %s", ErrMissingColumn, col, t.Path)
	}
	row := t.Rows[i]
	if j >= len(row) {
		return "", nil
	}
	return strings.TrimSpace(row[j]), nil
}

// Float parses the cell at data row i, column col. Row numbers in errors are
// 1-based file lines, counting the header.
func (t *Table) Float(i int, col string) (float64, error) {
	s, err := t.String(i, col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s line %d column %q: %q", ErrParse, t.Path, i+2, col, s)
	}
	return v, nil
}

// Column parses a whole numeric column.
func (t *Table) Column(col string) ([]float64, error) {
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		v, err := t.Float(i, col)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
