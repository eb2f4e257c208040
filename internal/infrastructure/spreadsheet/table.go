// Package spreadsheet reads ERP exports into positional string tables.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Table is a header row plus data rows. Cells are kept as strings; an absent
// cell reads as the empty string.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the column whose trimmed name equals name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if strings.TrimSpace(c) == name {
			return i, true
		}
	}
	return -1, false
}

// Cell returns the cell at (row, col) or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	return cellAt(t.Rows[row], col)
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// FromRecords builds a Table using records[headerRow] as the header.
// Rows above the header are dropped, column names are trimmed.
func FromRecords(records [][]string, headerRow int) (*Table, error) {
	if headerRow < 0 || headerRow >= len(records) {
		return nil, fmt.Errorf("header row %d out of range (%d rows)", headerRow, len(records))
	}

	header := records[headerRow]
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(c)
	}

	rows := make([][]string, 0, len(records)-headerRow-1)
	for _, r := range records[headerRow+1:] {
		row := make([]string, len(r))
		copy(row, r)
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// ReadFile loads the first sheet of an .xlsx, .xls or .csv file.
func ReadFile(path string, headerRow int) (*Table, error) {
	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	case ".xls":
		records, err = readXLS(path)
	case ".csv":
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet format: %s", path)
	}
	if err != nil {
		return nil, err
	}

	table, err := FromRecords(records, headerRow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return table, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows from %s: %w", path, err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls %s: %w", path, err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("xls %s has no sheets", path)
	}

	records := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		last := row.LastCol()
		cells := make([]string, last)
		for c := 0; c < last; c++ {
			cells[c] = row.Col(c)
		}
		records = append(records, cells)
	}
	return records, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(stripBOM(file))
	reader.Comma = detectComma(path)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read error: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// detectComma peeks at the first line: ERP and archive CSVs use ';'.
func detectComma(path string) rune {
	data, err := os.ReadFile(path)
	if err != nil {
		return ','
	}
	line, _, _ := strings.Cut(string(data), "\n")
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, _ := io.ReadFull(r, buf)
	if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
