package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// WriteXLSX writes records to the first sheet of a new workbook. The first
// record is styled bold when header is true.
func WriteXLSX(path string, records [][]string, header bool) error {
	f := excelize.NewFile()
	defer f.Close()

	for r, record := range records {
		for c, value := range record {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(defaultSheet, cell, value); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if header && len(records) > 0 && len(records[0]) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(records[0]), 1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellStyle(defaultSheet, "A1", last, style); err != nil {
			return fmt.Errorf("set header style: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes records separated by ';' with a UTF-8 BOM so spreadsheet
// applications configured for pt-BR open it correctly.
func WriteCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %s: %w", path, err)
	}
	defer file.Close()

	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(file)
	w.Comma = ';'
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	return file.Close()
}
