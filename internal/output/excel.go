// internal/output/excel.go
package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/steltix/newsgrab/pkg/types"
)

const excelSheet = "Articles"

// ExcelWriter accumulates rows and saves the workbook on Close.
type ExcelWriter struct {
	filename string
	file     *excelize.File
	nextRow  int
}

// NewExcelWriter prepares a workbook with a header row.
func NewExcelWriter(filename string) (*ExcelWriter, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(excelSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(excelSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &ExcelWriter{filename: filename, file: f, nextRow: 2}, nil
}

func (w *ExcelWriter) Write(results []*types.ArticleResult) error {
	for _, r := range results {
		values := row(r)
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, w.nextRow)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(excelSheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", w.nextRow, err)
		}
		w.nextRow++
	}
	return nil
}

func (w *ExcelWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.SaveAs(w.filename)
	closeErr := w.file.Close()
	w.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
