package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/statement-extractor/internal/extract"
)

// Sheet names of the workbook.
const (
	ItemsSheet  = "Items"
	ErrorsSheet = "Errors"
)

var errorHeader = []string{"kind", "file", "line", "bank", "document_type", "reason"}

// XLSXWriter writes a workbook with the items on one sheet and the errors
// on another.
type XLSXWriter struct{}

func (w *XLSXWriter) Write(out io.Writer, results []*extract.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ItemsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(ErrorsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	if err := setRow(f, ItemsSheet, 1, toCells(Header)); err != nil {
		return err
	}
	for i, row := range Rows(results) {
		if err := setRow(f, ItemsSheet, i+2, toCells(row.values())); err != nil {
			return err
		}
	}

	if err := setRow(f, ErrorsSheet, 1, toCells(errorHeader)); err != nil {
		return err
	}
	for i, e := range Errors(results) {
		cells := []any{string(e.Kind), e.Filename, e.Line, e.Bank, e.DocumentType, e.Reason}
		if err := setRow(f, ErrorsSheet, i+2, cells); err != nil {
			return err
		}
	}

	for _, sheet := range []string{ItemsSheet, ErrorsSheet} {
		if err := f.SetColWidth(sheet, "A", "R", 15); err != nil {
			return fmt.Errorf("failed to size columns: %w", err)
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
