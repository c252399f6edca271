package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/rickgao/twquote/internal/model"
)

// Sheet names in the workbook.
const (
	SheetSnapshots  = "snapshots"
	SheetLastQuotes = "last_quotes"
	SheetDaily      = "daily"

	defaultSheet = "Sheet1"
)

// writeWorkbook writes the xlsx artifact. The daily sheet is added only when
// bars exist.
func writeWorkbook(out io.Writer, quotes, latest []model.Quote, bars []model.DailyBar) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, SheetSnapshots); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetLastQuotes); err != nil {
		return fmt.Errorf("add sheet %s: %w", SheetLastQuotes, err)
	}
	if len(bars) > 0 {
		if _, err := f.NewSheet(SheetDaily); err != nil {
			return fmt.Errorf("add sheet %s: %w", SheetDaily, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSheet(f, SheetSnapshots, headerStyle, quoteHeader, quotes, quoteCells); err != nil {
		return err
	}
	if err := writeSheet(f, SheetLastQuotes, headerStyle, quoteHeader, latest, quoteCells); err != nil {
		return err
	}
	if len(bars) > 0 {
		if err := writeSheet(f, SheetDaily, headerStyle, barHeader, bars, barCells); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writeSheet streams a header row and one row per item into sheet.
func writeSheet[T any](f *excelize.File, sheet string, headerStyle int, header []string, rows []T, cells func(T) []cell) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet %s: %w", sheet, err)
	}

	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := sw.SetRow("A1", hdr, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	for i, r := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, xlsxRow(cells(r))); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet %s: %w", sheet, err)
	}
	return nil
}
