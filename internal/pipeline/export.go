package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
)

// ExportRowsToXLSX writes applied reconcile matches to a spreadsheet
// for manual review of what got annotated.
func ExportRowsToXLSX(rows []internal.ReconcileExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"transaction_id", "date", "amount_milliunits", "memo", "item_count", "payee",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.TransactionID)
		set(2, row.Date)
		set(3, row.AmountMilli)
		set(4, row.Memo)
		set(5, row.ItemCount)
		set(6, row.Payee)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
