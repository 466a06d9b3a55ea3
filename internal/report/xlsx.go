package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
)

const sheet = "Sheet1"

// ContentType is the MIME type of the workbook written by WriteXLSX.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headings = []string{"Medicine", "International barcode", "Batch barcode", "Expiry", "Stock (packs:units)", "Units"}

// Filename suggests a download name for the report.
func (r *Result) Filename() string {
	return fmt.Sprintf("%s-%s.xlsx", r.Kind, r.GeneratedAt.Format("20060102"))
}

// WriteXLSX renders the report as a single-sheet workbook.
func WriteXLSX(w io.Writer, r *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}

		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("writing heading: %w", err)
		}
	}

	for i, b := range r.Batches {
		row := i + 2

		var name, code string
		if b.Medicine != nil {
			name, code = b.Medicine.Name, b.Medicine.InternationalBarcode
		}

		values := []any{name, code, b.Barcode, catalog.FormatExpiryMonth(b.ExpiryDate), b.StockPackets(), b.StockUnits}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}

			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
		}
	}

	if err := f.SetSheetName(sheet, r.Kind.Title()); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}

	return nil
}
