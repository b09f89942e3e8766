package importer

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/tabdb/tabdb/internal/models"
)

// sheetData is one worksheet parsed into tabular data, named after the
// sheet it came from.
type sheetData struct {
	Name string
	Data models.TabularData
}

// readXLSX parses a workbook into one tabular dataset per non-empty
// sheet. The first row of each sheet is its header; data rows are padded
// or truncated to the header width. Sheets without any rows are skipped.
func readXLSX(path string) ([]sheetData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx %s: %w", path, err)
	}
	defer f.Close()

	var sheets []sheetData
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s of %s: %w", sheet, path, err)
		}
		if len(rows) == 0 || len(rows[0]) == 0 {
			continue
		}

		header := rows[0]
		data := make([][]string, 0, len(rows)-1)
		for _, record := range rows[1:] {
			row := make([]string, len(header))
			for colIdx := range header {
				if colIdx < len(record) {
					row[colIdx] = record[colIdx]
				}
			}
			data = append(data, row)
		}
		sheets = append(sheets, sheetData{
			Name: sheet,
			Data: models.TabularData{Columns: header, Rows: data},
		})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx %s: no sheet with a header row", path)
	}
	return sheets, nil
}
