// Package importer turns spreadsheet files into stored datasets.
//
// Supported sources are CSV files (one dataset per file, first record is
// the header) and XLSX workbooks (one dataset per non-empty sheet). A
// directory watcher can run alongside the server to import files dropped
// into a folder.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tabdb/tabdb/internal/models"
)

// datasetNameFromPath derives a dataset name from the file's stem.
func datasetNameFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if stem == "" {
		return "dataset"
	}
	return stem
}

// readCSV parses a CSV file into tabular data. The first record is the
// header and is required; data records are padded with empty strings or
// truncated so every row matches the header width.
func readCSV(path string) (models.TabularData, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.TabularData{}, fmt.Errorf("failed to open csv %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return models.TabularData{}, fmt.Errorf("csv %s: header is required", path)
	}
	if err != nil {
		return models.TabularData{}, fmt.Errorf("failed to read csv header from %s: %w", path, err)
	}
	if len(header) == 0 {
		return models.TabularData{}, fmt.Errorf("csv %s: header is required", path)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.TabularData{}, fmt.Errorf("failed to parse csv record in %s: %w", path, err)
		}
		row := make([]string, len(header))
		for colIdx := range header {
			if colIdx < len(record) {
				row[colIdx] = record[colIdx]
			}
		}
		rows = append(rows, row)
	}
	return models.TabularData{Columns: header, Rows: rows}, nil
}
