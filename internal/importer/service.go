package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tabdb/tabdb/internal/models"
	"github.com/tabdb/tabdb/internal/storage"
)

// ImportService turns files into stored datasets.
type ImportService struct {
	datasets *storage.DatasetService
}

// NewImportService creates a new import service.
func NewImportService(datasets *storage.DatasetService) *ImportService {
	return &ImportService{datasets: datasets}
}

// ImportFile imports a file based on its extension. CSV files produce a
// single dataset; XLSX workbooks produce one dataset per non-empty sheet.
func (s *ImportService) ImportFile(ctx context.Context, path string) ([]models.ImportResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		result, err := s.ImportCSV(ctx, path)
		if err != nil {
			return nil, err
		}
		return []models.ImportResult{*result}, nil
	case ".xlsx":
		return s.ImportXLSX(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// ImportCSV imports a CSV file as one dataset named after the file stem.
func (s *ImportService) ImportCSV(ctx context.Context, path string) (*models.ImportResult, error) {
	data, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	name := datasetNameFromPath(path)
	id, err := s.datasets.CreateDataset(ctx, name, path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store csv %s: %w", path, err)
	}
	return &models.ImportResult{
		DatasetID: id,
		Name:      name,
		RowCount:  int64(len(data.Rows)),
	}, nil
}

// ImportXLSX imports a workbook as one dataset per non-empty sheet. Each
// dataset is named after its sheet and its source path carries a #sheet
// suffix so the originating sheet stays identifiable.
func (s *ImportService) ImportXLSX(ctx context.Context, path string) ([]models.ImportResult, error) {
	sheets, err := readXLSX(path)
	if err != nil {
		return nil, err
	}

	results := make([]models.ImportResult, 0, len(sheets))
	for _, sheet := range sheets {
		id, err := s.datasets.CreateDataset(ctx, sheet.Name, fmt.Sprintf("%s#%s", path, sheet.Name), sheet.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to store sheet %s of %s: %w", sheet.Name, path, err)
		}
		results = append(results, models.ImportResult{
			DatasetID: id,
			Name:      sheet.Name,
			RowCount:  int64(len(sheet.Data.Rows)),
		})
	}
	return results, nil
}
