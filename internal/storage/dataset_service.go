package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabdb/tabdb/internal/models"
)

// DatasetService handles dataset business logic.
type DatasetService struct {
	store *Store
}

// NewDatasetService creates a new dataset service.
func NewDatasetService(store *Store) *DatasetService {
	return &DatasetService{store: store}
}

// CreateDataset validates and persists a new dataset.
func (s *DatasetService) CreateDataset(ctx context.Context, name, sourcePath string, data models.TabularData) (models.DatasetID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("dataset name cannot be empty")
	}
	for i, row := range data.Rows {
		if len(row) != len(data.Columns) {
			return 0, fmt.Errorf("row %d has %d cells, expected %d: %w",
				i, len(row), len(data.Columns), ErrRowWidthMismatch)
		}
	}
	meta := models.NewDatasetMeta{Name: name, SourcePath: sourcePath}
	return s.store.CreateDataset(ctx, meta, data)
}

// ListDatasets returns dataset metadata, newest first.
func (s *DatasetService) ListDatasets(ctx context.Context, includeDeleted bool) ([]models.DatasetMeta, error) {
	return s.store.ListDatasets(ctx, includeDeleted)
}

// GetDataset returns the metadata of a single dataset.
func (s *DatasetService) GetDataset(ctx context.Context, id models.DatasetID) (*models.DatasetMeta, error) {
	datasets, err := s.store.ListDatasets(ctx, true)
	if err != nil {
		return nil, err
	}
	for i := range datasets {
		if datasets[i].ID == id {
			return &datasets[i], nil
		}
	}
	return nil, fmt.Errorf("dataset %d: %w", id, ErrDatasetNotFound)
}

// QueryPage runs a paginated query against a dataset.
func (s *DatasetService) QueryPage(ctx context.Context, q models.PageQuery) (*models.PageResult, error) {
	return s.store.QueryPage(ctx, q)
}

// ApplyEdits reconciles staged edits into a dataset. Added rows must
// match the dataset's column count so every stored row stays full-width.
func (s *DatasetService) ApplyEdits(ctx context.Context, id models.DatasetID, edits models.StagedEdits) error {
	if edits.Empty() {
		return nil
	}
	for key := range edits.Cells {
		if key.Row < 0 || key.Col < 0 {
			return fmt.Errorf("staged cell at (%d, %d) has negative coordinates", key.Row, key.Col)
		}
	}
	for _, row := range edits.DeletedRows {
		if row < 0 {
			return fmt.Errorf("deleted row index %d is negative", row)
		}
	}
	if len(edits.AddedRows) > 0 {
		columns, err := s.store.Columns(ctx, id)
		if err != nil {
			return err
		}
		for i, row := range edits.AddedRows {
			if len(row) != len(columns) {
				return fmt.Errorf("added row %d has %d cells, expected %d: %w",
					i, len(row), len(columns), ErrRowWidthMismatch)
			}
		}
	}
	return s.store.ApplyEdits(ctx, id, edits)
}

// RenameDataset changes a dataset's display name.
func (s *DatasetService) RenameDataset(ctx context.Context, id models.DatasetID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}
	return s.store.RenameDataset(ctx, id, name)
}

// SoftDeleteDataset hides a dataset without destroying its rows.
func (s *DatasetService) SoftDeleteDataset(ctx context.Context, id models.DatasetID) error {
	return s.store.SoftDeleteDataset(ctx, id)
}

// RestoreDataset brings a soft-deleted dataset back.
func (s *DatasetService) RestoreDataset(ctx context.Context, id models.DatasetID) error {
	return s.store.RestoreDataset(ctx, id)
}

// PurgeDataset permanently removes a dataset and all of its data.
func (s *DatasetService) PurgeDataset(ctx context.Context, id models.DatasetID) error {
	return s.store.PurgeDataset(ctx, id)
}

// ColumnVisibility returns the stored visibility overlay for a dataset.
func (s *DatasetService) ColumnVisibility(ctx context.Context, id models.DatasetID) (map[int64]bool, error) {
	return s.store.LoadColumnVisibility(ctx, id)
}

// SetColumnVisibility replaces the visibility overlay for a dataset.
func (s *DatasetService) SetColumnVisibility(ctx context.Context, id models.DatasetID, visibility map[int64]bool) error {
	for colIdx := range visibility {
		if colIdx < 0 {
			return fmt.Errorf("column index %d is negative", colIdx)
		}
	}
	return s.store.UpsertColumnVisibility(ctx, id, visibility)
}

// HoldingsFlags returns the holdings markers for all datasets.
func (s *DatasetService) HoldingsFlags(ctx context.Context) (map[models.DatasetID]bool, error) {
	return s.store.LoadHoldingsFlags(ctx)
}

// SetHoldingsFlag marks or unmarks a dataset as the holdings dataset.
func (s *DatasetService) SetHoldingsFlag(ctx context.Context, id models.DatasetID, isHoldings bool) error {
	return s.store.UpsertHoldingsFlag(ctx, id, isHoldings)
}
