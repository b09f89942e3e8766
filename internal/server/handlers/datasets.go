// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"context"
	"errors"

	apperrors "github.com/tabdb/tabdb/internal/errors"
	"github.com/tabdb/tabdb/internal/models"
	"github.com/tabdb/tabdb/internal/server/dto"
	"github.com/tabdb/tabdb/internal/storage"
)

// DatasetHandler handles dataset-related HTTP requests.
type DatasetHandler struct {
	datasets *storage.DatasetService
}

// NewDatasetHandler creates a new dataset handler.
func NewDatasetHandler(datasets *storage.DatasetService) *DatasetHandler {
	return &DatasetHandler{datasets: datasets}
}

// queryError converts a storage query failure into an API error,
// downgrading contract violations to 400s.
func queryError(err error) error {
	switch {
	case errors.Is(err, storage.ErrInvalidPageSize):
		return apperrors.BadRequestWithCode(apperrors.ErrInvalidPageSize, err.Error())
	case errors.Is(err, storage.ErrColumnOutOfRange):
		return apperrors.BadRequestWithCode(apperrors.ErrColumnOutOfRange, err.Error())
	default:
		return apperrors.StorageError("query", err)
	}
}

// ListDatasets returns dataset metadata, newest first, annotated with
// holdings flags.
func (h *DatasetHandler) ListDatasets(ctx context.Context, req *dto.ListDatasetsRequest) (*dto.ListDatasetsResponse, error) {
	datasets, err := h.datasets.ListDatasets(ctx, req.IncludeDeleted)
	if err != nil {
		return nil, apperrors.StorageError("list datasets", err)
	}
	flags, err := h.datasets.HoldingsFlags(ctx)
	if err != nil {
		return nil, apperrors.StorageError("load holdings flags", err)
	}

	summaries := make([]dto.DatasetSummary, 0, len(datasets))
	for _, d := range datasets {
		summaries = append(summaries, dto.DatasetSummary{
			ID:         int64(d.ID),
			Name:       d.Name,
			SourcePath: d.SourcePath,
			RowCount:   d.RowCount,
			DeletedAt:  d.DeletedAt,
			ImportedAt: d.ImportedAt,
			IsHoldings: flags[d.ID],
		})
	}
	return &dto.ListDatasetsResponse{Datasets: summaries}, nil
}

// GetDataset returns the metadata of a single dataset.
func (h *DatasetHandler) GetDataset(ctx context.Context, req *dto.DatasetIDRequest) (*dto.DatasetSummary, error) {
	id := models.DatasetID(req.ID)
	meta, err := h.datasets.GetDataset(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrDatasetNotFound) {
			return nil, apperrors.NotFound("dataset").WithDetail("dataset_id", req.ID)
		}
		return nil, apperrors.StorageError("read dataset", err)
	}
	flags, err := h.datasets.HoldingsFlags(ctx)
	if err != nil {
		return nil, apperrors.StorageError("load holdings flags", err)
	}
	return &dto.DatasetSummary{
		ID:         int64(meta.ID),
		Name:       meta.Name,
		SourcePath: meta.SourcePath,
		RowCount:   meta.RowCount,
		DeletedAt:  meta.DeletedAt,
		ImportedAt: meta.ImportedAt,
		IsHoldings: flags[id],
	}, nil
}

// CreateDataset creates a dataset from inline tabular data.
func (h *DatasetHandler) CreateDataset(ctx context.Context, req *dto.CreateDatasetRequest) (*dto.CreateDatasetResponse, error) {
	id, err := h.datasets.CreateDataset(ctx, req.Name, req.SourcePath, models.TabularData{
		Columns: req.Columns,
		Rows:    req.Rows,
	})
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	return &dto.CreateDatasetResponse{ID: int64(id)}, nil
}

// GetPage returns one page of a dataset's filtered, sorted rows.
func (h *DatasetHandler) GetPage(ctx context.Context, req *dto.GetPageRequest) (*dto.GetPageResponse, error) {
	q, err := req.PageQuery()
	if err != nil {
		return nil, err
	}
	page, err := h.datasets.QueryPage(ctx, q)
	if err != nil {
		return nil, queryError(err)
	}
	return &dto.GetPageResponse{
		Columns:   page.Columns,
		Rows:      page.Rows,
		TotalRows: page.TotalRows,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}, nil
}

// ApplyEdits commits a batch of staged edits against a dataset.
func (h *DatasetHandler) ApplyEdits(ctx context.Context, req *dto.ApplyEditsRequest) (*dto.ApplyEditsResponse, error) {
	id := models.DatasetID(req.ID)
	if err := h.datasets.ApplyEdits(ctx, id, req.StagedEdits()); err != nil {
		if errors.Is(err, storage.ErrRowWidthMismatch) {
			return nil, apperrors.BadRequest(err.Error())
		}
		return nil, apperrors.StorageError("apply edits", err)
	}
	meta, err := h.datasets.GetDataset(ctx, id)
	if err != nil {
		return nil, apperrors.InternalWithError("Failed to read dataset after edits", err)
	}
	return &dto.ApplyEditsResponse{RowCount: meta.RowCount}, nil
}

// RenameDataset changes a dataset's display name.
func (h *DatasetHandler) RenameDataset(ctx context.Context, req *dto.RenameDatasetRequest) (*dto.EmptyResponse, error) {
	if err := h.datasets.RenameDataset(ctx, models.DatasetID(req.ID), req.Name); err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	return &dto.EmptyResponse{}, nil
}

// SoftDeleteDataset hides a dataset without destroying its rows.
func (h *DatasetHandler) SoftDeleteDataset(ctx context.Context, req *dto.DatasetIDRequest) (*dto.EmptyResponse, error) {
	if err := h.datasets.SoftDeleteDataset(ctx, models.DatasetID(req.ID)); err != nil {
		return nil, apperrors.StorageError("soft-delete dataset", err)
	}
	return &dto.EmptyResponse{}, nil
}

// RestoreDataset brings a soft-deleted dataset back.
func (h *DatasetHandler) RestoreDataset(ctx context.Context, req *dto.DatasetIDRequest) (*dto.EmptyResponse, error) {
	if err := h.datasets.RestoreDataset(ctx, models.DatasetID(req.ID)); err != nil {
		return nil, apperrors.StorageError("restore dataset", err)
	}
	return &dto.EmptyResponse{}, nil
}

// PurgeDataset permanently removes a dataset and all of its data.
func (h *DatasetHandler) PurgeDataset(ctx context.Context, req *dto.DatasetIDRequest) (*dto.EmptyResponse, error) {
	if err := h.datasets.PurgeDataset(ctx, models.DatasetID(req.ID)); err != nil {
		return nil, apperrors.StorageError("purge dataset", err)
	}
	return &dto.EmptyResponse{}, nil
}

// GetColumnVisibility returns the stored visibility overlay.
func (h *DatasetHandler) GetColumnVisibility(ctx context.Context, req *dto.DatasetIDRequest) (*dto.ColumnVisibilityResponse, error) {
	columns, err := h.datasets.ColumnVisibility(ctx, models.DatasetID(req.ID))
	if err != nil {
		return nil, apperrors.StorageError("load column visibility", err)
	}
	return &dto.ColumnVisibilityResponse{Columns: columns}, nil
}

// SetColumnVisibility replaces the visibility overlay.
func (h *DatasetHandler) SetColumnVisibility(ctx context.Context, req *dto.SetColumnVisibilityRequest) (*dto.EmptyResponse, error) {
	if err := h.datasets.SetColumnVisibility(ctx, models.DatasetID(req.ID), req.Columns); err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}
	return &dto.EmptyResponse{}, nil
}

// SetHoldingsFlag marks or unmarks a dataset as the holdings dataset.
func (h *DatasetHandler) SetHoldingsFlag(ctx context.Context, req *dto.SetHoldingsFlagRequest) (*dto.EmptyResponse, error) {
	if err := h.datasets.SetHoldingsFlag(ctx, models.DatasetID(req.ID), req.IsHoldings); err != nil {
		return nil, apperrors.StorageError("set holdings flag", err)
	}
	return &dto.EmptyResponse{}, nil
}
