package handlers

import (
	"context"

	apperrors "github.com/tabdb/tabdb/internal/errors"
	"github.com/tabdb/tabdb/internal/importer"
	"github.com/tabdb/tabdb/internal/server/dto"
)

// ImportHandler handles file import requests.
type ImportHandler struct {
	imports *importer.ImportService
}

// NewImportHandler creates a new import handler.
func NewImportHandler(imports *importer.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Import imports a spreadsheet file from the server's filesystem.
func (h *ImportHandler) Import(ctx context.Context, req *dto.ImportRequest) (*dto.ImportResponse, error) {
	results, err := h.imports.ImportFile(ctx, req.Path)
	if err != nil {
		return nil, apperrors.BadRequestWithCode(apperrors.ErrImportFailed, err.Error())
	}

	datasets := make([]dto.ImportedDataset, 0, len(results))
	for _, r := range results {
		datasets = append(datasets, dto.ImportedDataset{
			ID:       int64(r.DatasetID),
			Name:     r.Name,
			RowCount: r.RowCount,
		})
	}
	return &dto.ImportResponse{Datasets: datasets}, nil
}
