// Request and response types for the dataset API.

package dto

import (
	"strconv"

	apperrors "github.com/tabdb/tabdb/internal/errors"
	"github.com/tabdb/tabdb/internal/models"
)

// ListDatasetsRequest lists dataset metadata.
type ListDatasetsRequest struct {
	IncludeDeleted bool `query:"include_deleted"`
}

func (r *ListDatasetsRequest) Validate() error { return nil }

// DatasetSummary is the listing-level view of one dataset.
type DatasetSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	RowCount   int64  `json:"row_count"`
	DeletedAt  string `json:"deleted_at,omitempty"`
	ImportedAt string `json:"imported_at"`
	IsHoldings bool   `json:"is_holdings"`
}

// ListDatasetsResponse holds the dataset listing.
type ListDatasetsResponse struct {
	Datasets []DatasetSummary `json:"datasets"`
}

// CreateDatasetRequest creates a dataset from inline tabular data.
type CreateDatasetRequest struct {
	Name       string     `json:"name"`
	SourcePath string     `json:"source_path"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
}

func (r *CreateDatasetRequest) Validate() error {
	if r.Name == "" {
		return apperrors.MissingField("name")
	}
	if len(r.Columns) == 0 {
		return apperrors.MissingField("columns")
	}
	return nil
}

// CreateDatasetResponse reports the new dataset's id.
type CreateDatasetResponse struct {
	ID int64 `json:"id"`
}

// GetPageRequest reads one page of a dataset.
//
// SortColumn and FilterColumn arrive as strings so that "no sort" is
// distinguishable from sorting by column 0.
type GetPageRequest struct {
	ID            int64  `path:"id"`
	Page          int64  `query:"page"`
	PageSize      int64  `query:"page_size"`
	Search        string `query:"search"`
	FilterColumn  string `query:"filter_column"`
	FilterTerm    string `query:"filter_term"`
	SortColumn    string `query:"sort_column"`
	SortDirection string `query:"sort_direction"`
}

const defaultPageSize = 50

func (r *GetPageRequest) Validate() error {
	if r.PageSize == 0 {
		r.PageSize = defaultPageSize
	}
	if r.SortDirection != "" &&
		r.SortDirection != string(models.SortAsc) &&
		r.SortDirection != string(models.SortDesc) {
		return apperrors.BadRequestWithCode(apperrors.ErrInvalidFormat,
			"sort_direction must be asc or desc")
	}
	return nil
}

// PageQuery converts the request into a storage query.
func (r *GetPageRequest) PageQuery() (models.PageQuery, error) {
	q := models.PageQuery{
		DatasetID:    models.DatasetID(r.ID),
		Page:         r.Page,
		PageSize:     r.PageSize,
		GlobalSearch: r.Search,
	}
	if r.FilterColumn != "" {
		col, err := strconv.ParseInt(r.FilterColumn, 10, 64)
		if err != nil {
			return q, apperrors.BadRequestWithCode(apperrors.ErrInvalidFormat,
				"filter_column must be an integer")
		}
		q.ColumnFilter = &models.ColumnFilter{Column: col, Term: r.FilterTerm}
	}
	if r.SortColumn != "" {
		col, err := strconv.ParseInt(r.SortColumn, 10, 64)
		if err != nil {
			return q, apperrors.BadRequestWithCode(apperrors.ErrInvalidFormat,
				"sort_column must be an integer")
		}
		direction := models.SortAsc
		if r.SortDirection == string(models.SortDesc) {
			direction = models.SortDesc
		}
		q.Sort = &models.SortSpec{Column: col, Direction: direction}
	}
	return q, nil
}

// GetPageResponse is one page of rows.
type GetPageResponse struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int64      `json:"total_rows"`
	Page      int64      `json:"page"`
	PageSize  int64      `json:"page_size"`
}

// CellEdit is one staged cell overwrite.
type CellEdit struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// ApplyEditsRequest commits a batch of staged edits.
type ApplyEditsRequest struct {
	ID          int64      `path:"id"`
	Cells       []CellEdit `json:"cells"`
	DeletedRows []int      `json:"deleted_rows"`
	AddedRows   [][]string `json:"added_rows"`
}

func (r *ApplyEditsRequest) Validate() error { return nil }

// StagedEdits converts the request into the storage representation.
func (r *ApplyEditsRequest) StagedEdits() models.StagedEdits {
	edits := models.StagedEdits{
		Cells:       make(map[models.CellKey]string, len(r.Cells)),
		DeletedRows: r.DeletedRows,
		AddedRows:   r.AddedRows,
	}
	for _, c := range r.Cells {
		edits.Cells[models.CellKey{Row: c.Row, Col: c.Col, Column: c.Column}] = c.Value
	}
	return edits
}

// ApplyEditsResponse reports the post-commit row count.
type ApplyEditsResponse struct {
	RowCount int64 `json:"row_count"`
}

// RenameDatasetRequest changes a dataset's display name.
type RenameDatasetRequest struct {
	ID   int64  `path:"id"`
	Name string `json:"name"`
}

func (r *RenameDatasetRequest) Validate() error {
	if r.Name == "" {
		return apperrors.MissingField("name")
	}
	return nil
}

// DatasetIDRequest addresses one dataset by path id.
type DatasetIDRequest struct {
	ID int64 `path:"id"`
}

func (r *DatasetIDRequest) Validate() error { return nil }

// EmptyResponse is returned by operations with no payload.
type EmptyResponse struct{}

// ColumnVisibilityResponse maps column ordinals to visibility.
type ColumnVisibilityResponse struct {
	Columns map[int64]bool `json:"columns"`
}

// SetColumnVisibilityRequest replaces a dataset's visibility overlay.
type SetColumnVisibilityRequest struct {
	ID      int64          `path:"id"`
	Columns map[int64]bool `json:"columns"`
}

func (r *SetColumnVisibilityRequest) Validate() error { return nil }

// SetHoldingsFlagRequest marks or unmarks the holdings dataset.
type SetHoldingsFlagRequest struct {
	ID         int64 `path:"id"`
	IsHoldings bool  `json:"is_holdings"`
}

func (r *SetHoldingsFlagRequest) Validate() error { return nil }

// ImportRequest imports a file from the server's filesystem.
type ImportRequest struct {
	Path string `json:"path"`
}

func (r *ImportRequest) Validate() error {
	if r.Path == "" {
		return apperrors.MissingField("path")
	}
	return nil
}

// ImportedDataset reports one dataset produced by an import.
type ImportedDataset struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// ImportResponse lists the datasets an import produced.
type ImportResponse struct {
	Datasets []ImportedDataset `json:"datasets"`
}

// HealthRequest has no parameters.
type HealthRequest struct{}

func (r *HealthRequest) Validate() error { return nil }

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
