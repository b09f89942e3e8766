// Package models defines the core data structures used throughout the application.
package models

// DatasetID identifies a stored dataset. IDs are assigned by the storage
// layer and are never reused within one database file.
type DatasetID int64

// DatasetMeta is the listing-level view of a dataset.
type DatasetMeta struct {
	ID         DatasetID `json:"id"`
	Name       string    `json:"name"`
	SourcePath string    `json:"source_path"`
	RowCount   int64     `json:"row_count"`
	// DeletedAt is empty for live datasets and holds the soft-deletion
	// timestamp (SQLite datetime text) otherwise.
	DeletedAt  string `json:"deleted_at,omitempty"`
	ImportedAt string `json:"imported_at"`
}

// Deleted reports whether the dataset has been soft-deleted.
func (m *DatasetMeta) Deleted() bool {
	return m.DeletedAt != ""
}

// NewDatasetMeta describes a dataset about to be created.
type NewDatasetMeta struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
}

// TabularData is a rectangular grid of text values with named columns.
// The storage layer stores values positionally; the dataset service
// rejects rows whose width differs from the column count.
type TabularData struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// SortDirection selects ascending or descending sort order.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec sorts a page query by a single column's text value.
type SortSpec struct {
	Column    int64         `json:"column"`
	Direction SortDirection `json:"direction"`
}

// ColumnFilter restricts a page query to rows whose value at Column
// contains Term as a substring.
type ColumnFilter struct {
	Column int64  `json:"column"`
	Term   string `json:"term"`
}

// PageQuery describes one paginated read of a dataset.
//
// Page is 0-based and clamped to zero when negative; PageSize must be
// positive. GlobalSearch and the column filter term are trimmed before
// use and ignored when empty.
type PageQuery struct {
	DatasetID    DatasetID     `json:"dataset_id"`
	Page         int64         `json:"page"`
	PageSize     int64         `json:"page_size"`
	GlobalSearch string        `json:"global_search,omitempty"`
	ColumnFilter *ColumnFilter `json:"column_filter,omitempty"`
	Sort         *SortSpec     `json:"sort,omitempty"`
}

// PageResult is one page of filtered, sorted rows.
//
// TotalRows counts every row matching the query's filters, independent
// of pagination. Each row holds exactly one value per column.
type PageResult struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int64      `json:"total_rows"`
}

// CellKey addresses a staged cell edit. Row and Col are positions in the
// snapshot the edit was staged against; Column carries the header name
// the editor displayed and must still match for the edit to apply.
type CellKey struct {
	Row    int
	Col    int
	Column string
}

// StagedEdits is a batch of uncommitted changes against one dataset:
// cell overwrites keyed by position, row deletions by snapshot index,
// and full-width rows to append. The engine holds no edit state of its
// own; callers accumulate edits and hand over a snapshot at commit time.
type StagedEdits struct {
	Cells       map[CellKey]string
	DeletedRows []int
	AddedRows   [][]string
}

// Empty reports whether the batch contains no changes.
func (e *StagedEdits) Empty() bool {
	return len(e.Cells) == 0 && len(e.DeletedRows) == 0 && len(e.AddedRows) == 0
}

// ImportResult reports one dataset produced by a file import.
type ImportResult struct {
	DatasetID DatasetID `json:"dataset_id"`
	Name      string    `json:"name"`
	RowCount  int64     `json:"row_count"`
}
