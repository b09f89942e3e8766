package storage

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/tabdb/tabdb/internal/models"
)

// BuildUpdatedRows merges a batch of staged edits into a snapshot of the
// dataset's rows and returns the next row set.
//
// Rows whose snapshot index is in the deleted set are skipped. Surviving
// rows keep their original relative order, with staged cell overwrites
// applied wherever the full key (row, col, column name) matches. Added
// rows follow in staging order. Output position renumbers the rows; no
// gap is left where a deletion happened.
func BuildUpdatedRows(columns []string, rows [][]string, edits models.StagedEdits) [][]string {
	deleted := make(map[int]struct{}, len(edits.DeletedRows))
	for _, idx := range edits.DeletedRows {
		deleted[idx] = struct{}{}
	}

	updated := make([][]string, 0, len(rows)+len(edits.AddedRows))
	for rowIdx, row := range rows {
		if _, ok := deleted[rowIdx]; ok {
			continue
		}
		next := slices.Clone(row)
		for colIdx, header := range columns {
			value, ok := edits.Cells[models.CellKey{Row: rowIdx, Col: colIdx, Column: header}]
			if ok && colIdx < len(next) {
				next[colIdx] = value
			}
		}
		updated = append(updated, next)
	}
	for _, row := range edits.AddedRows {
		updated = append(updated, slices.Clone(row))
	}
	return updated
}

// ApplyEdits commits a batch of staged edits against the dataset.
//
// The current rows are read unfiltered, merged with the edits via
// BuildUpdatedRows, and written back as a full rewrite: one transaction
// deletes every cell of the dataset, re-inserts the merged grid at fresh
// coordinates, and refreshes the cached row count. Any failure rolls the
// whole rewrite back, so callers observe either the pre-edit or the fully
// merged state.
func (s *Store) ApplyEdits(ctx context.Context, id models.DatasetID, edits models.StagedEdits) error {
	snapshot, err := s.QueryPage(ctx, models.PageQuery{
		DatasetID: id,
		PageSize:  math.MaxInt64,
	})
	if err != nil {
		return fmt.Errorf("failed to load current rows: %w", err)
	}

	updated := BuildUpdatedRows(snapshot.Columns, snapshot.Rows, edits)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin edit transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cell WHERE dataset_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("failed to clear existing cells: %w", err)
	}
	if err := insertCells(ctx, tx, int64(id), updated); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE dataset SET row_count = ? WHERE id = ?`, int64(len(updated)), int64(id)); err != nil {
		return fmt.Errorf("failed to update row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edits: %w", err)
	}
	return nil
}
