package storage

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"

	"github.com/tabdb/tabdb/internal/models"
)

// CreateDataset inserts a new dataset with its column names and cells in
// one transaction and returns the assigned id. Names are not required to
// be unique; datasets are disambiguated by id.
func (s *Store) CreateDataset(ctx context.Context, meta models.NewDatasetMeta, data models.TabularData) (models.DatasetID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin create transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO dataset(name, source_path, row_count) VALUES (?, ?, 0)`,
		meta.Name, meta.SourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to insert dataset: %w", err)
	}
	datasetID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset id: %w", err)
	}

	if err := insertColumnNames(ctx, tx, datasetID, data.Columns); err != nil {
		return 0, err
	}
	if err := insertCells(ctx, tx, datasetID, data.Rows); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE dataset SET row_count = ? WHERE id = ?`, int64(len(data.Rows)), datasetID); err != nil {
		return 0, fmt.Errorf("failed to update row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit dataset create: %w", err)
	}
	return models.DatasetID(datasetID), nil
}

// ListDatasets returns dataset metadata ordered by id descending. When
// includeDeleted is false, soft-deleted datasets are filtered out.
func (s *Store) ListDatasets(ctx context.Context, includeDeleted bool) ([]models.DatasetMeta, error) {
	query := `SELECT id, name, source_path, row_count, deleted_at, imported_at FROM dataset `
	if !includeDeleted {
		query += `WHERE deleted_at IS NULL `
	}
	query += `ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []models.DatasetMeta
	for rows.Next() {
		var m models.DatasetMeta
		var deletedAt sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.SourcePath, &m.RowCount, &deletedAt, &m.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		m.DeletedAt = deletedAt.String
		datasets = append(datasets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read datasets: %w", err)
	}
	return datasets, nil
}

// SoftDeleteDataset marks the dataset deleted by stamping deleted_at.
// Repeating the call only refreshes the timestamp; no row data is
// removed, and the dataset stays listable with includeDeleted.
func (s *Store) SoftDeleteDataset(ctx context.Context, id models.DatasetID) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE dataset SET deleted_at = datetime('now') WHERE id = ?`, int64(id)); err != nil {
		return fmt.Errorf("failed to soft-delete dataset %d: %w", id, err)
	}
	return nil
}

// RestoreDataset clears a dataset's soft-deletion timestamp.
func (s *Store) RestoreDataset(ctx context.Context, id models.DatasetID) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE dataset SET deleted_at = NULL WHERE id = ?`, int64(id)); err != nil {
		return fmt.Errorf("failed to restore dataset %d: %w", id, err)
	}
	return nil
}

// PurgeDataset irreversibly deletes a dataset and everything that hangs
// off it. Dependent rows go first so foreign keys hold throughout the
// transaction.
func (s *Store) PurgeDataset(ctx context.Context, id models.DatasetID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM cell WHERE dataset_id = ?`,
		`DELETE FROM column_name WHERE dataset_id = ?`,
		`DELETE FROM column_visibility WHERE dataset_id = ?`,
		`DELETE FROM dataset_flag WHERE dataset_id = ?`,
		`DELETE FROM dataset WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, int64(id)); err != nil {
			return fmt.Errorf("failed to purge dataset %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}
	return nil
}

// RenameDataset updates the dataset's display name.
func (s *Store) RenameDataset(ctx context.Context, id models.DatasetID, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE dataset SET name = ? WHERE id = ?`, name, int64(id)); err != nil {
		return fmt.Errorf("failed to rename dataset %d: %w", id, err)
	}
	return nil
}

// LoadColumnVisibility returns the per-column visibility overlay for a
// dataset. Columns without an entry carry no opinion; callers decide the
// default.
func (s *Store) LoadColumnVisibility(ctx context.Context, id models.DatasetID) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT col_idx, visible FROM column_visibility WHERE dataset_id = ? ORDER BY col_idx ASC`,
		int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query column visibility: %w", err)
	}
	defer rows.Close()

	visibility := make(map[int64]bool)
	for rows.Next() {
		var colIdx, visible int64
		if err := rows.Scan(&colIdx, &visible); err != nil {
			return nil, fmt.Errorf("failed to scan column visibility: %w", err)
		}
		visibility[colIdx] = visible != 0
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column visibility: %w", err)
	}
	return visibility, nil
}

// UpsertColumnVisibility replaces the dataset's visibility overlay with
// the given mapping in one transaction.
func (s *Store) UpsertColumnVisibility(ctx context.Context, id models.DatasetID, visibility map[int64]bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin visibility transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM column_visibility WHERE dataset_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("failed to clear column visibility: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO column_visibility(dataset_id, col_idx, visible) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare visibility insert: %w", err)
	}
	defer stmt.Close()

	for _, colIdx := range slices.Sorted(maps.Keys(visibility)) {
		value := 0
		if visibility[colIdx] {
			value = 1
		}
		if _, err := stmt.ExecContext(ctx, int64(id), colIdx, value); err != nil {
			return fmt.Errorf("failed to insert column visibility: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit column visibility: %w", err)
	}
	return nil
}

// LoadHoldingsFlags returns the holdings marker for every dataset that
// has one.
func (s *Store) LoadHoldingsFlags(ctx context.Context) (map[models.DatasetID]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dataset_id, is_holdings FROM dataset_flag`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[models.DatasetID]bool)
	for rows.Next() {
		var datasetID, isHoldings int64
		if err := rows.Scan(&datasetID, &isHoldings); err != nil {
			return nil, fmt.Errorf("failed to scan holdings flag: %w", err)
		}
		flags[models.DatasetID(datasetID)] = isHoldings != 0
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read holdings flags: %w", err)
	}
	return flags, nil
}

// UpsertHoldingsFlag sets or updates a dataset's holdings marker.
func (s *Store) UpsertHoldingsFlag(ctx context.Context, id models.DatasetID, isHoldings bool) error {
	value := 0
	if isHoldings {
		value = 1
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO dataset_flag(dataset_id, is_holdings) VALUES (?, ?)
		 ON CONFLICT(dataset_id) DO UPDATE SET is_holdings = excluded.is_holdings`,
		int64(id), value); err != nil {
		return fmt.Errorf("failed to upsert holdings flag: %w", err)
	}
	return nil
}
