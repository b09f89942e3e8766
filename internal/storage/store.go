// Package storage implements the tabular dataset engine on top of SQLite.
//
// Datasets are stored in an entity-attribute-value layout: each cell is an
// independent (dataset_id, row_idx, col_idx, value) fact, column names live
// in their own table keyed by ordinal position, and per-dataset metadata
// (name, source path, cached row count, soft-deletion timestamp) lives in
// the dataset table. Values are text; interpretation is left to callers.
//
// All multi-statement writes run inside a single transaction so that a
// failure at any step leaves no durable side effects.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/tabdb/tabdb/internal/models"
)

// Contract errors returned for caller bugs. These are never retried; map
// them to 4xx at the API boundary with errors.Is.
var (
	// ErrInvalidPageSize is returned when a page query's page size is not
	// positive.
	ErrInvalidPageSize = errors.New("page size must be greater than zero")
	// ErrColumnOutOfRange is returned when a filter or sort column index
	// falls outside [0, column count).
	ErrColumnOutOfRange = errors.New("column index out of range")
	// ErrRowWidthMismatch is returned when a row's cell count differs
	// from the dataset's column count.
	ErrRowWidthMismatch = errors.New("row width does not match column count")
	// ErrDatasetNotFound is returned when an operation addresses a
	// dataset id that does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS dataset (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	source_path TEXT NOT NULL,
	row_count   INTEGER NOT NULL,
	deleted_at  TEXT,
	imported_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS column_name (
	dataset_id  INTEGER NOT NULL,
	col_idx     INTEGER NOT NULL,
	name        TEXT NOT NULL,
	PRIMARY KEY (dataset_id, col_idx),
	FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE TABLE IF NOT EXISTS cell (
	dataset_id  INTEGER NOT NULL,
	row_idx     INTEGER NOT NULL,
	col_idx     INTEGER NOT NULL,
	value       TEXT NOT NULL,
	PRIMARY KEY (dataset_id, row_idx, col_idx),
	FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE TABLE IF NOT EXISTS column_visibility (
	dataset_id  INTEGER NOT NULL,
	col_idx     INTEGER NOT NULL,
	visible     INTEGER NOT NULL,
	PRIMARY KEY (dataset_id, col_idx),
	FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE TABLE IF NOT EXISTS dataset_flag (
	dataset_id   INTEGER PRIMARY KEY,
	is_holdings  INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (dataset_id) REFERENCES dataset(id)
);

CREATE INDEX IF NOT EXISTS idx_cell_dataset_row
	ON cell(dataset_id, row_idx);

CREATE INDEX IF NOT EXISTS idx_cell_dataset_col_value
	ON cell(dataset_id, col_idx, value);
`

// Store owns the SQLite database holding every dataset.
//
// Store is safe for concurrent use; writes are serialized on a single
// connection so that multi-statement transactions never interleave.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and initializes
// the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer per file; a single connection avoids
	// SQLITE_BUSY churn between our own transactions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the tables and indexes, then applies additive
// migrations for databases created before a column existed.
func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	// Pre-deleted_at databases lack the column; the duplicate-column error
	// on current schemas is expected.
	_, _ = s.db.Exec("ALTER TABLE dataset ADD COLUMN deleted_at TEXT")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// columnNames returns the dataset's column names ordered by ordinal
// position. An empty slice means the dataset has no schema (or does not
// exist); callers treat both the same way.
func (s *Store) columnNames(ctx context.Context, datasetID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM column_name WHERE dataset_id = ? ORDER BY col_idx ASC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column names: %w", err)
	}
	return columns, nil
}

// Columns returns the dataset's column names in ordinal order. An empty
// slice means the dataset has no schema (or does not exist).
func (s *Store) Columns(ctx context.Context, id models.DatasetID) ([]string, error) {
	return s.columnNames(ctx, int64(id))
}

// insertColumnNames writes the ordered column names for a dataset inside
// an existing transaction.
func insertColumnNames(ctx context.Context, tx *sql.Tx, datasetID int64, columns []string) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO column_name(dataset_id, col_idx, name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare column insert: %w", err)
	}
	defer stmt.Close()

	for colIdx, name := range columns {
		if _, err := stmt.ExecContext(ctx, datasetID, int64(colIdx), name); err != nil {
			return fmt.Errorf("failed to insert column %d: %w", colIdx, err)
		}
	}
	return nil
}

// insertCells writes a full grid of cells for a dataset inside an existing
// transaction, addressing each value by its position in the grid.
func insertCells(ctx context.Context, tx *sql.Tx, datasetID int64, rows [][]string) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cell(dataset_id, row_idx, col_idx, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			if _, err := stmt.ExecContext(ctx, datasetID, int64(rowIdx), int64(colIdx), value); err != nil {
				return fmt.Errorf("failed to insert cell (%d,%d): %w", rowIdx, colIdx, err)
			}
		}
	}
	return nil
}
