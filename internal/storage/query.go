package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabdb/tabdb/internal/models"
)

// predicate is one WHERE clause fragment paired with the arguments bound
// to its placeholders. Clauses are combined conjunctively and rendered to
// a parameterized statement; user-controlled text never reaches the SQL
// syntax itself.
type predicate struct {
	clause string
	args   []any
}

// renderPredicates joins the clauses with AND and concatenates their
// arguments in clause order.
func renderPredicates(preds []predicate) (string, []any) {
	clauses := make([]string, len(preds))
	var args []any
	for i, p := range preds {
		clauses[i] = p.clause
		args = append(args, p.args...)
	}
	return strings.Join(clauses, " AND "), args
}

// buildFilter assembles the row-level filter for a page query. Every
// clause constrains distinct row_idx values of the dataset; search terms
// are trimmed and dropped when empty.
func buildFilter(q models.PageQuery) []predicate {
	id := int64(q.DatasetID)
	preds := []predicate{{clause: "base.dataset_id = ?", args: []any{id}}}

	if term := strings.TrimSpace(q.GlobalSearch); term != "" {
		preds = append(preds, predicate{
			clause: `EXISTS (
				SELECT 1 FROM cell gs
				WHERE gs.dataset_id = ?
				  AND gs.row_idx = base.row_idx
				  AND gs.value LIKE ?
			)`,
			args: []any{id, "%" + term + "%"},
		})
	}

	if q.ColumnFilter != nil {
		if term := strings.TrimSpace(q.ColumnFilter.Term); term != "" {
			preds = append(preds, predicate{
				clause: `EXISTS (
					SELECT 1 FROM cell cs
					WHERE cs.dataset_id = ?
					  AND cs.row_idx = base.row_idx
					  AND cs.col_idx = ?
					  AND cs.value LIKE ?
				)`,
				args: []any{id, q.ColumnFilter.Column, "%" + term + "%"},
			})
		}
	}
	return preds
}

// QueryPage returns one page of the dataset's filtered, sorted rows.
//
// The result's Rows hold the rows at offset page*pageSize of the filtered
// row set, one text value per column, and TotalRows counts every row
// passing the filters regardless of pagination. A dataset with no columns
// yields an empty result rather than an error. Out-of-range filter/sort
// column indices and a non-positive page size are caller bugs and fail
// with ErrColumnOutOfRange and ErrInvalidPageSize respectively.
func (s *Store) QueryPage(ctx context.Context, q models.PageQuery) (*models.PageResult, error) {
	if q.PageSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPageSize, q.PageSize)
	}

	columns, err := s.columnNames(ctx, int64(q.DatasetID))
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return &models.PageResult{Columns: []string{}, Rows: [][]string{}}, nil
	}

	if q.ColumnFilter != nil {
		if c := q.ColumnFilter.Column; c < 0 || c >= int64(len(columns)) {
			return nil, fmt.Errorf("filter %w: %d (columns: %d)", ErrColumnOutOfRange, c, len(columns))
		}
	}
	if q.Sort != nil {
		if c := q.Sort.Column; c < 0 || c >= int64(len(columns)) {
			return nil, fmt.Errorf("sort %w: %d (columns: %d)", ErrColumnOutOfRange, c, len(columns))
		}
	}

	whereSQL, filterArgs := renderPredicates(buildFilter(q))

	// Counting matches and fetching the ordered page are separate queries:
	// the count needs only existence checks, while ordering needs a join
	// against the sort column's values.
	countSQL := `SELECT COUNT(*) FROM (
		SELECT base.row_idx FROM cell base
		WHERE ` + whereSQL + `
		GROUP BY base.row_idx
	)`
	var totalRows int64
	if err := s.db.QueryRowContext(ctx, countSQL, filterArgs...).Scan(&totalRows); err != nil {
		return nil, fmt.Errorf("failed to count filtered rows: %w", err)
	}

	rowIndices, err := s.pageRowIndices(ctx, q, whereSQL, filterArgs)
	if err != nil {
		return nil, err
	}
	if len(rowIndices) == 0 {
		return &models.PageResult{Columns: columns, Rows: [][]string{}, TotalRows: totalRows}, nil
	}

	rows, err := s.hydrateRows(ctx, int64(q.DatasetID), columns, rowIndices)
	if err != nil {
		return nil, err
	}
	return &models.PageResult{Columns: columns, Rows: rows, TotalRows: totalRows}, nil
}

// pageRowIndices returns the ordered row_idx values for the requested
// page. Sorting is by the sort column's text value (missing values sort
// as empty string) with row_idx ascending as a stable tie-break, or by
// row_idx alone when no sort is requested.
func (s *Store) pageRowIndices(ctx context.Context, q models.PageQuery, whereSQL string, filterArgs []any) ([]int64, error) {
	page := q.Page
	if page < 0 {
		page = 0
	}
	offset := page * q.PageSize

	var b strings.Builder
	var args []any
	b.WriteString("SELECT base.row_idx FROM cell base ")
	if q.Sort != nil {
		b.WriteString(`LEFT JOIN cell sort_cell
			ON sort_cell.dataset_id = base.dataset_id
			AND sort_cell.row_idx = base.row_idx
			AND sort_cell.col_idx = ? `)
		args = append(args, q.Sort.Column)
	}
	b.WriteString("WHERE ")
	b.WriteString(whereSQL)
	b.WriteString(" GROUP BY base.row_idx ORDER BY ")
	if q.Sort != nil {
		direction := "ASC"
		if q.Sort.Direction == models.SortDesc {
			direction = "DESC"
		}
		b.WriteString("COALESCE(sort_cell.value, '') " + direction + ", ")
	}
	b.WriteString("base.row_idx ASC LIMIT ? OFFSET ?")
	args = append(args, filterArgs...)
	args = append(args, q.PageSize, offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query page row indices: %w", err)
	}
	defer rows.Close()

	var indices []int64
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan row index: %w", err)
		}
		indices = append(indices, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read page row indices: %w", err)
	}
	return indices, nil
}

// hydrateRows materializes a dense grid for the selected row indices,
// defaulting missing cells to empty string. Cells at a col_idx beyond the
// current column count are ignored.
func (s *Store) hydrateRows(ctx context.Context, datasetID int64, columns []string, rowIndices []int64) ([][]string, error) {
	placeholders := strings.Repeat("?,", len(rowIndices))
	placeholders = placeholders[:len(placeholders)-1]
	hydrateSQL := `SELECT row_idx, col_idx, value FROM cell
		WHERE dataset_id = ? AND row_idx IN (` + placeholders + `)
		ORDER BY row_idx ASC, col_idx ASC`

	args := make([]any, 0, len(rowIndices)+1)
	args = append(args, datasetID)
	for _, idx := range rowIndices {
		args = append(args, idx)
	}

	grid := make([][]string, len(rowIndices))
	rowPos := make(map[int64]int, len(rowIndices))
	for i, idx := range rowIndices {
		grid[i] = make([]string, len(columns))
		rowPos[idx] = i
	}

	rows, err := s.db.QueryContext(ctx, hydrateSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowIdx, colIdx int64
		var value string
		if err := rows.Scan(&rowIdx, &colIdx, &value); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		pos, ok := rowPos[rowIdx]
		if !ok || colIdx < 0 || colIdx >= int64(len(columns)) {
			continue
		}
		grid[pos][colIdx] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hydrated cells: %w", err)
	}
	return grid, nil
}
