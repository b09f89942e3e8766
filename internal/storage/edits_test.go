package storage

import (
	"context"
	"reflect"
	"testing"

	"github.com/tabdb/tabdb/internal/models"
)

func TestBuildUpdatedRows(t *testing.T) {
	columns := []string{"name", "city"}
	rows := [][]string{
		{"Alice", "Paris"},
		{"Bob", "Tokyo"},
	}

	tests := []struct {
		name  string
		edits models.StagedEdits
		want  [][]string
	}{
		{
			"no edits returns rows unchanged",
			models.StagedEdits{},
			[][]string{{"Alice", "Paris"}, {"Bob", "Tokyo"}},
		},
		{
			"cell overwrite on full key match",
			models.StagedEdits{Cells: map[models.CellKey]string{
				{Row: 0, Col: 1, Column: "city"}: "Berlin",
			}},
			[][]string{{"Alice", "Berlin"}, {"Bob", "Tokyo"}},
		},
		{
			"stale column name skips the overwrite",
			models.StagedEdits{Cells: map[models.CellKey]string{
				{Row: 0, Col: 1, Column: "town"}: "Berlin",
			}},
			[][]string{{"Alice", "Paris"}, {"Bob", "Tokyo"}},
		},
		{
			"deleted rows close the gap",
			models.StagedEdits{DeletedRows: []int{0}},
			[][]string{{"Bob", "Tokyo"}},
		},
		{
			"deletion of unknown index is a no-op",
			models.StagedEdits{DeletedRows: []int{7}},
			[][]string{{"Alice", "Paris"}, {"Bob", "Tokyo"}},
		},
		{
			"added rows append in order",
			models.StagedEdits{AddedRows: [][]string{{"Cara", "Rome"}, {"Dan", "Oslo"}}},
			[][]string{{"Alice", "Paris"}, {"Bob", "Tokyo"}, {"Cara", "Rome"}, {"Dan", "Oslo"}},
		},
		{
			"overwrite, delete, and add combined",
			models.StagedEdits{
				Cells: map[models.CellKey]string{
					{Row: 0, Col: 1, Column: "city"}: "Berlin",
				},
				DeletedRows: []int{1},
				AddedRows:   [][]string{{"Cara", "Rome"}},
			},
			[][]string{{"Alice", "Berlin"}, {"Cara", "Rome"}},
		},
		{
			"edit on a deleted row is discarded",
			models.StagedEdits{
				Cells: map[models.CellKey]string{
					{Row: 1, Col: 0, Column: "name"}: "Robert",
				},
				DeletedRows: []int{1},
			},
			[][]string{{"Alice", "Paris"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildUpdatedRows(columns, rows, tt.edits)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildUpdatedRows() = %v, want %v", got, tt.want)
			}
		})
	}

	// The input rows must not be mutated by any merge.
	if !reflect.DeepEqual(rows, [][]string{{"Alice", "Paris"}, {"Bob", "Tokyo"}}) {
		t.Errorf("input rows mutated: %v", rows)
	}
}

func TestApplyEdits(t *testing.T) {
	s := newTestStore(t)
	id := seedDataset(t, s, "cities", []string{"name", "city"}, [][]string{
		{"Alice", "Paris"},
		{"Bob", "Tokyo"},
	})

	edits := models.StagedEdits{
		Cells: map[models.CellKey]string{
			{Row: 0, Col: 1, Column: "city"}: "Berlin",
		},
		DeletedRows: []int{1},
		AddedRows:   [][]string{{"Cara", "Rome"}},
	}
	if err := s.ApplyEdits(context.Background(), id, edits); err != nil {
		t.Fatalf("ApplyEdits() error = %v", err)
	}

	got, err := s.QueryPage(context.Background(), models.PageQuery{DatasetID: id, PageSize: 10})
	if err != nil {
		t.Fatalf("QueryPage() error = %v", err)
	}
	want := [][]string{{"Alice", "Berlin"}, {"Cara", "Rome"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("Rows = %v, want %v", got.Rows, want)
	}
	if got.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", got.TotalRows)
	}

	// Surviving rows are renumbered from zero with no gaps.
	var maxRowIdx int64
	if err := s.db.QueryRow(
		`SELECT MAX(row_idx) FROM cell WHERE dataset_id = ?`, int64(id)).Scan(&maxRowIdx); err != nil {
		t.Fatalf("max row_idx: %v", err)
	}
	if maxRowIdx != 1 {
		t.Errorf("max row_idx = %d, want 1", maxRowIdx)
	}

	// The cached row count follows the rewrite.
	datasets, err := s.ListDatasets(context.Background(), true)
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if len(datasets) != 1 || datasets[0].RowCount != 2 {
		t.Errorf("row_count = %+v, want 2", datasets)
	}
}

func TestApplyEditsEmptyBatch(t *testing.T) {
	s := newTestStore(t)
	id := seedDataset(t, s, "cities", []string{"name", "city"}, [][]string{
		{"Alice", "Paris"},
		{"Bob", "Tokyo"},
	})

	if err := s.ApplyEdits(context.Background(), id, models.StagedEdits{}); err != nil {
		t.Fatalf("ApplyEdits() error = %v", err)
	}

	got, err := s.QueryPage(context.Background(), models.PageQuery{DatasetID: id, PageSize: 10})
	if err != nil {
		t.Fatalf("QueryPage() error = %v", err)
	}
	want := [][]string{{"Alice", "Paris"}, {"Bob", "Tokyo"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("Rows = %v, want %v", got.Rows, want)
	}
}

func TestApplyEditsRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	keep := seedDataset(t, s, "keeper", []string{"name", "city"}, [][]string{
		{"Alice", "Paris"},
	})

	// An unknown dataset has no columns, so the merged grid is just the
	// added rows; inserting them violates the dataset foreign key after
	// the (empty) delete, and the whole rewrite must roll back.
	err := s.ApplyEdits(context.Background(), 999, models.StagedEdits{
		AddedRows: [][]string{{"Bob", "Tokyo"}},
	})
	if err == nil {
		t.Fatal("ApplyEdits() against unknown dataset succeeded, want error")
	}

	var orphans int64
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM cell WHERE dataset_id = ?`, int64(999)).Scan(&orphans); err != nil {
		t.Fatalf("count cells: %v", err)
	}
	if orphans != 0 {
		t.Errorf("found %d cells for the unknown dataset, want 0 after rollback", orphans)
	}

	// The neighbor's pre-edit state is intact.
	got, err := s.QueryPage(context.Background(), models.PageQuery{DatasetID: keep, PageSize: 10})
	if err != nil {
		t.Fatalf("QueryPage() error = %v", err)
	}
	want := [][]string{{"Alice", "Paris"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("Rows = %v, want %v", got.Rows, want)
	}
}

func TestApplyEditsDeleteAllRows(t *testing.T) {
	s := newTestStore(t)
	id := seedDataset(t, s, "cities", []string{"name"}, [][]string{{"Alice"}, {"Bob"}})

	if err := s.ApplyEdits(context.Background(), id, models.StagedEdits{DeletedRows: []int{0, 1}}); err != nil {
		t.Fatalf("ApplyEdits() error = %v", err)
	}

	got, err := s.QueryPage(context.Background(), models.PageQuery{DatasetID: id, PageSize: 10})
	if err != nil {
		t.Fatalf("QueryPage() error = %v", err)
	}
	if got.TotalRows != 0 || len(got.Rows) != 0 {
		t.Errorf("got %+v, want empty dataset", got)
	}
	// The schema survives even with zero rows.
	if !reflect.DeepEqual(got.Columns, []string{"name"}) {
		t.Errorf("Columns = %v, want [name]", got.Columns)
	}
}
