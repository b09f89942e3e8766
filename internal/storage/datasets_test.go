package storage

import (
	"context"
	"reflect"
	"testing"

	"github.com/tabdb/tabdb/internal/models"
)

func TestListDatasetsOrder(t *testing.T) {
	s := newTestStore(t)
	first := seedDataset(t, s, "first", []string{"a"}, [][]string{{"1"}})
	second := seedDataset(t, s, "second", []string{"a"}, [][]string{{"1"}, {"2"}})

	datasets, err := s.ListDatasets(context.Background(), false)
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if len(datasets) != 2 {
		t.Fatalf("got %d datasets, want 2", len(datasets))
	}
	// Newest first.
	if datasets[0].ID != second || datasets[1].ID != first {
		t.Errorf("order = [%d, %d], want [%d, %d]", datasets[0].ID, datasets[1].ID, second, first)
	}
	if datasets[0].RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", datasets[0].RowCount)
	}
	if datasets[0].ImportedAt == "" {
		t.Error("ImportedAt is empty")
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	s := newTestStore(t)
	id := seedDataset(t, s, "doomed", []string{"a"}, [][]string{{"1"}})

	if err := s.SoftDeleteDataset(context.Background(), id); err != nil {
		t.Fatalf("SoftDeleteDataset() error = %v", err)
	}

	live, err := s.ListDatasets(context.Background(), false)
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if len(live) != 0 {
		t.Errorf("live datasets = %d, want 0", len(live))
	}

	all, err := s.ListDatasets(context.Background(), true)
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if len(all) != 1 || !all[0].Deleted() {
		t.Fatalf("got %+v, want one soft-deleted dataset", all)
	}

	// Data is untouched while soft-deleted.
	page, err := s.QueryPage(context.Background(), models.PageQuery{DatasetID: id, PageSize: 10})
	if err != nil {
		t.Fatalf("QueryPage() error = %v", err)
	}
	if page.TotalRows != 1 {
		t.Errorf("TotalRows = %d, want 1", page.TotalRows)
	}

	if err := s.RestoreDataset(context.Background(), id); err != nil {
		t.Fatalf("RestoreDataset() error = %v", err)
	}
	live, err = s.ListDatasets(context.Background(), false)
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if len(live) != 1 || live[0].Deleted() {
		t.Errorf("got %+v, want one live dataset after restore", live)
	}
}

func TestSoftDeleteUnknownDataset(t *testing.T) {
	s := newTestStore(t)
	if err := s.SoftDeleteDataset(context.Background(), 999); err != nil {
		t.Errorf("SoftDeleteDataset() error = %v, want nil for unknown id", err)
	}
}

func TestPurgeDataset(t *testing.T) {
	s := newTestStore(t)
	id := seedDataset(t, s, "doomed", []string{"a", "b"}, [][]string{{"1", "2"}})
	keep := seedDataset(t, s, "keeper", []string{"a"}, [][]string{{"1"}})

	if err := s.UpsertColumnVisibility(context.Background(), id, map[int64]bool{0: false}); err != nil {
		t.Fatalf("UpsertColumnVisibility() error = %v", err)
	}
	if err := s.UpsertHoldingsFlag(context.Background(), id, true); err != nil {
		t.Fatalf("UpsertHoldingsFlag() error = %v", err)
	}

	if err := s.PurgeDataset(context.Background(), id); err != nil {
		t.Fatalf("PurgeDataset() error = %v", err)
	}

	for _, q := range []string{
		`SELECT COUNT(*) FROM cell WHERE dataset_id = ?`,
		`SELECT COUNT(*) FROM column_name WHERE dataset_id = ?`,
		`SELECT COUNT(*) FROM column_visibility WHERE dataset_id = ?`,
		`SELECT COUNT(*) FROM dataset_flag WHERE dataset_id = ?`,
		`SELECT COUNT(*) FROM dataset WHERE id = ?`,
	} {
		var n int64
		if err := s.db.QueryRow(q, int64(id)).Scan(&n); err != nil {
			t.Fatalf("count query %q: %v", q, err)
		}
		if n != 0 {
			t.Errorf("%q = %d, want 0", q, n)
		}
	}

	// The neighbor is untouched.
	page, err := s.QueryPage(context.Background(), models.PageQuery{DatasetID: keep, PageSize: 10})
	if err != nil {
		t.Fatalf("QueryPage() error = %v", err)
	}
	if page.TotalRows != 1 {
		t.Errorf("neighbor TotalRows = %d, want 1", page.TotalRows)
	}
}

func TestRenameDataset(t *testing.T) {
	s := newTestStore(t)
	id := seedDataset(t, s, "old", []string{"a"}, nil)

	if err := s.RenameDataset(context.Background(), id, "new"); err != nil {
		t.Fatalf("RenameDataset() error = %v", err)
	}
	datasets, err := s.ListDatasets(context.Background(), false)
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	if datasets[0].Name != "new" {
		t.Errorf("Name = %q, want %q", datasets[0].Name, "new")
	}
}

func TestColumnVisibilityRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id := seedDataset(t, s, "cities", []string{"name", "city", "zip"}, nil)

	got, err := s.LoadColumnVisibility(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadColumnVisibility() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("initial visibility = %v, want empty", got)
	}

	first := map[int64]bool{0: true, 2: false}
	if err := s.UpsertColumnVisibility(context.Background(), id, first); err != nil {
		t.Fatalf("UpsertColumnVisibility() error = %v", err)
	}
	got, err = s.LoadColumnVisibility(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadColumnVisibility() error = %v", err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Errorf("visibility = %v, want %v", got, first)
	}

	// A second upsert replaces the overlay instead of merging into it.
	second := map[int64]bool{1: false}
	if err := s.UpsertColumnVisibility(context.Background(), id, second); err != nil {
		t.Fatalf("UpsertColumnVisibility() error = %v", err)
	}
	got, err = s.LoadColumnVisibility(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadColumnVisibility() error = %v", err)
	}
	if !reflect.DeepEqual(got, second) {
		t.Errorf("visibility = %v, want %v", got, second)
	}
}

func TestHoldingsFlag(t *testing.T) {
	s := newTestStore(t)
	a := seedDataset(t, s, "a", []string{"x"}, nil)
	b := seedDataset(t, s, "b", []string{"x"}, nil)

	if err := s.UpsertHoldingsFlag(context.Background(), a, true); err != nil {
		t.Fatalf("UpsertHoldingsFlag() error = %v", err)
	}
	if err := s.UpsertHoldingsFlag(context.Background(), b, false); err != nil {
		t.Fatalf("UpsertHoldingsFlag() error = %v", err)
	}

	flags, err := s.LoadHoldingsFlags(context.Background())
	if err != nil {
		t.Fatalf("LoadHoldingsFlags() error = %v", err)
	}
	want := map[models.DatasetID]bool{a: true, b: false}
	if !reflect.DeepEqual(flags, want) {
		t.Errorf("flags = %v, want %v", flags, want)
	}

	// Flipping an existing flag updates in place.
	if err := s.UpsertHoldingsFlag(context.Background(), a, false); err != nil {
		t.Fatalf("UpsertHoldingsFlag() error = %v", err)
	}
	flags, err = s.LoadHoldingsFlags(context.Background())
	if err != nil {
		t.Fatalf("LoadHoldingsFlags() error = %v", err)
	}
	if flags[a] {
		t.Error("flag still set after clearing")
	}
}
