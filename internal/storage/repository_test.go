package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propertyfees/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fees.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoadSnapshotEmpty(t *testing.T) {
	repo := newTestRepo(t)
	_, ok, err := repo.LoadSnapshot(context.Background())
	if err != nil || ok {
		t.Fatalf("expected no snapshot, got ok=%v err=%v", ok, err)
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	snap := core.EmptySnapshot(2025)
	snap.LastUpdate = time.Date(2025, 10, 18, 8, 0, 0, 0, time.UTC)
	snap.Paid.Set(core.WaterFee, core.PaidItem{Amount: decimal.RequireFromString("12.34"), Year: "2025", Month: "09", Status: "已缴"})
	snap.Total.PaidPublicTotal = decimal.RequireFromString("12.34")

	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, ok, err := repo.LoadSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot: ok=%v err=%v", ok, err)
	}
	if got.Year != 2025 || !got.LastUpdate.Equal(snap.LastUpdate) {
		t.Fatalf("unexpected header %d %v", got.Year, got.LastUpdate)
	}
	w, _ := got.Paid.Get(core.WaterFee)
	if !w.Amount.Equal(decimal.RequireFromString("12.34")) || w.Status != "已缴" {
		t.Fatalf("unexpected water fee %+v", w)
	}
	if got.Prepaid.Len() != 7 || got.Pending.Len() != 7 {
		t.Fatal("restored snapshot should be total")
	}
}

func TestSaveOverwritesSingleRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, year := range []int{2024, 2025} {
		if err := repo.SnapshotUpdated(ctx, core.EmptySnapshot(year)); err != nil {
			t.Fatalf("save %d: %v", year, err)
		}
	}

	var n int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM latest_snapshot`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected a single row, got %d", n)
	}
	got, _, _ := repo.LoadSnapshot(ctx)
	if got.Year != 2025 {
		t.Fatalf("expected latest year 2025, got %d", got.Year)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fees.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path, nil)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}
