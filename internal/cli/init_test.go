package cli

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"propertyfees/internal/config"
	"propertyfees/internal/core"
	"propertyfees/internal/log"
)

type fakeStore struct {
	snap core.Snapshot
	ok   bool
	err  error
}

func (f fakeStore) LoadSnapshot(context.Context) (core.Snapshot, bool, error) {
	return f.snap, f.ok, f.err
}

type fakeSeeder struct {
	accept bool
	seeded []core.Snapshot
}

func (f *fakeSeeder) Seed(snap core.Snapshot) bool {
	f.seeded = append(f.seeded, snap)
	return f.accept
}

func TestRestoreSnapshot(t *testing.T) {
	tests := []struct {
		name       string
		store      fakeStore
		accept     bool
		want       bool
		wantSeeded int
	}{
		{"nothing stored", fakeStore{}, true, false, 0},
		{"load error", fakeStore{err: errors.New("disk I/O error")}, true, false, 0},
		{"other year", fakeStore{snap: core.EmptySnapshot(2024), ok: true}, true, false, 0},
		{"same year", fakeStore{snap: core.EmptySnapshot(2025), ok: true}, true, true, 1},
		{"already refreshed", fakeStore{snap: core.EmptySnapshot(2025), ok: true}, false, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seeder := &fakeSeeder{accept: tt.accept}
			got := RestoreSnapshot(context.Background(), log.Discard(), tt.store, seeder, 2025)
			if got != tt.want {
				t.Errorf("RestoreSnapshot() = %v, want %v", got, tt.want)
			}
			if len(seeder.seeded) != tt.wantSeeded {
				t.Errorf("expected %d Seed calls, got %d", tt.wantSeeded, len(seeder.seeded))
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug level enabled")
	}

	logger = SetupLogger(&config.Config{LogLevel: "nonsense", LogFormat: "text"})
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("unknown level should fall back to info")
	}
}

func TestVendorClientUsesConfig(t *testing.T) {
	cfg := &config.Config{
		BaseURL:          "https://vendor.example",
		UnionID:          "u",
		Authorization:    "a",
		Year:             2025,
		ResidenceHouseID: "1",
	}
	if VendorClient(cfg, log.Discard()) == nil {
		t.Fatal("expected client")
	}
	if b := SnapshotBuilder(cfg, log.Discard()); b.Year() != 2025 {
		t.Fatalf("builder year = %d", b.Year())
	}
}
