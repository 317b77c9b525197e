// Package storage keeps the latest snapshot in SQLite so a restart can serve
// the last known values before the first refresh completes. Only one row is
// ever stored; each save overwrites it.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"propertyfees/internal/core"
	"propertyfees/internal/log"
)

const (
	upsertSnapshot = `
INSERT INTO latest_snapshot (id, year, payload, prepaid_total, paid_public_total, pending_total, last_update, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    year = excluded.year,
    payload = excluded.payload,
    prepaid_total = excluded.prepaid_total,
    paid_public_total = excluded.paid_public_total,
    pending_total = excluded.pending_total,
    last_update = excluded.last_update,
    updated_at = excluded.updated_at`

	selectSnapshot = `SELECT payload FROM latest_snapshot WHERE id = 1`
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveSnapshot overwrites the stored snapshot.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap core.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, upsertSnapshot,
		snap.Year,
		string(payload),
		snap.Total.PrepaidTotal.String(),
		snap.Total.PaidPublicTotal.String(),
		snap.Total.PendingTotal.String(),
		snap.LastUpdate.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	r.logger.DebugContext(ctx, "Snapshot saved",
		log.FieldYear, snap.Year,
		log.FieldOperation, log.OpSave)
	return nil
}

// LoadSnapshot returns the stored snapshot. The bool is false when nothing
// has been saved yet.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, selectSnapshot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return core.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

// SnapshotUpdated persists every refreshed snapshot.
func (r *SQLiteRepository) SnapshotUpdated(ctx context.Context, snap core.Snapshot) error {
	return r.SaveSnapshot(ctx, snap)
}
