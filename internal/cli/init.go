// Package cli holds the bootstrap steps shared by the commands under cmd/.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"propertyfees/internal/config"
	"propertyfees/internal/core"
	"propertyfees/internal/log"
	"propertyfees/internal/snapshot"
	"propertyfees/internal/storage"
	"propertyfees/internal/vendor"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and makes it the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		lc.Level = level
	}
	lc.Format = cfg.LogFormat
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the snapshot store or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// VendorClient builds the vendor client for the configured household.
func VendorClient(cfg *config.Config, logger *log.Logger) *vendor.Client {
	return vendor.NewClient(vendor.Config{
		BaseURL:       cfg.BaseURL,
		UnionID:       cfg.UnionID,
		Authorization: cfg.Authorization,
		TraceID:       cfg.TraceID,
		Timeout:       cfg.Timeout,
		Household: vendor.Household{
			CourtUUID:        cfg.CourtUUID,
			UserErpID:        cfg.UserErpID,
			ResidenceHouseID: cfg.ResidenceHouseID,
			ParkingHouseID:   cfg.ParkingHouseID,
			PendingID:        cfg.PendingID,
			HouseUUID:        cfg.HouseUUID,
		},
		Logger: logger,
	})
}

// SnapshotBuilder wires the vendor client into a builder for cfg.Year.
func SnapshotBuilder(cfg *config.Config, logger *log.Logger) *snapshot.Builder {
	return snapshot.NewBuilder(VendorClient(cfg, logger), cfg.Year, snapshot.WithLogger(logger))
}

type snapshotLoader interface {
	LoadSnapshot(ctx context.Context) (core.Snapshot, bool, error)
}

type snapshotSeeder interface {
	Seed(snap core.Snapshot) bool
}

// RestoreSnapshot seeds the coordinator with the stored snapshot when it
// belongs to year. It reports whether a snapshot was installed.
func RestoreSnapshot(ctx context.Context, logger *log.Logger, store snapshotLoader, target snapshotSeeder, year int) bool {
	snap, ok, err := store.LoadSnapshot(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to load stored snapshot",
			log.FieldError, err,
			log.FieldOperation, log.OpLoad)
		return false
	}
	if !ok {
		return false
	}
	if snap.Year != year {
		logger.InfoContext(ctx, "Ignoring stored snapshot for another year",
			"stored_year", snap.Year,
			log.FieldYear, year)
		return false
	}
	if !target.Seed(snap) {
		return false
	}
	logger.InfoContext(ctx, "Restored last known snapshot",
		log.FieldYear, snap.Year,
		"last_update", snap.LastUpdate)
	return true
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
