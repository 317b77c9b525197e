package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"propertyfees/internal/amqp"
	"propertyfees/internal/cli"
	"propertyfees/internal/coordinator"
	apphttp "propertyfees/internal/http"
	"propertyfees/internal/log"
	"propertyfees/internal/metrics"
	"propertyfees/internal/sheets"
	gsheet "propertyfees/internal/sheets/google"
	"propertyfees/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(log.New(log.DefaultConfig()))
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting propertyfees",
		log.FieldYear, cfg.Year,
		log.FieldInterval, cfg.ScanInterval.String(),
		log.FieldOperation, log.OpStartup)

	m := metrics.New(nil)
	builder := cli.SnapshotBuilder(cfg, logger)

	var listeners []coordinator.Listener

	// Latest snapshot store, also used to serve values across restarts
	var repo *storage.SQLiteRepository
	if cfg.SQLiteDBPath != "" {
		repo = cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer repo.Close()
		listeners = append(listeners, repo)
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		listeners = append(listeners, amqpClient)
		logger.Info("AMQP notifications enabled", "exchange", cfg.AMQPExchange)
	}

	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		listeners = append(listeners, sheets.NewMirror(sheetsClient, logger))
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	coord := coordinator.New(builder, coordinator.Config{
		Interval: cfg.ScanInterval,
		Logger:   logger,
		Recorder: m,
	}, listeners...)

	if repo != nil {
		cli.RestoreSnapshot(context.Background(), logger, repo, coord, cfg.Year)
	}

	srv := apphttp.NewServer(":"+cfg.Port, coord, coord,
		apphttp.WithLogger(logger),
		apphttp.WithMetrics(m.Handler()))
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 3 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := coord.Stop(ctx); err != nil {
			logger.Error("Coordinator stop error", log.FieldError, err)
		}
	})

	if err := coord.Start(ctx); err != nil {
		logger.Error("Failed to start coordinator", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
