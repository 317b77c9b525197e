package main

import (
	"context"
	"errors"
	"os"
	"time"

	"propertyfees/internal/amqp"
	"propertyfees/internal/cli"
	"propertyfees/internal/core"
	"propertyfees/internal/log"
)

// propertyfees-watch follows the snapshot.updated notifications and logs the
// totals of every refresh.
func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(log.New(log.DefaultConfig()))
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentAMQP)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}

	logger.Info("Starting propertyfees-watch", "queue", cfg.AMQPQueue, log.FieldOperation, log.OpStartup)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	go func() {
		err := client.ConsumeSnapshotUpdates(ctx, cfg.AMQPQueue, func(ctx context.Context, msg *amqp.SnapshotUpdatedMessage) error {
			logger.InfoContext(ctx, "Snapshot updated",
				log.FieldYear, msg.Year,
				"last_update", msg.LastUpdate,
				"prepaid_total", core.FormatYuan(msg.Total.PrepaidTotal),
				"paid_public_total", core.FormatYuan(msg.Total.PaidPublicTotal),
				"pending_total", core.FormatYuan(msg.Total.PendingTotal),
				log.FieldFallbacks, msg.Fallbacks)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
