package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"propertyfees/internal/cli"
	"propertyfees/internal/config"
	"propertyfees/internal/coordinator"
	"propertyfees/internal/core"
	"propertyfees/internal/log"
	"propertyfees/internal/sensor"
	"propertyfees/internal/snapshot"
)

func rootCmd() *cobra.Command {
	var (
		year     int
		category string
		sensors  bool
		compact  bool
	)

	cmd := &cobra.Command{
		Use:   "fetch-once",
		Short: "Fetch the property fees once and print them as JSON",
		Long: `Runs a single refresh against the vendor API using the same environment
as the server and prints the snapshot, a single category, or the sensor list.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			cfg := config.Load()
			if year != 0 {
				cfg.Year = year
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg)

			var cat core.Category
			if category != "" {
				c, err := core.ParseCategory(category)
				if err != nil {
					return err
				}
				cat = c
			}

			b := cli.SnapshotBuilder(cfg, logger)
			out, err := fetch(cmd.Context(), b, cat, sensors, cfg.ScanInterval)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(out)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "data year (default: HENGDA_YEAR)")
	cmd.Flags().StringVar(&category, "category", "", "only fetch one category (paid, prepaid, pending)")
	cmd.Flags().BoolVar(&sensors, "sensors", false, "print the sensor list instead of the snapshot")
	cmd.Flags().BoolVar(&compact, "compact", false, "print JSON on a single line")
	cmd.MarkFlagsMutuallyExclusive("category", "sensors")
	return cmd
}

func fetch(ctx context.Context, b *snapshot.Builder, cat core.Category, sensors bool, interval time.Duration) (any, error) {
	switch cat {
	case core.Paid:
		return categoryOutput(b.Paid(ctx))
	case core.Prepaid:
		return categoryOutput(b.Prepaid(ctx))
	case core.Pending:
		return categoryOutput(b.Pending(ctx))
	}

	snap, err := b.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	if !sensors {
		return snap, nil
	}
	st := &coordinator.State{
		Snapshot:          &snap,
		LastUpdateSuccess: true,
		LastAttempt:       snap.LastUpdate,
	}
	return sensor.Build(st, b.Year(), interval), nil
}

// categoryOutput fails only when nothing could be fetched; a partial
// prepaid result is printed as is.
func categoryOutput[T any](r snapshot.Result[T]) (any, error) {
	if r.Defaulted {
		return nil, fmt.Errorf("fetch category: %w", r.Err)
	}
	return r.Mapping, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		log.New(log.DefaultConfig()).Error("fetch-once failed", log.FieldError, err)
		os.Exit(1)
	}
}
