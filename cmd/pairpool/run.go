package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairScope/internal/config"
	"pairScope/internal/ledger"
	"pairScope/internal/registry"
	"pairScope/internal/replay"
	"pairScope/internal/storage"
	"pairScope/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Records == "" || cfg.Errors == "" {
		return fmt.Errorf("records and errors paths are required")
	}
	defaultFeeRate, err := decimal.NewFromString(cfg.DefaultFeeRate)
	if err != nil {
		return fmt.Errorf("parse default-fee-rate: %w", err)
	}
	oracle, err := ledger.ParseTaxRates(cfg.TaxRates)
	if err != nil {
		return err
	}

	file, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	requests, err := replay.ReadRequests(file)
	file.Close()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		snapshots storage.SnapshotStore
		pools     replay.PoolSink
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		if cfg.SnapshotEnabled {
			snapshots = store.SnapshotStore(cfg.SnapshotName)
		}
		pools = store
	} else {
		snapshots = storage.NewFileSnapshotStore(cfg.Snapshot, cfg.SnapshotEnabled)
	}

	bank := ledger.NewMemoryBank()
	reg := registry.New(registry.Config{
		Bank:         bank,
		Tax:          oracle,
		TaxCollector: cfg.TaxCollector,
		Logger:       logger,
	})

	runner := replay.NewRunner(replay.RunConfig{
		BatchSize:      cfg.BatchSize,
		Workers:        cfg.Workers,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		DefaultFeeRate: defaultFeeRate,
	}, reg, bank, storage.NewJsonlJournal(cfg.Records, cfg.Errors), snapshots, pools, logger)

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.Int("requests", len(requests)),
		zap.String("records", cfg.Records),
		zap.String("errors", cfg.Errors),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("snapshot_enabled", cfg.SnapshotEnabled),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("workers", cfg.Workers),
		zap.Int("tax_rates", len(cfg.TaxRates)),
	)

	summary, err := runner.Run(ctx, requests)
	if err != nil {
		return err
	}
	logger.Info("replay complete",
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Uint64("last_seq", summary.LastSeq),
	)
	return nil
}
