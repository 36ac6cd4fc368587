package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairScope/internal/aggregate"
	"pairScope/internal/chain"
	"pairScope/internal/config"
	"pairScope/internal/storage/postgres"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	windowSeconds, err := cfg.WindowSeconds()
	if err != nil {
		return err
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chainClient *chain.Client
	if cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		chainID, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		logger.Info("rpc connected", zap.String("chain_id", chainID.String()))
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	var stateStore aggregate.StateStore
	if cfg.StateFile != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.StateFile, WindowSeconds: windowSeconds}
	} else {
		stateStore = &aggregate.DBStateStore{Store: store, Name: "aggregator", WindowSeconds: windowSeconds}
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds:  windowSeconds,
		BatchSize:      cfg.BatchSize,
		RecomputeFrom:  recomputeFrom,
		StateStore:     stateStore,
		NativeDecimals: cfg.NativeDecimals,
		TokenDecimals:  cfg.TokenDecimals,
	}, store, chainClient, logger)

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("rpc", chainClient != nil),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", recomputeFrom),
	)

	return agg.Run(ctx, cfg.Input)
}
