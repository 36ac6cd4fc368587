package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pairpool",
		Short:        "Constant-product pair pool replay and analytics",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay operation requests through the pair pools",
		RunE:  runReplay,
	}

	runCmd.Flags().String("in", "", "input operation requests JSONL")
	runCmd.Flags().String("records", "./data/records.jsonl", "operation journal JSONL")
	runCmd.Flags().String("errors", "./data/errors.jsonl", "rejected operations JSONL")
	runCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	runCmd.Flags().Bool("snapshot-enabled", true, "enable snapshots")
	runCmd.Flags().String("snapshot-name", "replay", "snapshot name when stored in Postgres")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN; snapshots and pool metadata go to Postgres when set")
	runCmd.Flags().Int("batch-size", 500, "requests per batch")
	runCmd.Flags().Int("workers", 4, "pools executed concurrently")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for journal and snapshot writes")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("default-fee-rate", "0.003", "fee rate for pools instantiated without one")
	runCmd.Flags().StringSlice("tax-rates", nil, "native asset tax rates (denom=rate[:cap], comma-separated)")
	runCmd.Flags().String("tax-collector", "tax_collector", "account receiving transfer tax")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the operation journal into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("rpc", "", "optional EVM RPC URL for token decimals and balanceOf")
	aggregateCmd.Flags().String("in", "./data/records.jsonl", "input operation journal JSONL")
	aggregateCmd.Flags().String("window", "1h", "aggregation window (e.g. 5m, 1h, 24h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().Uint("native-decimals", 6, "display decimals of native assets")
	aggregateCmd.Flags().Uint("token-decimals", 6, "display decimals of tokens not resolvable on chain")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Simulate a swap against the last snapshot",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("snapshot", "./data/snapshot.json", "snapshot file path")
	quoteCmd.Flags().String("snapshot-name", "replay", "snapshot name when stored in Postgres")
	quoteCmd.Flags().String("pg-dsn", "", "Postgres DSN; read the snapshot from Postgres when set")
	quoteCmd.Flags().String("pool", "", "pool id")
	quoteCmd.Flags().String("asset", "", "offer asset, or ask asset with --reverse (native:<denom> or token:<addr>)")
	quoteCmd.Flags().String("amount", "", "amount in the asset's smallest unit")
	quoteCmd.Flags().Bool("reverse", false, "price the offer needed to receive amount")
	quoteCmd.Flags().StringSlice("tax-rates", nil, "native asset tax rates (denom=rate[:cap], comma-separated)")
	quoteCmd.Flags().String("tax-collector", "tax_collector", "account receiving transfer tax")
	quoteCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
