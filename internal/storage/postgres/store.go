package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairScope/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for snapshots and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to pg: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store uses. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pair_pools (
				pool_id, asset0, asset1, liquidity_token, fee_rate, first_seen_seq, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				asset0 = EXCLUDED.asset0,
				asset1 = EXCLUDED.asset1,
				liquidity_token = EXCLUDED.liquidity_token,
				fee_rate = EXCLUDED.fee_rate,
				first_seen_seq = LEAST(pair_pools.first_seen_seq, EXCLUDED.first_seen_seq),
				updated_at = now()
		`,
			pool.ID,
			pool.Asset0,
			pool.Asset1,
			pool.LiquidityToken,
			pool.FeeRate,
			int64(pool.FirstSeenSeq),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, provide_count, withdraw_count, volume0, volume1, fee0, fee1, tax0, tax1,
				fee_rate0, fee_rate1, tvl0, tvl1, apr, tvl_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				provide_count = EXCLUDED.provide_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				tax0 = EXCLUDED.tax0,
				tax1 = EXCLUDED.tax1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				tvl0 = EXCLUDED.tvl0,
				tvl1 = EXCLUDED.tvl1,
				apr = EXCLUDED.apr,
				tvl_method = EXCLUDED.tvl_method,
				updated_at = now()
		`,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.ProvideCount),
			int64(m.WithdrawCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.Tax0,
			m.Tax1,
			m.FeeRate0,
			m.FeeRate1,
			m.TVL0,
			m.TVL1,
			m.APR,
			m.TVLMethod,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
