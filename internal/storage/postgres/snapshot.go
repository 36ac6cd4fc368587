package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pairScope/internal/model"
)

// SnapshotStore keeps one named replay snapshot in Postgres. Save replaces
// the pools, share balances, bank balances and last sequence in a single
// transaction.
type SnapshotStore struct {
	store *Store
	name  string
}

func (s *Store) SnapshotStore(name string) *SnapshotStore {
	return &SnapshotStore{store: s, name: name}
}

func (s *SnapshotStore) Load(ctx context.Context) (model.Snapshot, bool, error) {
	if s.name == "" {
		return model.Snapshot{}, false, fmt.Errorf("snapshot name required")
	}
	pool := s.store.pool

	var (
		lastSeq   int64
		updatedAt time.Time
	)
	row := pool.QueryRow(ctx, `SELECT last_seq, updated_at FROM replay_state WHERE name=$1`, s.name)
	if err := row.Scan(&lastSeq, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("load replay state: %w", err)
	}
	snapshot := model.Snapshot{
		LastSeq:   uint64(lastSeq),
		UpdatedAt: updatedAt.UTC().Format(time.RFC3339Nano),
	}

	rows, err := pool.Query(ctx, `
		SELECT pool_id, asset_infos, reserve0::text, reserve1::text, liquidity_token, fee_rate::text,
			minimum_reserve::text, total_share::text, state
		FROM pool_states WHERE snapshot_name=$1 ORDER BY position
	`, s.name)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load pool states: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var (
			state model.PoolState
			infos []byte
		)
		if err := rows.Scan(&state.ID, &infos, &state.Reserves[0], &state.Reserves[1], &state.LiquidityToken,
			&state.FeeRate, &state.MinimumReserve, &state.TotalShare, &state.State); err != nil {
			rows.Close()
			return model.Snapshot{}, false, fmt.Errorf("scan pool state: %w", err)
		}
		if err := json.Unmarshal(infos, &state.AssetInfos); err != nil {
			rows.Close()
			return model.Snapshot{}, false, fmt.Errorf("parse asset infos of %s: %w", state.ID, err)
		}
		state.Shares = make(map[string]string)
		index[state.ID] = len(snapshot.Pools)
		snapshot.Pools = append(snapshot.Pools, state)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load pool states: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT pool_id, holder, amount::text FROM share_balances WHERE snapshot_name=$1
	`, s.name)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load share balances: %w", err)
	}
	for rows.Next() {
		var poolID, holder, amount string
		if err := rows.Scan(&poolID, &holder, &amount); err != nil {
			rows.Close()
			return model.Snapshot{}, false, fmt.Errorf("scan share balance: %w", err)
		}
		if i, ok := index[poolID]; ok {
			snapshot.Pools[i].Shares[holder] = amount
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load share balances: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT holder, asset_info, amount::text FROM bank_balances WHERE snapshot_name=$1 ORDER BY asset, holder
	`, s.name)
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load bank balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			balance model.Balance
			info    []byte
		)
		if err := rows.Scan(&balance.Holder, &info, &balance.Amount); err != nil {
			return model.Snapshot{}, false, fmt.Errorf("scan bank balance: %w", err)
		}
		if err := json.Unmarshal(info, &balance.Info); err != nil {
			return model.Snapshot{}, false, fmt.Errorf("parse asset info of %s: %w", balance.Holder, err)
		}
		snapshot.Balances = append(snapshot.Balances, balance)
	}
	if err := rows.Err(); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load bank balances: %w", err)
	}

	return snapshot, true, nil
}

func (s *SnapshotStore) Save(ctx context.Context, snapshot model.Snapshot) error {
	if s.name == "" {
		return fmt.Errorf("snapshot name required")
	}

	tx, err := s.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"pool_states", "share_balances", "bank_balances"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE snapshot_name=$1`, s.name); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	batch := &pgx.Batch{}
	for position, state := range snapshot.Pools {
		infos, err := json.Marshal(state.AssetInfos)
		if err != nil {
			return fmt.Errorf("marshal asset infos of %s: %w", state.ID, err)
		}
		batch.Queue(`
			INSERT INTO pool_states (
				snapshot_name, pool_id, position, asset_infos, reserve0, reserve1, liquidity_token,
				fee_rate, minimum_reserve, total_share, state, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
		`,
			s.name, state.ID, position, infos, state.Reserves[0], state.Reserves[1], state.LiquidityToken,
			state.FeeRate, state.MinimumReserve, state.TotalShare, state.State,
		)
		for holder, amount := range state.Shares {
			batch.Queue(`
				INSERT INTO share_balances (snapshot_name, pool_id, holder, amount) VALUES ($1,$2,$3,$4)
			`, s.name, state.ID, holder, amount)
		}
	}
	for _, balance := range snapshot.Balances {
		info, err := json.Marshal(balance.Info)
		if err != nil {
			return fmt.Errorf("marshal asset info of %s: %w", balance.Holder, err)
		}
		batch.Queue(`
			INSERT INTO bank_balances (snapshot_name, asset, holder, asset_info, amount) VALUES ($1,$2,$3,$4,$5)
		`, s.name, balance.Info.String(), balance.Holder, info, balance.Amount)
	}
	batch.Queue(`
		INSERT INTO replay_state (name, last_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, updated_at = now()
	`, s.name, int64(snapshot.LastSeq))

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
