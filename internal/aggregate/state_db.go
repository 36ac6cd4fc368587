package aggregate

import (
	"context"
	"fmt"

	"pairScope/internal/storage/postgres"
)

// DBStateStore stores state in the aggregate_state table, one row per
// window size.
type DBStateStore struct {
	Store         *postgres.Store
	Name          string
	WindowSeconds uint64
}

func (s *DBStateStore) key() string {
	return fmt.Sprintf("%s:%d", s.Name, s.WindowSeconds)
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.key())
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.key(), ts)
}
