package storage

import (
	"context"

	"pairScope/internal/model"
)

// Journal defines a sink for executed and rejected operations.
type Journal interface {
	PutRecords(records []model.OperationRecord) error
	PutErrors(errs []model.OperationError) error
}

// SnapshotStore persists the replay snapshot. Load reports false when no
// snapshot has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (model.Snapshot, bool, error)
	Save(ctx context.Context, snapshot model.Snapshot) error
}
