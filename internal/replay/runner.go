package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairScope/internal/amm"
	"pairScope/internal/model"
	"pairScope/internal/registry"
	"pairScope/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	BatchSize      int
	Workers        int
	MaxRetries     int
	RetryBackoff   time.Duration
	DefaultFeeRate decimal.Decimal
}

// Ledger is the external ledger the replay settles against. Its balances are
// part of every snapshot.
type Ledger interface {
	amm.Bank
	Balances() []model.Balance
	Restore(balances []model.Balance) error
}

// PoolSink receives metadata of newly instantiated pools.
type PoolSink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
}

// Summary reports the outcome of a replay.
type Summary struct {
	Applied  int
	Rejected int
	Skipped  int
	LastSeq  uint64
}

// Runner feeds operation requests through the registry, journals the
// outcome and snapshots state after every batch.
type Runner struct {
	cfg       RunConfig
	registry  *registry.Registry
	ledger    Ledger
	journal   storage.Journal
	snapshots storage.SnapshotStore
	pools     PoolSink
	logger    *zap.Logger
	now       func() time.Time

	mu           sync.Mutex
	instantiated []model.Pool
}

// NewRunner builds a Runner. reg must settle against ledger. pools may be nil.
func NewRunner(cfg RunConfig, reg *registry.Registry, ledger Ledger, journal storage.Journal, snapshots storage.SnapshotStore, pools PoolSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:       cfg,
		registry:  reg,
		ledger:    ledger,
		journal:   journal,
		snapshots: snapshots,
		pools:     pools,
		logger:    logger,
		now:       time.Now,
	}
}

// Resume restores the registry and ledger from the last snapshot and returns
// its sequence. It returns 0 when there is no snapshot.
func (r *Runner) Resume(ctx context.Context) (uint64, error) {
	if r.snapshots == nil {
		return 0, nil
	}
	snapshot, ok, err := r.snapshots.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if err := r.ledger.Restore(snapshot.Balances); err != nil {
		return 0, fmt.Errorf("restore balances: %w", err)
	}
	if err := r.registry.Restore(snapshot.Pools); err != nil {
		return 0, fmt.Errorf("restore pools: %w", err)
	}
	r.logger.Info("resume from snapshot",
		zap.Uint64("last_seq", snapshot.LastSeq),
		zap.Int("pools", len(snapshot.Pools)),
		zap.Int("balances", len(snapshot.Balances)),
	)
	return snapshot.LastSeq, nil
}

// Run replays requests. Requests at or before the snapshot sequence are
// skipped. A rejected request is journaled and does not stop the replay.
func (r *Runner) Run(ctx context.Context, requests []model.OperationRequest) (Summary, error) {
	if r.registry == nil {
		return Summary{}, fmt.Errorf("registry is nil")
	}
	if r.ledger == nil {
		return Summary{}, fmt.Errorf("ledger is nil")
	}
	if r.journal == nil {
		return Summary{}, fmt.Errorf("journal is nil")
	}

	lastSeq, err := r.Resume(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{LastSeq: lastSeq}

	pending := requests[:0:0]
	for _, req := range requests {
		if lastSeq > 0 && req.Seq <= lastSeq {
			summary.Skipped++
			continue
		}
		pending = append(pending, req)
	}
	if len(pending) == 0 {
		r.logger.Info("nothing to replay", zap.Uint64("last_seq", lastSeq), zap.Int("skipped", summary.Skipped))
		return summary, nil
	}

	batches, err := splitBatches(pending, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		records, rejected, err := r.runBatch(ctx, batch)
		if err != nil {
			return summary, err
		}
		if err := r.flush(ctx, batch[len(batch)-1].Seq, records, rejected); err != nil {
			return summary, err
		}

		summary.Applied += len(records)
		summary.Rejected += len(rejected)
		summary.LastSeq = batch[len(batch)-1].Seq

		r.logger.Info("batch complete",
			zap.Uint64("from_seq", batch[0].Seq),
			zap.Uint64("to_seq", summary.LastSeq),
			zap.Int("applied", len(records)),
			zap.Int("rejected", len(rejected)),
		)
	}
	return summary, nil
}

type outcome struct {
	record   *model.OperationRecord
	rejected *model.OperationError
}

// runBatch executes a batch segment by segment. Within a segment lanes run
// concurrently while each lane sees its requests in seq order.
func (r *Runner) runBatch(ctx context.Context, batch []model.OperationRequest) ([]model.OperationRecord, []model.OperationError, error) {
	outcomes := make([]outcome, len(batch))

	for _, seg := range splitSegments(batch) {
		if seg.isBarrier {
			out, err := r.execute(ctx, batch[seg.barrier])
			if err != nil {
				return nil, nil, err
			}
			outcomes[seg.barrier] = out
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		for _, lane := range seg.order {
			indexes := seg.groups[lane]
			g.Go(func() error {
				for _, idx := range indexes {
					out, err := r.execute(gctx, batch[idx])
					if err != nil {
						return err
					}
					outcomes[idx] = out
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	}

	var (
		records  []model.OperationRecord
		rejected []model.OperationError
	)
	for _, out := range outcomes {
		switch {
		case out.record != nil:
			records = append(records, *out.record)
		case out.rejected != nil:
			rejected = append(rejected, *out.rejected)
		}
	}
	return records, rejected, nil
}

// execute applies one request. Only a cancelled context is returned as an
// error; every other failure becomes a rejection.
func (r *Runner) execute(ctx context.Context, req model.OperationRequest) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	record, err := r.apply(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{}, ctxErr
		}
		r.logger.Debug("request rejected",
			zap.Uint64("seq", req.Seq),
			zap.String("op", req.Op),
			zap.String("pool", req.Pool),
			zap.Error(err),
		)
		return outcome{rejected: &model.OperationError{
			Seq:    req.Seq,
			Op:     req.Op,
			PoolID: req.Pool,
			Sender: req.Sender,
			Kind:   errorKind(err),
			Error:  err.Error(),
		}}, nil
	}
	return outcome{record: &record}, nil
}

// flush journals a batch and then snapshots state at lastSeq.
func (r *Runner) flush(ctx context.Context, lastSeq uint64, records []model.OperationRecord, rejected []model.OperationError) error {
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(context.Context) error {
		if err := r.journal.PutRecords(records); err != nil {
			r.logger.Warn("journal records failed", zap.Error(err), zap.Uint64("last_seq", lastSeq))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal records: %w", err)
	}
	err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(context.Context) error {
		return r.journal.PutErrors(rejected)
	})
	if err != nil {
		return fmt.Errorf("journal errors: %w", err)
	}

	if pools := r.takeInstantiated(); r.pools != nil && len(pools) > 0 {
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			return r.pools.UpsertPools(ctx, pools)
		})
		if err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}

	if r.snapshots == nil {
		return nil
	}
	snapshot := model.Snapshot{
		LastSeq:   lastSeq,
		Pools:     r.registry.Snapshot(),
		Balances:  r.ledger.Balances(),
		UpdatedAt: r.now().UTC().Format(time.RFC3339Nano),
	}
	err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := r.snapshots.Save(ctx, snapshot); err != nil {
			r.logger.Warn("save snapshot failed", zap.Error(err), zap.Uint64("last_seq", lastSeq))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *Runner) markInstantiated(pool model.Pool) {
	r.mu.Lock()
	r.instantiated = append(r.instantiated, pool)
	r.mu.Unlock()
}

func (r *Runner) takeInstantiated() []model.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pools := r.instantiated
	r.instantiated = nil
	return pools
}
