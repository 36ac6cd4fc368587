package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"pairScope/internal/chain"
	"pairScope/internal/model"
	"pairScope/internal/storage"
)

const (
	tvlMethodReserves = "journal_reserves"
	tvlMethodLatest   = "balance_of_latest"
	tvlMethodNone     = "unavailable"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds  uint64
	BatchSize      int
	RecomputeFrom  uint64
	StateStore     StateStore
	NativeDecimals uint8
	TokenDecimals  uint8
}

// Sink receives pool metadata and window metrics. *postgres.Store satisfies it.
type Sink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator folds journaled operations into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         Sink
	chainClient  *chain.Client
	logger       *zap.Logger
	decimals     *TokenDecimalsCache
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.Pool

	batch []model.PoolWindowMetrics
	pools []model.Pool
}

// NewAggregator builds an Aggregator. chainClient may be nil, in which case
// token decimals fall back to Config.TokenDecimals and TVL comes from the
// journal.
func NewAggregator(cfg Config, sink Sink, chainClient *chain.Client, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		chainClient:  chainClient,
		logger:       logger,
		decimals:     NewTokenDecimalsCache(),
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.Pool),
	}
}

// Run aggregates an operation journal file.
func (a *Aggregator) Run(ctx context.Context, recordsPath string) error {
	if a.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	maxTs := startTs
	var total, aggregated, skipped, failed int

	err = storage.ReadRecordsFile(recordsPath, func(record model.OperationRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		if record.Kind == model.OpInstantiate {
			a.registerInstantiate(record)
		}
		if record.PoolID == "" || record.Kind == model.OpInstantiate || record.Timestamp <= startTs {
			skipped++
			return nil
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		acc := a.accumulators[record.PoolID]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[record.PoolID] = acc
		} else if acc.WindowStart != windowStart {
			a.flushAccumulator(ctx, acc)
			aggregated++
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[record.PoolID] = acc
		}

		if err := acc.AddRecord(record); err != nil {
			failed++
			a.logger.Warn("aggregate record", zap.Error(err), zap.String("pool", record.PoolID), zap.Uint64("seq", record.Seq))
			return nil
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(a.batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx); err != nil {
				return err
			}
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(a.accumulators))
	for id := range a.accumulators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a.flushAccumulator(ctx, a.accumulators[id])
		aggregated++
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := a.flushBatches(ctx); err != nil {
		return err
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", aggregated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the timestamp before the earliest open window so a
// restart recomputes every window that was not flushed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context) error {
	if len(a.pools) > 0 {
		if err := a.sink.UpsertPools(ctx, a.pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		a.pools = a.pools[:0]
	}
	if len(a.batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, a.batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
		a.batch = a.batch[:0]
	}
	return nil
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) {
	if acc == nil {
		return
	}
	a.registerAccumulator(acc)

	decimals0 := a.getDecimals(ctx, acc.AssetInfos[0])
	decimals1 := a.getDecimals(ctx, acc.AssetInfos[1])

	tvl0Int, tvl1Int, tvlMethod := a.windowTVL(ctx, acc)
	var tvl0Str, tvl1Str *string
	if tvl0Int != nil {
		val := formatTokenAmount(tvl0Int, decimals0)
		tvl0Str = &val
	}
	if tvl1Int != nil {
		val := formatTokenAmount(tvl1Int, decimals1)
		tvl1Str = &val
	}

	feeRate0, feeRate1 := computeFeeRates(acc.Fee[0], acc.Fee[1], tvl0Int, tvl1Int)
	apr := computeAPR(feeRate0, feeRate1, a.cfg.WindowSeconds)

	a.batch = append(a.batch, model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		ProvideCount:   acc.ProvideCount,
		WithdrawCount:  acc.WithdrawCount,
		Volume0:        formatTokenAmount(acc.Volume[0], decimals0),
		Volume1:        formatTokenAmount(acc.Volume[1], decimals1),
		Fee0:           formatTokenAmount(acc.Fee[0], decimals0),
		Fee1:           formatTokenAmount(acc.Fee[1], decimals1),
		Tax0:           formatTokenAmount(acc.Tax[0], decimals0),
		Tax1:           formatTokenAmount(acc.Tax[1], decimals1),
		FeeRate0:       feeRate0,
		FeeRate1:       feeRate1,
		TVL0:           tvl0Str,
		TVL1:           tvl1Str,
		APR:            apr,
		TVLMethod:      tvlMethod,
	})
}

func (a *Aggregator) registerInstantiate(record model.OperationRecord) {
	var data model.InstantiateData
	if err := record.DecodeData(&data); err != nil {
		a.logger.Warn("decode instantiate", zap.Error(err), zap.Uint64("seq", record.Seq))
		return
	}
	a.registerPool(model.Pool{
		ID:             record.PoolID,
		Asset0:         data.AssetInfos[0].String(),
		Asset1:         data.AssetInfos[1].String(),
		LiquidityToken: data.LiquidityToken,
		FeeRate:        data.FeeRate,
		FirstSeenSeq:   record.Seq,
	})
}

// registerAccumulator covers journals that start after a pool's instantiation.
func (a *Aggregator) registerAccumulator(acc *Accumulator) {
	if _, ok := a.poolSeen[acc.PoolID]; ok {
		return
	}
	a.registerPool(model.Pool{
		ID:           acc.PoolID,
		Asset0:       acc.AssetInfos[0].String(),
		Asset1:       acc.AssetInfos[1].String(),
		FeeRate:      acc.FeeRate,
		FirstSeenSeq: acc.FirstSeq,
	})
}

func (a *Aggregator) registerPool(pool model.Pool) {
	existing, ok := a.poolSeen[pool.ID]
	if ok && existing.FirstSeenSeq <= pool.FirstSeenSeq {
		return
	}
	a.poolSeen[pool.ID] = pool
	a.pools = append(a.pools, pool)
}

// getDecimals resolves display decimals. Failures fall back to the configured
// defaults and are cached so each asset is looked up once.
func (a *Aggregator) getDecimals(ctx context.Context, info model.AssetInfo) uint8 {
	if decimals, ok := a.decimals.Get(info); ok {
		return decimals
	}
	decimals := a.cfg.TokenDecimals
	switch {
	case info.IsNative():
		decimals = a.cfg.NativeDecimals
	case a.chainClient != nil && chainResolvable(info):
		fetched, err := FetchTokenDecimals(ctx, a.chainClient, info)
		if err != nil {
			a.logger.Warn("token decimals", zap.String("asset", info.String()), zap.Error(err))
		} else {
			decimals = fetched
		}
	}
	a.decimals.Set(info, decimals)
	return decimals
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var earliest uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if earliest == 0 || entry.WindowStart < earliest {
			earliest = entry.WindowStart
		}
	}
	return earliest
}
