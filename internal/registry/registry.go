package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pairScope/internal/amm"
	"pairScope/internal/model"
)

var (
	ErrPoolNotFound = errors.New("pool not found")
	ErrPoolExists   = errors.New("pool already exists")
)

// Config wires a Registry to its external collaborators.
type Config struct {
	Bank         amm.Bank
	Tax          amm.TaxOracle
	TaxCollector string
	Logger       *zap.Logger
}

// InstantiateParams describes a new pool. An empty ID is replaced with a
// random UUID.
type InstantiateParams struct {
	ID             string
	AssetInfos     [2]model.AssetInfo
	FeeRate        decimal.Decimal
	LiquidityToken string
	MinimumReserve *uint256.Int
}

// Registry is the keyed store of pools and the caller-facing operation
// surface. It only guards the id to pool map; each pool serialises its own
// operations.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*amm.Pool
	order []string

	bank         amm.Bank
	tax          amm.TaxOracle
	taxCollector string
	logger       *zap.Logger
}

func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tax := cfg.Tax
	if tax == nil {
		tax = amm.NoTax{}
	}
	return &Registry{
		pools:        make(map[string]*amm.Pool),
		bank:         cfg.Bank,
		tax:          tax,
		taxCollector: cfg.TaxCollector,
		logger:       logger,
	}
}

// Instantiate creates an empty pool and returns its id.
func (r *Registry) Instantiate(ctx context.Context, params InstantiateParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.NewString()
	}

	pool, err := amm.NewPool(amm.PoolConfig{
		ID:             id,
		AssetInfos:     params.AssetInfos,
		FeeRate:        params.FeeRate,
		LiquidityToken: params.LiquidityToken,
		MinimumReserve: params.MinimumReserve,
		TaxCollector:   r.taxCollector,
	}, r.bank, r.tax, r.logger)
	if err != nil {
		return "", fmt.Errorf("instantiate %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrPoolExists, id)
	}
	r.pools[id] = pool
	r.order = append(r.order, id)

	r.logger.Info("pool instantiated",
		zap.String("pool", id),
		zap.String("asset0", params.AssetInfos[0].String()),
		zap.String("asset1", params.AssetInfos[1].String()),
		zap.String("fee_rate", params.FeeRate.String()),
	)
	return id, nil
}

// Pool returns the live pool for id.
func (r *Registry) Pool(id string) (*amm.Pool, error) {
	r.mu.RLock()
	pool, ok := r.pools[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return pool, nil
}

// Pools returns pool ids in creation order.
func (r *Registry) Pools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) ExecuteProvideLiquidity(ctx context.Context, poolID string, req amm.ProvideLiquidityRequest) (amm.ProvideLiquidityResult, error) {
	pool, err := r.Pool(poolID)
	if err != nil {
		return amm.ProvideLiquidityResult{}, err
	}
	return pool.ProvideLiquidity(ctx, req)
}

func (r *Registry) ExecuteSwap(ctx context.Context, poolID string, req amm.SwapRequest) (amm.SwapResult, error) {
	pool, err := r.Pool(poolID)
	if err != nil {
		return amm.SwapResult{}, err
	}
	return pool.Swap(ctx, req)
}

func (r *Registry) ExecuteWithdrawLiquidity(ctx context.Context, poolID string, req amm.WithdrawLiquidityRequest) (amm.WithdrawLiquidityResult, error) {
	pool, err := r.Pool(poolID)
	if err != nil {
		return amm.WithdrawLiquidityResult{}, err
	}
	return pool.WithdrawLiquidity(ctx, req)
}

func (r *Registry) QueryPool(poolID string) (model.PoolState, error) {
	pool, err := r.Pool(poolID)
	if err != nil {
		return model.PoolState{}, err
	}
	return pool.State(), nil
}

func (r *Registry) QueryShareBalance(poolID, holder string) (*uint256.Int, error) {
	pool, err := r.Pool(poolID)
	if err != nil {
		return nil, err
	}
	return pool.ShareBalance(holder), nil
}

func (r *Registry) QuerySimulation(ctx context.Context, poolID string, offer amm.AssetAmount) (amm.SwapResult, error) {
	pool, err := r.Pool(poolID)
	if err != nil {
		return amm.SwapResult{}, err
	}
	return pool.Simulate(ctx, offer)
}

func (r *Registry) QueryReverseSimulation(ctx context.Context, poolID string, ask amm.AssetAmount) (amm.AssetAmount, amm.ReverseQuote, error) {
	pool, err := r.Pool(poolID)
	if err != nil {
		return amm.AssetAmount{}, amm.ReverseQuote{}, err
	}
	return pool.ReverseSimulate(ctx, ask)
}

// Snapshot returns the state of every pool in creation order.
func (r *Registry) Snapshot() []model.PoolState {
	r.mu.RLock()
	pools := make([]*amm.Pool, 0, len(r.order))
	for _, id := range r.order {
		pools = append(pools, r.pools[id])
	}
	r.mu.RUnlock()

	out := make([]model.PoolState, 0, len(pools))
	for _, pool := range pools {
		out = append(out, pool.State())
	}
	return out
}

// Restore replaces every pool with the given states. On error the registry
// is left unchanged.
func (r *Registry) Restore(states []model.PoolState) error {
	pools := make(map[string]*amm.Pool, len(states))
	order := make([]string, 0, len(states))
	for _, state := range states {
		if _, ok := pools[state.ID]; ok {
			return fmt.Errorf("%w: %s", ErrPoolExists, state.ID)
		}
		pool, err := amm.RestorePool(state, r.taxCollector, r.bank, r.tax, r.logger)
		if err != nil {
			return fmt.Errorf("restore pool %s: %w", state.ID, err)
		}
		pools[state.ID] = pool
		order = append(order, state.ID)
	}

	r.mu.Lock()
	r.pools = pools
	r.order = order
	r.mu.Unlock()
	return nil
}
