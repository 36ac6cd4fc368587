package amm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairScope/internal/amm"
	"pairScope/internal/ledger"
	"pairScope/internal/model"
)

var (
	mine = model.TokenAsset("terra1mine")
	uusd = model.NativeAsset("uusd")
)

type fixture struct {
	pool *amm.Pool
	bank *ledger.MemoryBank
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	bank := ledger.NewMemoryBank()
	oracle := ledger.NewStaticTaxOracle()
	oracle.Set("uusd", decimal.RequireFromString("0.001"), nil)

	pool, err := amm.NewPool(amm.PoolConfig{
		ID:         "pair1",
		AssetInfos: [2]model.AssetInfo{mine, uusd},
		FeeRate:    decimal.RequireFromString("0.003"),
	}, bank, oracle, nil)
	require.NoError(t, err)

	for _, holder := range []string{"alice", "bob"} {
		require.NoError(t, bank.Fund(mine, holder, uint256.NewInt(1_000_000_000)))
		require.NoError(t, bank.Fund(uusd, holder, uint256.NewInt(1_000_000_000)))
	}
	return fixture{pool: pool, bank: bank}
}

func (f fixture) balance(t *testing.T, info model.AssetInfo, holder string) uint64 {
	t.Helper()
	bal, err := f.bank.BalanceOf(context.Background(), info, holder)
	require.NoError(t, err)
	return bal.Uint64()
}

func (f fixture) reserves() (uint64, uint64) {
	a, b := f.pool.Reserves()
	return a.Amount.Uint64(), b.Amount.Uint64()
}

func (f fixture) provideInitial(t *testing.T) {
	t.Helper()
	res, err := f.pool.ProvideLiquidity(context.Background(), amm.ProvideLiquidityRequest{
		Sender: "alice",
		Deposits: [2]amm.AssetAmount{
			amm.NewAssetAmount(mine, 69_000_000),
			amm.NewAssetAmount(uusd, 420_000_000),
		},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(170_235_131), res.Shares.Uint64())
}

func swapMine(t *testing.T, f fixture, amount uint64, maxSpread *decimal.Decimal) (amm.SwapResult, error) {
	t.Helper()
	return f.pool.Swap(context.Background(), amm.SwapRequest{
		Sender:    "bob",
		Offer:     amm.NewAssetAmount(mine, amount),
		MaxSpread: maxSpread,
	})
}

func TestNewPoolValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  amm.PoolConfig
		want error
	}{
		{"missing id", amm.PoolConfig{AssetInfos: [2]model.AssetInfo{mine, uusd}}, amm.ErrInvalidParameter},
		{"same assets", amm.PoolConfig{ID: "p", AssetInfos: [2]model.AssetInfo{uusd, uusd}}, amm.ErrInvalidAsset},
		{"empty asset", amm.PoolConfig{ID: "p", AssetInfos: [2]model.AssetInfo{{}, uusd}}, amm.ErrInvalidAsset},
		{"fee too high", amm.PoolConfig{ID: "p", AssetInfos: [2]model.AssetInfo{mine, uusd}, FeeRate: decimal.NewFromInt(1)}, amm.ErrInvalidParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := amm.NewPool(tc.cfg, nil, nil, nil)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestProvideInitialLiquidity(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.pool.IsEmpty())

	f.provideInitial(t)

	a, b := f.reserves()
	assert.Equal(t, uint64(69_000_000), a)
	assert.Equal(t, uint64(420_000_000), b)
	assert.Equal(t, uint64(170_235_131), f.pool.ShareBalance("alice").Uint64())
	assert.Equal(t, uint64(170_235_131), f.pool.TotalShare().Uint64())
	assert.Equal(t, model.PoolStateActive, f.pool.State().State)

	// the external ledger mirrors the pool
	assert.Equal(t, uint64(69_000_000), f.balance(t, mine, f.pool.Address()))
	assert.Equal(t, uint64(420_000_000), f.balance(t, uusd, f.pool.Address()))
	assert.Equal(t, uint64(170_235_131), f.balance(t, f.pool.LiquidityToken(), "alice"))
	assert.Equal(t, uint64(931_000_000), f.balance(t, mine, "alice"))
}

func TestProvideLiquidityAcceptsEitherOrder(t *testing.T) {
	f := newFixture(t)
	res, err := f.pool.ProvideLiquidity(context.Background(), amm.ProvideLiquidityRequest{
		Sender: "alice",
		Deposits: [2]amm.AssetAmount{
			amm.NewAssetAmount(uusd, 420_000_000),
			amm.NewAssetAmount(mine, 69_000_000),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(170_235_131), res.Shares.Uint64())
	assert.True(t, res.Deposits[0].Info.Equal(mine))
}

func TestProvideLiquidityRejects(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)
	before := f.pool.State()

	cases := []struct {
		name string
		req  amm.ProvideLiquidityRequest
		want error
	}{
		{"zero amount", amm.ProvideLiquidityRequest{Sender: "bob", Deposits: [2]amm.AssetAmount{amm.NewAssetAmount(mine, 0), amm.NewAssetAmount(uusd, 10)}}, amm.ErrZeroAmount},
		{"foreign asset", amm.ProvideLiquidityRequest{Sender: "bob", Deposits: [2]amm.AssetAmount{amm.NewAssetAmount(model.NativeAsset("uluna"), 10), amm.NewAssetAmount(uusd, 10)}}, amm.ErrInvalidAsset},
		{"duplicate asset", amm.ProvideLiquidityRequest{Sender: "bob", Deposits: [2]amm.AssetAmount{amm.NewAssetAmount(uusd, 10), amm.NewAssetAmount(uusd, 10)}}, amm.ErrInvalidAsset},
		{"dust", amm.ProvideLiquidityRequest{Sender: "bob", Deposits: [2]amm.AssetAmount{amm.NewAssetAmount(mine, 1), amm.NewAssetAmount(uusd, 1)}}, amm.ErrZeroLiquidity},
		{"slippage", amm.ProvideLiquidityRequest{
			Sender:            "bob",
			Deposits:          [2]amm.AssetAmount{amm.NewAssetAmount(mine, 1_000_000), amm.NewAssetAmount(uusd, 5_000_000)},
			SlippageTolerance: decPtr("0.01"),
		}, amm.ErrMaxSlippageExceeded},
		{"unfunded sender", amm.ProvideLiquidityRequest{Sender: "carol", Deposits: [2]amm.AssetAmount{amm.NewAssetAmount(mine, 1_000_000), amm.NewAssetAmount(uusd, 6_086_957)}}, amm.ErrSettlement},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.pool.ProvideLiquidity(context.Background(), tc.req)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.Equal(t, before, f.pool.State())
		})
	}
}

func TestProvideLiquidityValidatesToleranceOnEmptyPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.pool.ProvideLiquidity(context.Background(), amm.ProvideLiquidityRequest{
		Sender: "alice",
		Deposits: [2]amm.AssetAmount{
			amm.NewAssetAmount(mine, 69_000_000),
			amm.NewAssetAmount(uusd, 420_000_000),
		},
		SlippageTolerance: decPtr("5"),
	})
	assert.True(t, errors.Is(err, amm.ErrInvalidParameter), "got %v", err)
	assert.True(t, f.pool.IsEmpty())
	assert.Equal(t, uint64(1_000_000_000), f.balance(t, mine, "alice"))
}

func TestSwapWorkedExample(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)

	res, err := swapMine(t, f, 1_000_000, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(6_000_000), res.ReturnAmount.Uint64())
	assert.Equal(t, uint64(18_000), res.FeeAmount.Uint64())
	assert.Equal(t, uint64(5_982_000), res.NetAmount.Uint64())
	assert.Equal(t, uint64(5_976_023), res.ReceivedAmount.Uint64())
	assert.Equal(t, uint64(5_981_999), res.Debit.Uint64())
	assert.Equal(t, uint64(5_976), res.TaxAmount.Uint64())
	assert.Equal(t, "bob", res.Receiver)

	a, b := f.reserves()
	assert.Equal(t, uint64(70_000_000), a)
	assert.Equal(t, uint64(414_018_001), b)

	assert.Equal(t, uint64(1_005_976_023), f.balance(t, uusd, "bob"))
	assert.Equal(t, uint64(999_000_000), f.balance(t, mine, "bob"))
	assert.Equal(t, uint64(5_976), f.balance(t, uusd, amm.DefaultTaxCollector))
	assert.Equal(t, b, f.balance(t, uusd, f.pool.Address()))
}

func TestSwapMaxSpreadExceededLeavesState(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)
	_, err := swapMine(t, f, 1_000_000, nil)
	require.NoError(t, err)

	before := f.pool.State()
	bobBefore := f.balance(t, mine, "bob")

	_, err = swapMine(t, f, 50_000_000, decPtr("0.01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, amm.ErrMaxSpreadExceeded))

	a, b := f.reserves()
	assert.Equal(t, uint64(70_000_000), a)
	assert.Equal(t, uint64(414_018_001), b)
	assert.Equal(t, before, f.pool.State())
	assert.Equal(t, bobBefore, f.balance(t, mine, "bob"))
}

func TestSwapZeroOfferIsNoop(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)
	before := f.pool.State()
	balances := f.bank.Balances()

	res, err := swapMine(t, f, 0, nil)
	require.NoError(t, err)
	assert.True(t, res.ReturnAmount.IsZero())
	assert.True(t, res.FeeAmount.IsZero())
	assert.Equal(t, before, f.pool.State())
	assert.Equal(t, balances, f.bank.Balances())
}

func TestSwapRejects(t *testing.T) {
	f := newFixture(t)

	_, err := swapMine(t, f, 10, nil)
	assert.True(t, errors.Is(err, amm.ErrInsufficientReserve), "empty pool: %v", err)

	f.provideInitial(t)

	_, err = f.pool.Swap(context.Background(), amm.SwapRequest{Sender: "bob", Offer: amm.NewAssetAmount(model.NativeAsset("uluna"), 10)})
	assert.True(t, errors.Is(err, amm.ErrInvalidAsset))

	_, err = f.pool.Swap(context.Background(), amm.SwapRequest{Sender: "carol", Offer: amm.NewAssetAmount(mine, 10)})
	assert.True(t, errors.Is(err, amm.ErrSettlement))
}

func TestSwapKeepsMinimumReserve(t *testing.T) {
	f := newFixture(t)
	pool, err := amm.NewPool(amm.PoolConfig{
		ID:             "pair2",
		AssetInfos:     [2]model.AssetInfo{mine, uusd},
		FeeRate:        decimal.RequireFromString("0.003"),
		MinimumReserve: uint256.NewInt(415_000_000),
	}, f.bank, amm.NoTax{}, nil)
	require.NoError(t, err)
	f.pool = pool
	f.provideInitial(t)

	before := f.pool.State()
	balances := f.bank.Balances()

	// 1,000,000 mine would leave 414,018,000 uusd behind
	_, err = swapMine(t, f, 1_000_000, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, amm.ErrInsufficientReserve), "got %v", err)
	assert.Equal(t, before, f.pool.State())
	assert.Equal(t, balances, f.bank.Balances())

	_, err = swapMine(t, f, 100_000, nil)
	require.NoError(t, err)
	_, b := f.reserves()
	assert.True(t, b >= 415_000_000)
}

func TestSwapToReceiverAndTokenPayout(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)

	res, err := f.pool.Swap(context.Background(), amm.SwapRequest{
		Sender: "bob",
		Offer:  amm.NewAssetAmount(uusd, 6_000_000),
		To:     "carol",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", res.Receiver)
	assert.True(t, res.TaxAmount.IsZero(), "token payouts are untaxed")
	assert.Equal(t, res.NetAmount, res.ReceivedAmount)
	assert.Equal(t, res.ReceivedAmount.Uint64(), f.balance(t, mine, "carol"))
}

func TestSimulateMatchesSwap(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)

	sim, err := f.pool.Simulate(context.Background(), amm.NewAssetAmount(mine, 1_000_000))
	require.NoError(t, err)
	before := f.pool.State()

	res, err := swapMine(t, f, 1_000_000, nil)
	require.NoError(t, err)
	assert.Equal(t, sim.ReturnAmount, res.ReturnAmount)
	assert.Equal(t, sim.ReceivedAmount, res.ReceivedAmount)
	assert.NotEqual(t, before, f.pool.State())
}

func TestReverseSimulate(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)

	offer, quote, err := f.pool.ReverseSimulate(context.Background(), amm.NewAssetAmount(uusd, 5_982_000))
	require.NoError(t, err)
	assert.True(t, offer.Info.Equal(mine))
	assert.Equal(t, uint64(1_000_000), offer.Amount.Uint64())
	assert.Equal(t, uint64(18_000), quote.FeeAmount.Uint64())
}

func TestWithdrawLiquidityRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)
	_, err := swapMine(t, f, 1_000_000, nil)
	require.NoError(t, err)

	aBefore, bBefore := f.reserves()
	totalBefore := f.pool.TotalShare()

	deposit, err := f.pool.ProvideLiquidity(context.Background(), amm.ProvideLiquidityRequest{
		Sender: "bob",
		Deposits: [2]amm.AssetAmount{
			amm.NewAssetAmount(mine, 7_000_000),
			amm.NewAssetAmount(uusd, 41_401_800),
		},
		SlippageTolerance: decPtr("0.01"),
	})
	require.NoError(t, err)

	_, err = f.pool.WithdrawLiquidity(context.Background(), amm.WithdrawLiquidityRequest{Sender: "bob", Shares: deposit.Shares})
	require.NoError(t, err)

	aAfter, bAfter := f.reserves()
	assert.Equal(t, totalBefore, f.pool.TotalShare())
	assert.InDelta(t, aBefore, aAfter, 10)
	assert.InDelta(t, bBefore, bAfter, 100_000)
	assert.GreaterOrEqual(t, aAfter, aBefore)
	assert.GreaterOrEqual(t, bAfter, bBefore)
	assert.True(t, f.pool.ShareBalance("bob").IsZero())
}

func TestWithdrawAllEmptiesPool(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)
	_, err := swapMine(t, f, 1_000_000, nil)
	require.NoError(t, err)

	res, err := f.pool.WithdrawLiquidity(context.Background(), amm.WithdrawLiquidityRequest{
		Sender: "alice",
		Shares: f.pool.ShareBalance("alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(70_000_000), res.Refunds[0].Amount.Uint64())
	assert.True(t, res.Taxes[0].IsZero())
	assert.False(t, res.Taxes[1].IsZero())

	assert.True(t, f.pool.IsEmpty())
	assert.Equal(t, model.PoolStateEmpty, f.pool.State().State)
	assert.Equal(t, uint64(0), f.balance(t, uusd, f.pool.Address()))
	assert.Equal(t, uint64(0), f.balance(t, mine, f.pool.Address()))
	assert.Equal(t, uint64(0), f.balance(t, f.pool.LiquidityToken(), "alice"))

	// an emptied pool takes a fresh initial deposit
	f.provideInitial(t)
}

func TestWithdrawLiquidityRejects(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)
	before := f.pool.State()

	_, err := f.pool.WithdrawLiquidity(context.Background(), amm.WithdrawLiquidityRequest{Sender: "alice", Shares: uint256.NewInt(0)})
	assert.True(t, errors.Is(err, amm.ErrZeroAmount))

	_, err = f.pool.WithdrawLiquidity(context.Background(), amm.WithdrawLiquidityRequest{Sender: "bob", Shares: uint256.NewInt(1)})
	assert.True(t, errors.Is(err, amm.ErrInsufficientShares))

	assert.Equal(t, before, f.pool.State())
}

type failingBank struct {
	*ledger.MemoryBank
	fail bool
}

func (b *failingBank) Settle(ctx context.Context, transfers []amm.Transfer) error {
	if b.fail {
		return errors.New("ledger unavailable")
	}
	return b.MemoryBank.Settle(ctx, transfers)
}

func TestSettlementFailureAborts(t *testing.T) {
	bank := &failingBank{MemoryBank: ledger.NewMemoryBank()}
	require.NoError(t, bank.Fund(mine, "alice", uint256.NewInt(100_000_000)))
	require.NoError(t, bank.Fund(uusd, "alice", uint256.NewInt(500_000_000)))

	pool, err := amm.NewPool(amm.PoolConfig{
		ID:         "pair1",
		AssetInfos: [2]model.AssetInfo{mine, uusd},
		FeeRate:    decimal.RequireFromString("0.003"),
	}, bank, amm.NoTax{}, nil)
	require.NoError(t, err)

	deposits := [2]amm.AssetAmount{amm.NewAssetAmount(mine, 69_000_000), amm.NewAssetAmount(uusd, 420_000_000)}
	_, err = pool.ProvideLiquidity(context.Background(), amm.ProvideLiquidityRequest{Sender: "alice", Deposits: deposits})
	require.NoError(t, err)
	before := pool.State()

	bank.fail = true
	_, err = pool.Swap(context.Background(), amm.SwapRequest{Sender: "alice", Offer: amm.NewAssetAmount(mine, 1_000_000)})
	assert.True(t, errors.Is(err, amm.ErrSettlement))
	_, err = pool.WithdrawLiquidity(context.Background(), amm.WithdrawLiquidityRequest{Sender: "alice", Shares: uint256.NewInt(1_000)})
	assert.True(t, errors.Is(err, amm.ErrSettlement))
	assert.Equal(t, before, pool.State())
}

func TestRestorePool(t *testing.T) {
	f := newFixture(t)
	f.provideInitial(t)
	_, err := swapMine(t, f, 1_000_000, nil)
	require.NoError(t, err)

	state := f.pool.State()
	restored, err := amm.RestorePool(state, "", f.bank, amm.NoTax{}, nil)
	require.NoError(t, err)
	assert.Equal(t, state, restored.State())

	state.TotalShare = "1"
	_, err = amm.RestorePool(state, "", f.bank, amm.NoTax{}, nil)
	assert.True(t, errors.Is(err, amm.ErrInvalidParameter))
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
