package amm

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	d := dec(t, s)
	return &d
}

func TestComputeSwapWorkedExample(t *testing.T) {
	quote, err := ComputeSwap(u(69_000_000), u(420_000_000), u(1_000_000), dec(t, "0.003"))
	require.NoError(t, err)

	assert.Equal(t, uint64(6_000_000), quote.ReturnAmount.Uint64())
	assert.Equal(t, uint64(18_000), quote.FeeAmount.Uint64())
	assert.Equal(t, uint64(5_982_000), quote.NetAmount().Uint64())
	// floor(1e6 * 420e6 / 69e6) - 6e6
	assert.Equal(t, uint64(86_956), quote.SpreadAmount.Uint64())
}

func TestComputeSwapWideSpreadDoesNotOverflow(t *testing.T) {
	askPool := new(uint256.Int).Lsh(u(1), 200)
	offer := new(uint256.Int).Lsh(u(1), 60)

	quote, err := ComputeSwap(u(1), askPool, offer, dec(t, "0.003"))
	require.NoError(t, err)
	assert.True(t, quote.ReturnAmount.Lt(askPool))
	assert.False(t, quote.ReturnAmount.IsZero())
	// the marginal-price return is 2^260, so the spread saturates
	assert.Equal(t, new(uint256.Int).SetAllOne(), quote.SpreadAmount)
}

func TestComputeSwapZeroOffer(t *testing.T) {
	quote, err := ComputeSwap(u(10), u(10), u(0), dec(t, "0.003"))
	require.NoError(t, err)
	assert.True(t, quote.ReturnAmount.IsZero())
	assert.True(t, quote.FeeAmount.IsZero())
	assert.True(t, quote.SpreadAmount.IsZero())

	// a zero offer is a no-op even against an empty pool
	_, err = ComputeSwap(u(0), u(0), u(0), dec(t, "0.003"))
	require.NoError(t, err)
}

func TestComputeSwapEmptyPool(t *testing.T) {
	_, err := ComputeSwap(u(0), u(100), u(5), dec(t, "0.003"))
	assert.True(t, errors.Is(err, ErrInsufficientReserve))
}

func TestComputeSwapOverflow(t *testing.T) {
	maxAmount := new(uint256.Int).SetAllOne()

	_, err := ComputeSwap(maxAmount, u(1), u(1), dec(t, "0.003"))
	assert.True(t, errors.Is(err, ErrArithmeticOverflow), "offer reserve overflow: %v", err)

	huge := new(uint256.Int).Lsh(u(1), 200)
	_, err = ComputeSwap(huge, huge, u(1), dec(t, "0.003"))
	assert.True(t, errors.Is(err, ErrArithmeticOverflow), "invariant overflow: %v", err)
}

func TestComputeSwapCurveNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	fee := dec(t, "0.003")

	for i := 0; i < 500; i++ {
		rIn := uint64(rng.Int63n(1_000_000_000_000) + 1)
		rOut := uint64(rng.Int63n(1_000_000_000_000) + 1)
		offer := uint64(rng.Int63n(10_000_000_000_000) + 1)

		quote, err := ComputeSwap(u(rIn), u(rOut), u(offer), fee)
		require.NoError(t, err)
		require.True(t, quote.ReturnAmount.Lt(u(rOut)), "return %s >= reserve %d", quote.ReturnAmount.Dec(), rOut)

		before := new(big.Int).Mul(new(big.Int).SetUint64(rIn), new(big.Int).SetUint64(rOut))
		outAfter := new(big.Int).Sub(new(big.Int).SetUint64(rOut), quote.ReturnAmount.ToBig())
		after := new(big.Int).Mul(new(big.Int).Add(new(big.Int).SetUint64(rIn), new(big.Int).SetUint64(offer)), outAfter)
		require.True(t, after.Cmp(before) >= 0, "k decreased for rIn=%d rOut=%d offer=%d", rIn, rOut, offer)

		// keeping the fee in the pool only grows k further
		outAfterFee := new(big.Int).Add(outAfter, quote.FeeAmount.ToBig())
		withFee := new(big.Int).Mul(new(big.Int).Add(new(big.Int).SetUint64(rIn), new(big.Int).SetUint64(offer)), outAfterFee)
		require.True(t, withFee.Cmp(after) >= 0)
	}
}

func TestAssertMaxSpread(t *testing.T) {
	offerPool, askPool := u(70_000_000), u(414_018_001)

	large, err := ComputeSwap(offerPool, askPool, u(50_000_000), dec(t, "0.003"))
	require.NoError(t, err)
	err = AssertMaxSpread(decPtr(t, "0.01"), nil, offerPool, askPool, u(50_000_000), large.ReturnAmount)
	assert.True(t, errors.Is(err, ErrMaxSpreadExceeded))

	// no tolerance, no check
	require.NoError(t, AssertMaxSpread(nil, nil, offerPool, askPool, u(50_000_000), large.ReturnAmount))

	small, err := ComputeSwap(offerPool, askPool, u(100_000), dec(t, "0.003"))
	require.NoError(t, err)
	require.NoError(t, AssertMaxSpread(decPtr(t, "0.01"), nil, offerPool, askPool, u(100_000), small.ReturnAmount))
}

func TestAssertMaxSpreadBeliefPrice(t *testing.T) {
	offerPool, askPool := u(69_000_000), u(420_000_000)
	ret := u(6_000_000)

	// expected return 1e6/0.16 = 6.25e6, spread 4%
	err := AssertMaxSpread(decPtr(t, "0.01"), decPtr(t, "0.16"), offerPool, askPool, u(1_000_000), ret)
	assert.True(t, errors.Is(err, ErrMaxSpreadExceeded))
	require.NoError(t, AssertMaxSpread(decPtr(t, "0.05"), decPtr(t, "0.16"), offerPool, askPool, u(1_000_000), ret))

	// the pool pays more than the caller believed
	require.NoError(t, AssertMaxSpread(decPtr(t, "0"), decPtr(t, "0.17"), offerPool, askPool, u(1_000_000), ret))
}

func TestAssertMaxSpreadRejectsBadParameters(t *testing.T) {
	err := AssertMaxSpread(decPtr(t, "1.5"), nil, u(1), u(1), u(1), u(0))
	assert.True(t, errors.Is(err, ErrInvalidParameter))

	err = AssertMaxSpread(decPtr(t, "0.1"), decPtr(t, "-1"), u(1), u(1), u(1), u(0))
	assert.True(t, errors.Is(err, ErrInvalidParameter))
}

func TestComputeOfferAmount(t *testing.T) {
	quote, err := ComputeOfferAmount(u(69_000_000), u(420_000_000), u(5_982_000), dec(t, "0.003"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), quote.OfferAmount.Uint64())
	assert.Equal(t, uint64(6_000_000), quote.ReturnAmount.Uint64())
	assert.Equal(t, uint64(18_000), quote.FeeAmount.Uint64())

	_, err = ComputeOfferAmount(u(69_000_000), u(420_000_000), u(420_000_000), dec(t, "0.003"))
	assert.True(t, errors.Is(err, ErrInsufficientReserve))
}

func TestComputeOfferAmountCoversAsk(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	fee := dec(t, "0.003")
	for i := 0; i < 200; i++ {
		offerPool := uint64(rng.Int63n(1_000_000_000) + 1_000)
		askPool := uint64(rng.Int63n(1_000_000_000) + 1_000)
		ask := uint64(rng.Int63n(int64(askPool/2)) + 1)

		quote, err := ComputeOfferAmount(u(offerPool), u(askPool), u(ask), fee)
		require.NoError(t, err)

		forward, err := ComputeSwap(u(offerPool), u(askPool), quote.OfferAmount, fee)
		require.NoError(t, err)
		require.False(t, forward.NetAmount().Lt(u(ask)), "offer %s nets %s < ask %d", quote.OfferAmount.Dec(), forward.NetAmount().Dec(), ask)
	}
}
