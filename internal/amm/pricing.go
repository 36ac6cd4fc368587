package amm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// SwapQuote is the pricing of a single swap against the curve. All amounts
// are denominated in the ask asset.
type SwapQuote struct {
	// ReturnAmount is the curve output before fee and tax.
	ReturnAmount *uint256.Int
	FeeAmount    *uint256.Int
	SpreadAmount *uint256.Int
}

// NetAmount is the return after the pool fee.
func (q SwapQuote) NetAmount() *uint256.Int {
	return new(uint256.Int).Sub(q.ReturnAmount, q.FeeAmount)
}

// ReverseQuote is a swap priced from the ask side.
type ReverseQuote struct {
	OfferAmount *uint256.Int
	SwapQuote
}

func zeroQuote() SwapQuote {
	return SwapQuote{ReturnAmount: zero(), FeeAmount: zero(), SpreadAmount: zero()}
}

// ComputeSwap prices offerAmount against reserves (offerPool, askPool) with the
// constant-product rule. The return is the floor of the exact curve output, so
// (offerPool+offer)*(askPool-return) never drops below offerPool*askPool.
func ComputeSwap(offerPool, askPool, offerAmount *uint256.Int, feeRate decimal.Decimal) (SwapQuote, error) {
	if offerAmount.IsZero() {
		return zeroQuote(), nil
	}
	if offerPool.IsZero() || askPool.IsZero() {
		return SwapQuote{}, fmt.Errorf("%w: pool has no liquidity", ErrInsufficientReserve)
	}

	k, err := mul(offerPool, askPool)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("invariant: %w", err)
	}
	offerAfter, err := add(offerPool, offerAmount)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("offer reserve: %w", err)
	}

	askAfter := ceilDiv(k, offerAfter)
	returnAmount := new(uint256.Int).Sub(askPool, askAfter)

	fee, err := fromDecimalFloor(toDecimal(returnAmount).Mul(feeRate))
	if err != nil {
		return SwapQuote{}, fmt.Errorf("fee: %w", err)
	}

	spread := spreadAmount(offerPool, askPool, offerAmount, returnAmount)
	return SwapQuote{ReturnAmount: returnAmount, FeeAmount: fee, SpreadAmount: spread}, nil
}

// spreadAmount is floor(offer*askPool/offerPool) - return, the shortfall
// against the marginal price. It is informational only, so it saturates at
// the largest amount instead of failing.
func spreadAmount(offerPool, askPool, offerAmount, returnAmount *uint256.Int) *uint256.Int {
	expected, _ := toDecimal(offerAmount).Mul(toDecimal(askPool)).QuoRem(toDecimal(offerPool), 0)
	shortfall := expected.Sub(toDecimal(returnAmount))
	if !shortfall.IsPositive() {
		return zero()
	}
	spread, err := fromDecimalFloor(shortfall)
	if err != nil {
		return new(uint256.Int).SetAllOne()
	}
	return spread
}

// AssertMaxSpread fails with ErrMaxSpreadExceeded when the price impact of a
// swap exceeds maxSpread. Without a belief price the spread is
// 1 - (return/offer) / (askPool/offerPool). With a belief price (offer units
// per ask unit) the expected return is offer/beliefPrice instead of the pool
// price. A nil maxSpread disables the check.
func AssertMaxSpread(maxSpread, beliefPrice *decimal.Decimal, offerPool, askPool, offerAmount, returnAmount *uint256.Int) error {
	if maxSpread == nil || offerAmount.IsZero() {
		return nil
	}
	if maxSpread.IsNegative() || maxSpread.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: max spread %s outside [0, 1]", ErrInvalidParameter, maxSpread)
	}

	offer := toDecimal(offerAmount)
	ret := toDecimal(returnAmount)

	if beliefPrice != nil {
		if beliefPrice.Sign() <= 0 {
			return fmt.Errorf("%w: belief price %s must be positive", ErrInvalidParameter, beliefPrice)
		}
		// expected = offer / price; spread = (expected - return) / expected
		scaledReturn := ret.Mul(*beliefPrice)
		if scaledReturn.GreaterThanOrEqual(offer) {
			return nil
		}
		if offer.Sub(scaledReturn).GreaterThan(maxSpread.Mul(offer)) {
			return fmt.Errorf("%w: belief price %s", ErrMaxSpreadExceeded, beliefPrice)
		}
		return nil
	}

	expectedScaled := offer.Mul(toDecimal(askPool))
	returnScaled := ret.Mul(toDecimal(offerPool))
	if expectedScaled.Sub(returnScaled).GreaterThan(maxSpread.Mul(expectedScaled)) {
		return fmt.Errorf("%w: spread %s > %s", ErrMaxSpreadExceeded,
			decimal.NewFromInt(1).Sub(returnScaled.DivRound(expectedScaled, 6)), maxSpread)
	}
	return nil
}

// ComputeOfferAmount prices a swap from the ask side: the returned offer is
// the smallest amount such that forward pricing nets at least askAmount after
// the pool fee. Tax is not included.
func ComputeOfferAmount(offerPool, askPool, askAmount *uint256.Int, feeRate decimal.Decimal) (ReverseQuote, error) {
	if askAmount.IsZero() {
		return ReverseQuote{OfferAmount: zero(), SwapQuote: zeroQuote()}, nil
	}
	if offerPool.IsZero() || askPool.IsZero() {
		return ReverseQuote{}, fmt.Errorf("%w: pool has no liquidity", ErrInsufficientReserve)
	}
	oneMinusFee := decimal.NewFromInt(1).Sub(feeRate)
	if oneMinusFee.Sign() <= 0 {
		return ReverseQuote{}, fmt.Errorf("%w: fee rate %s", ErrInvalidParameter, feeRate)
	}

	quotient, remainder := toDecimal(askAmount).QuoRem(oneMinusFee, 0)
	if !remainder.IsZero() {
		quotient = quotient.Add(decimal.NewFromInt(1))
	}
	gross, err := fromDecimalFloor(quotient)
	if err != nil {
		return ReverseQuote{}, err
	}
	if !gross.Lt(askPool) {
		return ReverseQuote{}, fmt.Errorf("%w: ask %s exceeds pool depth %s", ErrInsufficientReserve, askAmount.Dec(), askPool.Dec())
	}

	k, err := mul(offerPool, askPool)
	if err != nil {
		return ReverseQuote{}, fmt.Errorf("invariant: %w", err)
	}
	offerAfter := ceilDiv(k, new(uint256.Int).Sub(askPool, gross))
	offer := new(uint256.Int).Sub(offerAfter, offerPool)

	quote, err := ComputeSwap(offerPool, askPool, offer, feeRate)
	if err != nil {
		return ReverseQuote{}, err
	}
	return ReverseQuote{OfferAmount: offer, SwapQuote: quote}, nil
}
