package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func computeFeeRates(fee0 *big.Int, fee1 *big.Int, tvl0 *big.Int, tvl1 *big.Int) (*string, *string) {
	var feeRate0 *string
	var feeRate1 *string

	if rate := computeRateFromInt(fee0, tvl0); rate != "" {
		feeRate0 = &rate
	}
	if rate := computeRateFromInt(fee1, tvl1); rate != "" {
		feeRate1 = &rate
	}
	return feeRate0, feeRate1
}

func computeRateFromInt(fee *big.Int, tvl *big.Int) string {
	if fee == nil || fee.Sign() == 0 || tvl == nil || tvl.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, tvl)
	return rat.FloatString(ratioScale)
}

// computeAPR annualizes the window fee yield. Both reserves of a constant
// product pool carry equal value at the marginal price, so the pool yield is
// the mean of the per-side rates.
func computeAPR(feeRate0 *string, feeRate1 *string, windowSeconds uint64) *string {
	if windowSeconds == 0 || (feeRate0 == nil && feeRate1 == nil) {
		return nil
	}

	sum := new(big.Rat)
	for _, rate := range []*string{feeRate0, feeRate1} {
		if rate == nil {
			continue
		}
		rat, ok := new(big.Rat).SetString(*rate)
		if !ok {
			return nil
		}
		sum.Add(sum, rat)
	}
	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds)*2, 1)
	apr := new(big.Rat).Mul(sum, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}
