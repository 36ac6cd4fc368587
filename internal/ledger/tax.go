package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"pairScope/internal/amm"
)

// StaticTaxOracle serves fixed per-denom tax policies. Denoms without an
// entry use Default.
type StaticTaxOracle struct {
	Policies map[string]amm.TaxPolicy
	Default  amm.TaxPolicy
}

func NewStaticTaxOracle() *StaticTaxOracle {
	return &StaticTaxOracle{
		Policies: make(map[string]amm.TaxPolicy),
		Default:  amm.TaxPolicy{Rate: decimal.Zero},
	}
}

func (o *StaticTaxOracle) TaxPolicy(ctx context.Context, denom string) (amm.TaxPolicy, error) {
	if err := ctx.Err(); err != nil {
		return amm.TaxPolicy{}, err
	}
	if policy, ok := o.Policies[denom]; ok {
		return policy, nil
	}
	return o.Default, nil
}

// Set registers the policy for denom.
func (o *StaticTaxOracle) Set(denom string, rate decimal.Decimal, taxCap *uint256.Int) {
	o.Policies[denom] = amm.TaxPolicy{Rate: rate, Cap: taxCap}
}

// ParseTaxRates builds an oracle from "denom=rate" or "denom=rate:cap" entries.
func ParseTaxRates(entries []string) (*StaticTaxOracle, error) {
	oracle := NewStaticTaxOracle()
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		denom, spec, ok := strings.Cut(entry, "=")
		denom = strings.TrimSpace(denom)
		if !ok || denom == "" {
			return nil, fmt.Errorf("invalid tax rate %q, want denom=rate[:cap]", entry)
		}
		rawRate, rawCap, hasCap := strings.Cut(spec, ":")
		rate, err := decimal.NewFromString(strings.TrimSpace(rawRate))
		if err != nil {
			return nil, fmt.Errorf("tax rate for %s: %w", denom, err)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("tax rate for %s: %s outside [0, 1]", denom, rate)
		}
		var taxCap *uint256.Int
		if hasCap {
			taxCap, err = amm.ParseAmount(rawCap)
			if err != nil {
				return nil, fmt.Errorf("tax cap for %s: %w", denom, err)
			}
		}
		oracle.Set(denom, rate, taxCap)
	}
	return oracle, nil
}
