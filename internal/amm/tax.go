package amm

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"pairScope/internal/model"
)

// TaxPolicy is the external ledger's transfer tax for one denomination.
// A nil Cap means uncapped.
type TaxPolicy struct {
	Rate decimal.Decimal
	Cap  *uint256.Int
}

// TaxOracle looks up the transfer tax applied to native assets.
type TaxOracle interface {
	TaxPolicy(ctx context.Context, denom string) (TaxPolicy, error)
}

// NoTax is a TaxOracle that never taxes.
type NoTax struct{}

func (NoTax) TaxPolicy(context.Context, string) (TaxPolicy, error) {
	return TaxPolicy{Rate: decimal.Zero}, nil
}

// DeductTax returns what a recipient receives when amount is sent:
// amount - min(amount - floor(amount/(1+rate)), cap).
func (p TaxPolicy) DeductTax(amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() || p.Rate.Sign() <= 0 {
		return amount.Clone(), nil
	}
	net, _ := toDecimal(amount).QuoRem(decimal.NewFromInt(1).Add(p.Rate), 0)
	netAmount, err := fromDecimalFloor(net)
	if err != nil {
		return nil, err
	}
	tax := new(uint256.Int).Sub(amount, netAmount)
	if p.Cap != nil && tax.Gt(p.Cap) {
		tax = p.Cap.Clone()
	}
	return new(uint256.Int).Sub(amount, tax), nil
}

// AddTax returns what must leave the sender so that amount arrives:
// amount + min(floor(amount*rate), cap).
func (p TaxPolicy) AddTax(amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() || p.Rate.Sign() <= 0 {
		return amount.Clone(), nil
	}
	tax, err := fromDecimalFloor(toDecimal(amount).Mul(p.Rate))
	if err != nil {
		return nil, err
	}
	if p.Cap != nil && tax.Gt(p.Cap) {
		tax = p.Cap.Clone()
	}
	return add(amount, tax)
}

// Payout is how a pool-side amount leaves the pool: Received reaches the
// recipient and Debit is removed from the reserve. Debit-Received is the tax.
type Payout struct {
	Received *uint256.Int
	Debit    *uint256.Int
}

// Tax is the portion of the debit retained by the external ledger.
func (p Payout) Tax() *uint256.Int {
	return new(uint256.Int).Sub(p.Debit, p.Received)
}

// computePayout applies the transfer tax to amount when info is native.
func computePayout(ctx context.Context, oracle TaxOracle, info model.AssetInfo, amount *uint256.Int) (Payout, error) {
	if !info.IsNative() || oracle == nil || amount.IsZero() {
		return Payout{Received: amount.Clone(), Debit: amount.Clone()}, nil
	}
	policy, err := oracle.TaxPolicy(ctx, info.Denom())
	if err != nil {
		return Payout{}, fmt.Errorf("tax policy %s: %w", info.Denom(), err)
	}
	received, err := policy.DeductTax(amount)
	if err != nil {
		return Payout{}, fmt.Errorf("deduct tax: %w", err)
	}
	debit, err := policy.AddTax(received)
	if err != nil {
		return Payout{}, fmt.Errorf("add tax: %w", err)
	}
	return Payout{Received: received, Debit: debit}, nil
}
