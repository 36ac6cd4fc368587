package amm

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ShareLedger holds the total supply and per-holder balances of a pool's
// liquidity token. The sum of balances always equals the total supply.
type ShareLedger struct {
	total    *uint256.Int
	balances map[string]*uint256.Int
}

func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		total:    zero(),
		balances: make(map[string]*uint256.Int),
	}
}

// TotalSupply returns a copy of the total supply.
func (s *ShareLedger) TotalSupply() *uint256.Int {
	return s.total.Clone()
}

// BalanceOf returns a copy of holder's balance.
func (s *ShareLedger) BalanceOf(holder string) *uint256.Int {
	if bal, ok := s.balances[holder]; ok {
		return bal.Clone()
	}
	return zero()
}

// Holders returns holders with a non-zero balance, sorted.
func (s *ShareLedger) Holders() []string {
	holders := make([]string, 0, len(s.balances))
	for holder := range s.balances {
		holders = append(holders, holder)
	}
	sort.Strings(holders)
	return holders
}

// Mint credits amount to holder. A zero mint is a no-op.
func (s *ShareLedger) Mint(holder string, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	total, err := add(s.total, amount)
	if err != nil {
		return fmt.Errorf("mint shares: %w", err)
	}
	balance, err := add(s.BalanceOf(holder), amount)
	if err != nil {
		return fmt.Errorf("mint shares: %w", err)
	}
	s.total = total
	s.balances[holder] = balance
	return nil
}

// Burn debits amount from holder.
func (s *ShareLedger) Burn(holder string, amount *uint256.Int) error {
	balance := s.BalanceOf(holder)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, burning %s", ErrInsufficientShares, holder, balance.Dec(), amount.Dec())
	}
	balance.Sub(balance, amount)
	if balance.IsZero() {
		delete(s.balances, holder)
	} else {
		s.balances[holder] = balance
	}
	s.total = new(uint256.Int).Sub(s.total, amount)
	return nil
}

func (s *ShareLedger) clone() *ShareLedger {
	balances := make(map[string]*uint256.Int, len(s.balances))
	for holder, bal := range s.balances {
		balances[holder] = bal.Clone()
	}
	return &ShareLedger{total: s.total.Clone(), balances: balances}
}

// InitialShares is the first-deposit mint: floor(sqrt(a*b)).
func InitialShares(depositA, depositB *uint256.Int) (*uint256.Int, error) {
	product, err := mul(depositA, depositB)
	if err != nil {
		return nil, fmt.Errorf("initial shares: %w", err)
	}
	root, _ := uint256.FromBig(new(big.Int).Sqrt(product.ToBig()))
	if root.IsZero() {
		return nil, ErrZeroLiquidity
	}
	return root, nil
}

// ProportionalShares is the mint for a non-empty pool:
// min(a*total/reserveA, b*total/reserveB), floored.
func ProportionalShares(depositA, depositB, reserveA, reserveB, total *uint256.Int) (*uint256.Int, error) {
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, fmt.Errorf("%w: zero reserve with outstanding shares", ErrInsufficientReserve)
	}
	sharesA, err := mulDiv(depositA, total, reserveA)
	if err != nil {
		return nil, fmt.Errorf("shares for asset 0: %w", err)
	}
	sharesB, err := mulDiv(depositB, total, reserveB)
	if err != nil {
		return nil, fmt.Errorf("shares for asset 1: %w", err)
	}
	shares := minAmount(sharesA, sharesB)
	if shares.IsZero() {
		return nil, ErrZeroLiquidity
	}
	return shares, nil
}

// BurnAmounts returns the reserves owed for redeeming shares out of total.
func BurnAmounts(shares, reserveA, reserveB, total *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if total.IsZero() || total.Lt(shares) {
		return nil, nil, fmt.Errorf("%w: redeeming %s of %s", ErrInsufficientShares, shares.Dec(), total.Dec())
	}
	amountA, err := mulDiv(reserveA, shares, total)
	if err != nil {
		return nil, nil, err
	}
	amountB, err := mulDiv(reserveB, shares, total)
	if err != nil {
		return nil, nil, err
	}
	if amountA.IsZero() && amountB.IsZero() {
		return nil, nil, ErrZeroLiquidity
	}
	return amountA, amountB, nil
}

// AssertSlippageTolerance rejects a deposit whose ratio deviates from the
// pool ratio by more than tolerance, in either direction.
func AssertSlippageTolerance(tolerance decimal.Decimal, depositA, depositB, reserveA, reserveB *uint256.Int) error {
	if err := validateSlippageTolerance(tolerance); err != nil {
		return err
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil
	}
	oneMinus := decimal.NewFromInt(1).Sub(tolerance)
	dA, dB := toDecimal(depositA), toDecimal(depositB)
	rA, rB := toDecimal(reserveA), toDecimal(reserveB)

	if dA.Mul(rB).Mul(oneMinus).GreaterThan(rA.Mul(dB)) ||
		dB.Mul(rA).Mul(oneMinus).GreaterThan(rB.Mul(dA)) {
		return ErrMaxSlippageExceeded
	}
	return nil
}

func validateSlippageTolerance(tolerance decimal.Decimal) error {
	if tolerance.IsNegative() || tolerance.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: slippage tolerance %s outside [0, 1]", ErrInvalidParameter, tolerance)
	}
	return nil
}
