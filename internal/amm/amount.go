package amm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"pairScope/internal/model"
)

// AssetAmount is the typed counterpart of model.Asset.
type AssetAmount struct {
	Info   model.AssetInfo
	Amount *uint256.Int
}

// NewAssetAmount builds an AssetAmount from a uint64 amount.
func NewAssetAmount(info model.AssetInfo, amount uint64) AssetAmount {
	return AssetAmount{Info: info, Amount: uint256.NewInt(amount)}
}

// ToModel converts to the wire representation.
func (a AssetAmount) ToModel() model.Asset {
	return model.Asset{Info: a.Info, Amount: formatAmount(a.Amount)}
}

// AssetAmountFromModel parses a wire asset.
func AssetAmountFromModel(asset model.Asset) (AssetAmount, error) {
	if err := asset.Info.Validate(); err != nil {
		return AssetAmount{}, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	amount, err := ParseAmount(asset.Amount)
	if err != nil {
		return AssetAmount{}, err
	}
	return AssetAmount{Info: asset.Info, Amount: amount}, nil
}

// ParseAmount parses a base-10 non-negative integer. An empty string is zero.
func ParseAmount(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return new(uint256.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidParameter, value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %q", ErrInvalidParameter, value)
	}
	amount, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("%w: amount %q", ErrArithmeticOverflow, value)
	}
	return amount, nil
}

// ParseRatio parses an optional decimal fraction within [0, 1]. An empty
// string yields nil.
func ParseRatio(value string) (*decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ratio %q", ErrInvalidParameter, value)
	}
	if parsed.IsNegative() || parsed.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: ratio %q outside [0, 1]", ErrInvalidParameter, value)
	}
	return &parsed, nil
}

// ParsePrice parses an optional strictly positive decimal. An empty string yields nil.
func ParsePrice(value string) (*decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid price %q", ErrInvalidParameter, value)
	}
	if parsed.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price %q must be positive", ErrInvalidParameter, value)
	}
	return &parsed, nil
}

func formatAmount(value *uint256.Int) string {
	if value == nil {
		return "0"
	}
	return value.Dec()
}

func zero() *uint256.Int {
	return new(uint256.Int)
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

// mulDiv returns floor(x*y/d).
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	product, err := mul(x, y)
	if err != nil {
		return nil, err
	}
	return product.Div(product, d), nil
}

// ceilDiv returns ceil(x/d).
func ceilDiv(x, d *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(x, d, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

func minAmount(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x.Clone()
	}
	return y.Clone()
}

func toDecimal(value *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(value.ToBig(), 0)
}

// fromDecimalFloor converts a non-negative decimal to an integer amount, flooring.
func fromDecimalFloor(value decimal.Decimal) (*uint256.Int, error) {
	if value.IsNegative() {
		return zero(), nil
	}
	amount, overflow := uint256.FromBig(value.Floor().BigInt())
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return amount, nil
}
