package amm

import (
	"fmt"

	"github.com/holiman/uint256"

	"pairScope/internal/model"
)

// ReserveLedger tracks the two asset balances of a pool. It is the only
// place reserves change.
type ReserveLedger struct {
	infos    [2]model.AssetInfo
	reserves [2]*uint256.Int
}

func NewReserveLedger(infos [2]model.AssetInfo) *ReserveLedger {
	return &ReserveLedger{
		infos:    infos,
		reserves: [2]*uint256.Int{zero(), zero()},
	}
}

// Reserves returns copies of both reserves in pair order.
func (l *ReserveLedger) Reserves() (AssetAmount, AssetAmount) {
	return AssetAmount{Info: l.infos[0], Amount: l.reserves[0].Clone()},
		AssetAmount{Info: l.infos[1], Amount: l.reserves[1].Clone()}
}

// Reserve returns a copy of the reserve for info.
func (l *ReserveLedger) Reserve(info model.AssetInfo) (*uint256.Int, error) {
	idx, err := l.index(info)
	if err != nil {
		return nil, err
	}
	return l.reserves[idx].Clone(), nil
}

// IsEmpty reports whether both reserves are zero.
func (l *ReserveLedger) IsEmpty() bool {
	return l.reserves[0].IsZero() && l.reserves[1].IsZero()
}

// Deposit adds amount to the reserve of info.
func (l *ReserveLedger) Deposit(info model.AssetInfo, amount *uint256.Int) error {
	return l.ApplyDelta(info, amount, false)
}

// Withdraw subtracts amount from the reserve of info.
func (l *ReserveLedger) Withdraw(info model.AssetInfo, amount *uint256.Int) error {
	return l.ApplyDelta(info, amount, true)
}

// ApplyDelta adds amount to the reserve of info, or subtracts it when negative
// is set. The ledger is unchanged on error.
func (l *ReserveLedger) ApplyDelta(info model.AssetInfo, amount *uint256.Int, negative bool) error {
	idx, err := l.index(info)
	if err != nil {
		return err
	}
	current := l.reserves[idx]
	if negative {
		if current.Lt(amount) {
			return fmt.Errorf("%w: %s reserve %s < %s", ErrInsufficientReserve, info, current.Dec(), amount.Dec())
		}
		l.reserves[idx] = new(uint256.Int).Sub(current, amount)
		return nil
	}
	next, err := add(current, amount)
	if err != nil {
		return fmt.Errorf("deposit %s: %w", info, err)
	}
	l.reserves[idx] = next
	return nil
}

func (l *ReserveLedger) index(info model.AssetInfo) (int, error) {
	for i, candidate := range l.infos {
		if candidate.Equal(info) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidAsset, info)
}

func (l *ReserveLedger) clone() *ReserveLedger {
	return &ReserveLedger{
		infos:    l.infos,
		reserves: [2]*uint256.Int{l.reserves[0].Clone(), l.reserves[1].Clone()},
	}
}
