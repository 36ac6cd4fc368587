package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"pairScope/internal/amm"
	"pairScope/internal/model"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// MemoryBank is an in-process external ledger. Settle applies a batch of
// transfers atomically.
type MemoryBank struct {
	mu       sync.RWMutex
	infos    map[string]model.AssetInfo
	balances map[string]map[string]*uint256.Int
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		infos:    make(map[string]model.AssetInfo),
		balances: make(map[string]map[string]*uint256.Int),
	}
}

// Fund credits holder with amount of info, out of thin air.
func (b *MemoryBank) Fund(info model.AssetInfo, holder string, amount *uint256.Int) error {
	return b.Settle(context.Background(), []amm.Transfer{{Asset: info, To: holder, Amount: amount}})
}

// BalanceOf returns holder's balance of info.
func (b *MemoryBank) BalanceOf(_ context.Context, info model.AssetInfo, holder string) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[info.String()][holder]; ok {
		return bal.Clone(), nil
	}
	return new(uint256.Int), nil
}

// Settle applies transfers in order. If any transfer fails, none are applied.
func (b *MemoryBank) Settle(ctx context.Context, transfers []amm.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// pending holds the post-batch balance of every touched (asset, holder)
	pending := make(map[string]map[string]*uint256.Int)
	seen := make(map[string]model.AssetInfo)
	read := func(key, holder string) *uint256.Int {
		if bal, ok := pending[key][holder]; ok {
			return bal
		}
		if bal, ok := b.balances[key][holder]; ok {
			return bal.Clone()
		}
		return new(uint256.Int)
	}
	write := func(key, holder string, bal *uint256.Int) {
		if pending[key] == nil {
			pending[key] = make(map[string]*uint256.Int)
		}
		pending[key][holder] = bal
	}

	for i, tr := range transfers {
		if err := tr.Asset.Validate(); err != nil {
			return fmt.Errorf("transfer %d: %v", i, err)
		}
		if tr.Amount == nil {
			return fmt.Errorf("transfer %d: amount is nil", i)
		}
		if tr.From == "" && tr.To == "" {
			return fmt.Errorf("transfer %d: no sender or recipient", i)
		}
		if tr.Amount.IsZero() {
			continue
		}
		key := tr.Asset.String()
		if tr.From != "" {
			bal := read(key, tr.From)
			if bal.Lt(tr.Amount) {
				return fmt.Errorf("%w: %s holds %s %s, sending %s", ErrInsufficientFunds, tr.From, bal.Dec(), tr.Asset, tr.Amount.Dec())
			}
			write(key, tr.From, new(uint256.Int).Sub(bal, tr.Amount))
		}
		if tr.To != "" {
			next, overflow := new(uint256.Int).AddOverflow(read(key, tr.To), tr.Amount)
			if overflow {
				return fmt.Errorf("transfer %d to %s: %w", i, tr.To, amm.ErrArithmeticOverflow)
			}
			write(key, tr.To, next)
		}
		seen[key] = tr.Asset
	}

	for key, info := range seen {
		if _, ok := b.infos[key]; !ok {
			b.infos[key] = info
		}
	}

	for key, holders := range pending {
		if b.balances[key] == nil {
			b.balances[key] = make(map[string]*uint256.Int)
		}
		for holder, bal := range holders {
			if bal.IsZero() {
				delete(b.balances[key], holder)
				continue
			}
			b.balances[key][holder] = bal
		}
	}
	return nil
}

// Balances returns every non-zero balance, ordered by asset then holder.
func (b *MemoryBank) Balances() []model.Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.balances))
	for key := range b.balances {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []model.Balance
	for _, key := range keys {
		holders := make([]string, 0, len(b.balances[key]))
		for holder := range b.balances[key] {
			holders = append(holders, holder)
		}
		sort.Strings(holders)
		for _, holder := range holders {
			out = append(out, model.Balance{
				Holder: holder,
				Info:   b.infos[key],
				Amount: b.balances[key][holder].Dec(),
			})
		}
	}
	return out
}

// Restore replaces all balances with the given set.
func (b *MemoryBank) Restore(balances []model.Balance) error {
	infos := make(map[string]model.AssetInfo)
	next := make(map[string]map[string]*uint256.Int)
	for _, bal := range balances {
		if err := bal.Info.Validate(); err != nil {
			return fmt.Errorf("balance of %s: %v", bal.Holder, err)
		}
		amount, err := amm.ParseAmount(bal.Amount)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", bal.Holder, err)
		}
		if amount.IsZero() {
			continue
		}
		key := bal.Info.String()
		infos[key] = bal.Info
		if next[key] == nil {
			next[key] = make(map[string]*uint256.Int)
		}
		next[key][bal.Holder] = amount
	}

	b.mu.Lock()
	b.infos = infos
	b.balances = next
	b.mu.Unlock()
	return nil
}
