package amm

import (
	"context"

	"github.com/holiman/uint256"

	"pairScope/internal/model"
)

// Transfer moves Amount of Asset between holders on the external ledger.
// An empty From mints and an empty To burns.
type Transfer struct {
	Asset  model.AssetInfo
	From   string
	To     string
	Amount *uint256.Int
}

// Bank is the external token ledger. Settle must apply all transfers or none.
type Bank interface {
	Settle(ctx context.Context, transfers []Transfer) error
	BalanceOf(ctx context.Context, info model.AssetInfo, holder string) (*uint256.Int, error)
}

// MintShare is the transfer that credits newly minted liquidity tokens.
func MintShare(lpToken model.AssetInfo, holder string, amount *uint256.Int) Transfer {
	return Transfer{Asset: lpToken, To: holder, Amount: amount.Clone()}
}

// BurnShare is the transfer that destroys redeemed liquidity tokens.
func BurnShare(lpToken model.AssetInfo, holder string, amount *uint256.Int) Transfer {
	return Transfer{Asset: lpToken, From: holder, Amount: amount.Clone()}
}
