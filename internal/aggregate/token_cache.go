package aggregate

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"pairScope/internal/chain"
	"pairScope/internal/dex"
	"pairScope/internal/model"
)

// TokenDecimalsCache caches asset decimals keyed by AssetInfo.String.
type TokenDecimalsCache struct {
	mu   sync.RWMutex
	data map[string]uint8
}

func NewTokenDecimalsCache() *TokenDecimalsCache {
	return &TokenDecimalsCache{data: make(map[string]uint8)}
}

func (c *TokenDecimalsCache) Get(info model.AssetInfo) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[info.String()]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(info model.AssetInfo, decimals uint8) {
	c.mu.Lock()
	c.data[info.String()] = decimals
	c.mu.Unlock()
}

// FetchTokenDecimals loads decimals of a token asset whose contract is an
// EVM address.
func FetchTokenDecimals(ctx context.Context, chainClient *chain.Client, info model.AssetInfo) (uint8, error) {
	if chainClient == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	if !chainResolvable(info) {
		return 0, fmt.Errorf("asset %s is not chain resolvable", info)
	}
	meta, err := dex.FetchTokenMeta(ctx, chainClient, info, nil)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

func chainResolvable(info model.AssetInfo) bool {
	return !info.IsNative() && common.IsHexAddress(info.ContractAddr())
}
