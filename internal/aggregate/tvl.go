package aggregate

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairScope/internal/chain"
)

const erc20BalanceOfABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	balanceOfABI    abi.ABI
	balanceOfOnce   sync.Once
	balanceOfABIErr error
)

func getBalanceOfABI() (abi.ABI, error) {
	balanceOfOnce.Do(func() {
		balanceOfABI, balanceOfABIErr = abi.JSON(strings.NewReader(erc20BalanceOfABIJSON))
	})
	return balanceOfABI, balanceOfABIErr
}

// windowTVL returns the pool reserves at the end of the window. Journal
// reserves are authoritative. When the pool id and both assets are EVM
// addresses the on-chain balances are read instead, and a disagreement with
// the journal is logged.
func (a *Aggregator) windowTVL(ctx context.Context, acc *Accumulator) (*big.Int, *big.Int, string) {
	if acc.Reserves[0] == nil || acc.Reserves[1] == nil {
		return nil, nil, tvlMethodNone
	}
	if a.chainClient == nil || !common.IsHexAddress(acc.PoolID) ||
		!chainResolvable(acc.AssetInfos[0]) || !chainResolvable(acc.AssetInfos[1]) {
		return acc.Reserves[0], acc.Reserves[1], tvlMethodReserves
	}

	pool := common.HexToAddress(acc.PoolID)
	bal0, err0 := balanceOf(ctx, a.chainClient, common.HexToAddress(acc.AssetInfos[0].ContractAddr()), pool, nil)
	bal1, err1 := balanceOf(ctx, a.chainClient, common.HexToAddress(acc.AssetInfos[1].ContractAddr()), pool, nil)
	if err0 != nil || err1 != nil {
		a.logger.Warn("balanceOf failed, using journal reserves",
			zap.String("pool", acc.PoolID),
			zap.NamedError("error0", err0),
			zap.NamedError("error1", err1),
		)
		return acc.Reserves[0], acc.Reserves[1], tvlMethodReserves
	}
	if bal0.Cmp(acc.Reserves[0]) != 0 || bal1.Cmp(acc.Reserves[1]) != 0 {
		a.logger.Warn("on-chain balances differ from journal reserves",
			zap.String("pool", acc.PoolID),
			zap.String("balance0", bal0.String()),
			zap.String("balance1", bal1.String()),
			zap.String("reserve0", acc.Reserves[0].String()),
			zap.String("reserve1", acc.Reserves[1].String()),
		)
	}
	return bal0, bal1, tvlMethodLatest
}

func balanceOf(ctx context.Context, chainClient *chain.Client, token common.Address, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	balanceABI, err := getBalanceOfABI()
	if err != nil {
		return nil, err
	}

	data, err := balanceABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := chainClient.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := balanceABI.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}
