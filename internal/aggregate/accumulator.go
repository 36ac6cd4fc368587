package aggregate

import (
	"fmt"
	"math/big"

	"pairScope/internal/model"
)

// Accumulator holds aggregate values for a pool window. Index 0/1 follow the
// pool's asset order as journaled in record reserves.
type Accumulator struct {
	PoolID        string
	AssetInfos    [2]model.AssetInfo
	FeeRate       string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	ProvideCount  uint64
	WithdrawCount uint64
	Volume        [2]*big.Int
	Fee           [2]*big.Int
	Tax           [2]*big.Int
	Reserves      [2]*big.Int
	LastTS        uint64
	LastSeq       uint64
	FirstSeq      uint64
}

func NewAccumulator(record model.OperationRecord, windowStart, windowEnd uint64) *Accumulator {
	acc := &Accumulator{
		PoolID:      record.PoolID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		FeeRate:     record.FeeRate,
		LastTS:      record.Timestamp,
		LastSeq:     record.Seq,
		FirstSeq:    record.Seq,
	}
	for i := 0; i < 2; i++ {
		acc.Volume[i] = big.NewInt(0)
		acc.Fee[i] = big.NewInt(0)
		acc.Tax[i] = big.NewInt(0)
	}
	return acc
}

// AddRecord folds one journaled operation into the window.
func (a *Accumulator) AddRecord(record model.OperationRecord) error {
	if err := a.applyReserves(record); err != nil {
		return err
	}
	if record.Seq >= a.LastSeq {
		a.LastSeq = record.Seq
		a.LastTS = record.Timestamp
	}
	if record.Seq < a.FirstSeq {
		a.FirstSeq = record.Seq
	}
	if record.FeeRate != "" {
		a.FeeRate = record.FeeRate
	}

	switch record.Kind {
	case model.OpSwap:
		var swap model.SwapData
		if err := record.DecodeData(&swap); err != nil {
			return err
		}
		return a.applySwap(swap)
	case model.OpProvideLiquidity:
		a.ProvideCount++
	case model.OpWithdrawLiquidity:
		a.WithdrawCount++
	}
	return nil
}

// applyReserves keeps the latest post-operation reserves as the window's TVL.
func (a *Accumulator) applyReserves(record model.OperationRecord) error {
	if len(record.Reserves) != 2 {
		return nil
	}
	var reserves [2]*big.Int
	for i, asset := range record.Reserves {
		amount, err := parseBigInt(asset.Amount)
		if err != nil {
			return fmt.Errorf("reserve %d: %w", i, err)
		}
		reserves[i] = amount
	}
	if a.AssetInfos[0].Validate() != nil {
		a.AssetInfos = [2]model.AssetInfo{record.Reserves[0].Info, record.Reserves[1].Info}
	}
	a.Reserves = reserves
	return nil
}

func (a *Accumulator) applySwap(swap model.SwapData) error {
	offerIdx := a.indexOf(swap.Offer.Info)
	if offerIdx < 0 {
		return fmt.Errorf("offer asset %s not in pool %s", swap.Offer.Info, a.PoolID)
	}
	askIdx := 1 - offerIdx

	offer, err := parseBigInt(swap.Offer.Amount)
	if err != nil {
		return fmt.Errorf("offer amount: %w", err)
	}
	ret, err := parseBigInt(swap.ReturnAmount)
	if err != nil {
		return fmt.Errorf("return amount: %w", err)
	}
	fee, err := parseBigInt(swap.FeeAmount)
	if err != nil {
		return fmt.Errorf("fee amount: %w", err)
	}
	tax, err := parseBigInt(swap.TaxAmount)
	if err != nil {
		return fmt.Errorf("tax amount: %w", err)
	}

	a.Volume[offerIdx].Add(a.Volume[offerIdx], offer)
	a.Volume[askIdx].Add(a.Volume[askIdx], ret)
	a.Fee[askIdx].Add(a.Fee[askIdx], fee)
	a.Tax[askIdx].Add(a.Tax[askIdx], tax)
	a.SwapCount++
	return nil
}

func (a *Accumulator) indexOf(info model.AssetInfo) int {
	for i, candidate := range a.AssetInfos {
		if candidate.Equal(info) {
			return i
		}
	}
	return -1
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return parsed, nil
}
