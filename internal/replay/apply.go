package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pairScope/internal/amm"
	"pairScope/internal/model"
	"pairScope/internal/registry"
)

// errRejected marks a request that could not be decoded into an operation.
var errRejected = errors.New("malformed request")

// apply executes one request and returns its journal record.
func (r *Runner) apply(ctx context.Context, req model.OperationRequest) (model.OperationRecord, error) {
	record := model.OperationRecord{
		ID:        uuid.NewString(),
		Seq:       req.Seq,
		PoolID:    req.Pool,
		Kind:      req.Op,
		Sender:    req.Sender,
		Timestamp: req.Timestamp,
	}
	if record.Timestamp == 0 {
		record.Timestamp = uint64(r.now().Unix())
	}

	var (
		payload interface{}
		err     error
	)
	switch req.Op {
	case model.OpInstantiate:
		payload, err = r.applyInstantiate(ctx, req, &record)
	case model.OpFund:
		payload, err = r.applyFund(ctx, req)
	case model.OpProvideLiquidity:
		payload, err = r.applyProvide(ctx, req)
	case model.OpSwap:
		payload, err = r.applySwap(ctx, req)
	case model.OpWithdrawLiquidity:
		payload, err = r.applyWithdraw(ctx, req)
	default:
		err = fmt.Errorf("%w: unknown op %q", errRejected, req.Op)
	}
	if err != nil {
		return model.OperationRecord{}, err
	}
	if err := record.EncodeData(payload); err != nil {
		return model.OperationRecord{}, err
	}

	if record.PoolID != "" {
		state, err := r.registry.QueryPool(record.PoolID)
		if err != nil {
			return model.OperationRecord{}, err
		}
		record.Reserves = []model.Asset{
			{Info: state.AssetInfos[0], Amount: state.Reserves[0]},
			{Info: state.AssetInfos[1], Amount: state.Reserves[1]},
		}
		record.TotalShare = state.TotalShare
		record.FeeRate = state.FeeRate
	}
	return record, nil
}

func (r *Runner) applyInstantiate(ctx context.Context, req model.OperationRequest, record *model.OperationRecord) (interface{}, error) {
	if len(req.AssetInfos) != 2 {
		return nil, fmt.Errorf("%w: instantiate needs 2 asset infos, got %d", errRejected, len(req.AssetInfos))
	}
	feeRate := r.cfg.DefaultFeeRate
	if req.FeeRate != "" {
		parsed, err := decimal.NewFromString(req.FeeRate)
		if err != nil {
			return nil, fmt.Errorf("%w: fee rate %q", errRejected, req.FeeRate)
		}
		feeRate = parsed
	}

	id, err := r.registry.Instantiate(ctx, registry.InstantiateParams{
		ID:         req.Pool,
		AssetInfos: [2]model.AssetInfo{req.AssetInfos[0], req.AssetInfos[1]},
		FeeRate:    feeRate,
	})
	if err != nil {
		return nil, err
	}
	record.PoolID = id

	state, err := r.registry.QueryPool(id)
	if err != nil {
		return nil, err
	}
	r.markInstantiated(model.Pool{
		ID:             id,
		Asset0:         state.AssetInfos[0].String(),
		Asset1:         state.AssetInfos[1].String(),
		LiquidityToken: state.LiquidityToken,
		FeeRate:        state.FeeRate,
		FirstSeenSeq:   req.Seq,
	})
	return model.InstantiateData{
		AssetInfos:     state.AssetInfos,
		FeeRate:        state.FeeRate,
		LiquidityToken: state.LiquidityToken,
	}, nil
}

func (r *Runner) applyFund(ctx context.Context, req model.OperationRequest) (interface{}, error) {
	holder := req.To
	if holder == "" {
		holder = req.Sender
	}
	if holder == "" {
		return nil, fmt.Errorf("%w: fund needs a holder", errRejected)
	}
	if len(req.Assets) == 0 {
		return nil, fmt.Errorf("%w: fund needs assets", errRejected)
	}

	funds := make([]amm.AssetAmount, 0, len(req.Assets))
	for _, asset := range req.Assets {
		parsed, err := amm.AssetAmountFromModel(asset)
		if err != nil {
			return nil, err
		}
		funds = append(funds, parsed)
	}
	transfers := make([]amm.Transfer, 0, len(funds))
	for _, fund := range funds {
		transfers = append(transfers, amm.Transfer{Asset: fund.Info, To: holder, Amount: fund.Amount})
	}
	if err := r.ledger.Settle(ctx, transfers); err != nil {
		return nil, err
	}
	return model.FundData{Holder: holder, Funds: req.Assets}, nil
}

func (r *Runner) applyProvide(ctx context.Context, req model.OperationRequest) (interface{}, error) {
	if len(req.Assets) != 2 {
		return nil, fmt.Errorf("%w: provide_liquidity needs 2 assets, got %d", errRejected, len(req.Assets))
	}
	var deposits [2]amm.AssetAmount
	for i, asset := range req.Assets {
		parsed, err := amm.AssetAmountFromModel(asset)
		if err != nil {
			return nil, err
		}
		deposits[i] = parsed
	}
	tolerance, err := amm.ParseRatio(req.SlippageTolerance)
	if err != nil {
		return nil, err
	}

	res, err := r.registry.ExecuteProvideLiquidity(ctx, req.Pool, amm.ProvideLiquidityRequest{
		Sender:            req.Sender,
		Deposits:          deposits,
		SlippageTolerance: tolerance,
	})
	if err != nil {
		return nil, err
	}
	return model.ProvideLiquidityData{
		Deposits: [2]model.Asset{res.Deposits[0].ToModel(), res.Deposits[1].ToModel()},
		Shares:   res.Shares.Dec(),
	}, nil
}

func (r *Runner) applySwap(ctx context.Context, req model.OperationRequest) (interface{}, error) {
	if req.OfferAsset == nil {
		return nil, fmt.Errorf("%w: swap needs an offer_asset", errRejected)
	}
	offer, err := amm.AssetAmountFromModel(*req.OfferAsset)
	if err != nil {
		return nil, err
	}
	maxSpread, err := amm.ParseRatio(req.MaxSpread)
	if err != nil {
		return nil, err
	}
	beliefPrice, err := amm.ParsePrice(req.BeliefPrice)
	if err != nil {
		return nil, err
	}

	res, err := r.registry.ExecuteSwap(ctx, req.Pool, amm.SwapRequest{
		Sender:      req.Sender,
		Offer:       offer,
		MaxSpread:   maxSpread,
		BeliefPrice: beliefPrice,
		To:          req.To,
	})
	if err != nil {
		return nil, err
	}
	return model.SwapData{
		Offer:          res.Offer.ToModel(),
		AskInfo:        res.AskInfo,
		Receiver:       res.Receiver,
		ReturnAmount:   res.ReturnAmount.Dec(),
		SpreadAmount:   res.SpreadAmount.Dec(),
		FeeAmount:      res.FeeAmount.Dec(),
		TaxAmount:      res.TaxAmount.Dec(),
		ReceivedAmount: res.ReceivedAmount.Dec(),
	}, nil
}

func (r *Runner) applyWithdraw(ctx context.Context, req model.OperationRequest) (interface{}, error) {
	shares, err := amm.ParseAmount(req.Shares)
	if err != nil {
		return nil, err
	}
	res, err := r.registry.ExecuteWithdrawLiquidity(ctx, req.Pool, amm.WithdrawLiquidityRequest{
		Sender: req.Sender,
		Shares: shares,
	})
	if err != nil {
		return nil, err
	}
	return model.WithdrawLiquidityData{
		Shares:  res.Shares.Dec(),
		Refunds: [2]model.Asset{res.Refunds[0].ToModel(), res.Refunds[1].ToModel()},
	}, nil
}

// errorKind names the class of a rejection for the error journal.
func errorKind(err error) string {
	kinds := []struct {
		target error
		kind   string
	}{
		{amm.ErrInvalidAsset, "invalid_asset"},
		{amm.ErrZeroAmount, "zero_amount"},
		{amm.ErrZeroLiquidity, "zero_liquidity"},
		{amm.ErrInsufficientReserve, "insufficient_reserve"},
		{amm.ErrMaxSpreadExceeded, "max_spread_exceeded"},
		{amm.ErrArithmeticOverflow, "arithmetic_overflow"},
		{amm.ErrInsufficientShares, "insufficient_shares"},
		{amm.ErrMaxSlippageExceeded, "max_slippage_exceeded"},
		{amm.ErrSettlement, "settlement"},
		{amm.ErrInvalidParameter, "invalid_parameter"},
		{registry.ErrPoolNotFound, "pool_not_found"},
		{registry.ErrPoolExists, "pool_exists"},
		{errRejected, "malformed"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return "other"
}
