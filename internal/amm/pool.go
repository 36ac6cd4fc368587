package amm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pairScope/internal/model"
)

const DefaultTaxCollector = "tax_collector"

// PoolConfig holds the immutable parameters of a pool.
type PoolConfig struct {
	ID             string
	AssetInfos     [2]model.AssetInfo
	FeeRate        decimal.Decimal
	LiquidityToken string
	// MinimumReserve is the smallest reserve a swap may leave behind. Defaults to 1.
	MinimumReserve *uint256.Int
	// TaxCollector receives the transfer tax on native payouts.
	TaxCollector string
}

// Pool is a two-asset constant-product pool. Operations on one pool are
// serialised; distinct pools share no state.
type Pool struct {
	mu sync.Mutex

	id           string
	infos        [2]model.AssetInfo
	lpToken      model.AssetInfo
	feeRate      decimal.Decimal
	minReserve   *uint256.Int
	taxCollector string

	reserves *ReserveLedger
	shares   *ShareLedger

	bank   Bank
	tax    TaxOracle
	logger *zap.Logger
}

// ProvideLiquidityRequest deposits both pool assets.
type ProvideLiquidityRequest struct {
	Sender            string
	Deposits          [2]AssetAmount
	SlippageTolerance *decimal.Decimal
}

// ProvideLiquidityResult reports a committed deposit in pool order.
type ProvideLiquidityResult struct {
	Shares   *uint256.Int
	Deposits [2]AssetAmount
}

// SwapRequest offers one pool asset for the other.
type SwapRequest struct {
	Sender      string
	Offer       AssetAmount
	MaxSpread   *decimal.Decimal
	BeliefPrice *decimal.Decimal
	// To receives the ask asset. Defaults to Sender.
	To string
}

// SwapResult reports a swap. Everything except Offer is in the ask asset.
type SwapResult struct {
	Offer          AssetAmount
	AskInfo        model.AssetInfo
	Receiver       string
	ReturnAmount   *uint256.Int
	FeeAmount      *uint256.Int
	SpreadAmount   *uint256.Int
	NetAmount      *uint256.Int
	TaxAmount      *uint256.Int
	ReceivedAmount *uint256.Int
	// Debit is what left the ask reserve.
	Debit *uint256.Int
}

// WithdrawLiquidityRequest redeems liquidity shares.
type WithdrawLiquidityRequest struct {
	Sender string
	Shares *uint256.Int
}

// WithdrawLiquidityResult reports received refunds in pool order.
type WithdrawLiquidityResult struct {
	Shares  *uint256.Int
	Refunds [2]AssetAmount
	Taxes   [2]*uint256.Int
}

// NewPool creates an empty pool. bank and tax may be nil, in which case no
// external settlement happens and no transfer tax applies.
func NewPool(cfg PoolConfig, bank Bank, tax TaxOracle, logger *zap.Logger) (*Pool, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("%w: pool id is required", ErrInvalidParameter)
	}
	for i, info := range cfg.AssetInfos {
		if err := info.Validate(); err != nil {
			return nil, fmt.Errorf("%w: asset %d: %v", ErrInvalidAsset, i, err)
		}
	}
	if cfg.AssetInfos[0].Equal(cfg.AssetInfos[1]) {
		return nil, fmt.Errorf("%w: pair assets must differ", ErrInvalidAsset)
	}
	if cfg.FeeRate.IsNegative() || !cfg.FeeRate.LessThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: fee rate %s outside [0, 1)", ErrInvalidParameter, cfg.FeeRate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	lpToken := cfg.LiquidityToken
	if lpToken == "" {
		lpToken = "lp:" + cfg.ID
	}
	minReserve := uint256.NewInt(1)
	if cfg.MinimumReserve != nil && !cfg.MinimumReserve.IsZero() {
		minReserve = cfg.MinimumReserve.Clone()
	}
	collector := cfg.TaxCollector
	if collector == "" {
		collector = DefaultTaxCollector
	}

	return &Pool{
		id:           cfg.ID,
		infos:        cfg.AssetInfos,
		lpToken:      model.TokenAsset(lpToken),
		feeRate:      cfg.FeeRate,
		minReserve:   minReserve,
		taxCollector: collector,
		reserves:     NewReserveLedger(cfg.AssetInfos),
		shares:       NewShareLedger(),
		bank:         bank,
		tax:          tax,
		logger:       logger.With(zap.String("pool", cfg.ID)),
	}, nil
}

// RestorePool rebuilds a pool from a snapshot.
func RestorePool(state model.PoolState, taxCollector string, bank Bank, tax TaxOracle, logger *zap.Logger) (*Pool, error) {
	feeRate, err := decimal.NewFromString(state.FeeRate)
	if err != nil {
		return nil, fmt.Errorf("%w: fee rate %q", ErrInvalidParameter, state.FeeRate)
	}
	minReserve, err := ParseAmount(state.MinimumReserve)
	if err != nil {
		return nil, fmt.Errorf("minimum reserve: %w", err)
	}
	pool, err := NewPool(PoolConfig{
		ID:             state.ID,
		AssetInfos:     state.AssetInfos,
		FeeRate:        feeRate,
		LiquidityToken: state.LiquidityToken,
		MinimumReserve: minReserve,
		TaxCollector:   taxCollector,
	}, bank, tax, logger)
	if err != nil {
		return nil, err
	}

	for i, raw := range state.Reserves {
		amount, err := ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("reserve %d: %w", i, err)
		}
		if err := pool.reserves.Deposit(state.AssetInfos[i], amount); err != nil {
			return nil, err
		}
	}
	for holder, raw := range state.Shares {
		amount, err := ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("shares of %s: %w", holder, err)
		}
		if err := pool.shares.Mint(holder, amount); err != nil {
			return nil, err
		}
	}
	total, err := ParseAmount(state.TotalShare)
	if err != nil {
		return nil, fmt.Errorf("total share: %w", err)
	}
	if !total.Eq(pool.shares.TotalSupply()) {
		return nil, fmt.Errorf("%w: total share %s does not match holder sum %s", ErrInvalidParameter, total.Dec(), pool.shares.TotalSupply().Dec())
	}
	return pool, nil
}

func (p *Pool) ID() string { return p.id }

// Address is the holder account of the pool's reserves on the external ledger.
func (p *Pool) Address() string { return p.id }

func (p *Pool) AssetInfos() [2]model.AssetInfo { return p.infos }

func (p *Pool) LiquidityToken() model.AssetInfo { return p.lpToken }

func (p *Pool) FeeRate() decimal.Decimal { return p.feeRate }

// Reserves returns the current reserves in pool order.
func (p *Pool) Reserves() (AssetAmount, AssetAmount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserves.Reserves()
}

// TotalShare returns the liquidity token supply.
func (p *Pool) TotalShare() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.TotalSupply()
}

// ShareBalance returns holder's liquidity token balance.
func (p *Pool) ShareBalance(holder string) *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.BalanceOf(holder)
}

// IsEmpty reports whether the pool is in the empty state.
func (p *Pool) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isEmpty()
}

func (p *Pool) isEmpty() bool {
	return p.shares.TotalSupply().IsZero() && p.reserves.IsEmpty()
}

// State returns a snapshot of the pool.
func (p *Pool) State() model.PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, b := p.reserves.Reserves()
	shares := make(map[string]string)
	for _, holder := range p.shares.Holders() {
		shares[holder] = p.shares.BalanceOf(holder).Dec()
	}
	status := model.PoolStateActive
	if p.isEmpty() {
		status = model.PoolStateEmpty
	}
	return model.PoolState{
		ID:             p.id,
		AssetInfos:     p.infos,
		Reserves:       [2]string{a.Amount.Dec(), b.Amount.Dec()},
		LiquidityToken: p.lpToken.ContractAddr(),
		FeeRate:        p.feeRate.String(),
		MinimumReserve: p.minReserve.Dec(),
		TotalShare:     p.shares.TotalSupply().Dec(),
		Shares:         shares,
		State:          status,
	}
}

// ProvideLiquidity deposits both assets and mints shares to the sender.
func (p *Pool) ProvideLiquidity(ctx context.Context, req ProvideLiquidityRequest) (ProvideLiquidityResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(req.Sender) == "" {
		return ProvideLiquidityResult{}, fmt.Errorf("%w: sender is required", ErrInvalidParameter)
	}
	deposits, err := p.orderPair(req.Deposits)
	if err != nil {
		return ProvideLiquidityResult{}, err
	}
	for _, deposit := range deposits {
		if deposit.Amount == nil || deposit.Amount.IsZero() {
			return ProvideLiquidityResult{}, fmt.Errorf("%w: deposit of %s", ErrZeroAmount, deposit.Info)
		}
	}

	if req.SlippageTolerance != nil {
		if err := validateSlippageTolerance(*req.SlippageTolerance); err != nil {
			return ProvideLiquidityResult{}, err
		}
	}

	reserveA, reserveB := p.reserves.Reserves()
	total := p.shares.TotalSupply()

	var minted *uint256.Int
	if total.IsZero() {
		minted, err = InitialShares(deposits[0].Amount, deposits[1].Amount)
	} else {
		if req.SlippageTolerance != nil {
			if err := AssertSlippageTolerance(*req.SlippageTolerance, deposits[0].Amount, deposits[1].Amount, reserveA.Amount, reserveB.Amount); err != nil {
				return ProvideLiquidityResult{}, err
			}
		}
		minted, err = ProportionalShares(deposits[0].Amount, deposits[1].Amount, reserveA.Amount, reserveB.Amount, total)
	}
	if err != nil {
		return ProvideLiquidityResult{}, err
	}

	reserves := p.reserves.clone()
	shares := p.shares.clone()
	for _, deposit := range deposits {
		if err := reserves.Deposit(deposit.Info, deposit.Amount); err != nil {
			return ProvideLiquidityResult{}, err
		}
	}
	if err := shares.Mint(req.Sender, minted); err != nil {
		return ProvideLiquidityResult{}, err
	}

	transfers := []Transfer{
		{Asset: deposits[0].Info, From: req.Sender, To: p.Address(), Amount: deposits[0].Amount.Clone()},
		{Asset: deposits[1].Info, From: req.Sender, To: p.Address(), Amount: deposits[1].Amount.Clone()},
		MintShare(p.lpToken, req.Sender, minted),
	}
	if err := p.settle(ctx, transfers); err != nil {
		return ProvideLiquidityResult{}, err
	}

	p.reserves = reserves
	p.shares = shares

	p.logger.Debug("liquidity provided",
		zap.String("sender", req.Sender),
		zap.String("deposit0", deposits[0].Amount.Dec()),
		zap.String("deposit1", deposits[1].Amount.Dec()),
		zap.String("shares", minted.Dec()),
	)

	return ProvideLiquidityResult{Shares: minted, Deposits: deposits}, nil
}

// Swap exchanges the offer asset for the other pool asset.
func (p *Pool) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(req.Sender) == "" {
		return SwapResult{}, fmt.Errorf("%w: sender is required", ErrInvalidParameter)
	}
	result, reserves, err := p.quoteSwap(ctx, req)
	if err != nil {
		return SwapResult{}, err
	}
	if result.Offer.Amount.IsZero() {
		return result, nil
	}

	transfers := []Transfer{
		{Asset: result.Offer.Info, From: req.Sender, To: p.Address(), Amount: result.Offer.Amount.Clone()},
	}
	if !result.ReceivedAmount.IsZero() {
		transfers = append(transfers, Transfer{Asset: result.AskInfo, From: p.Address(), To: result.Receiver, Amount: result.ReceivedAmount.Clone()})
	}
	if !result.TaxAmount.IsZero() {
		transfers = append(transfers, Transfer{Asset: result.AskInfo, From: p.Address(), To: p.taxCollector, Amount: result.TaxAmount.Clone()})
	}
	if err := p.settle(ctx, transfers); err != nil {
		return SwapResult{}, err
	}

	p.reserves = reserves

	p.logger.Debug("swap executed",
		zap.String("sender", req.Sender),
		zap.String("offer_asset", result.Offer.Info.String()),
		zap.String("offer_amount", result.Offer.Amount.Dec()),
		zap.String("return_amount", result.ReturnAmount.Dec()),
		zap.String("fee_amount", result.FeeAmount.Dec()),
		zap.String("tax_amount", result.TaxAmount.Dec()),
	)

	return result, nil
}

// Simulate prices a swap without executing it.
func (p *Pool) Simulate(ctx context.Context, offer AssetAmount) (SwapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result, _, err := p.quoteSwap(ctx, SwapRequest{Offer: offer})
	return result, err
}

// ReverseSimulate prices the offer needed to net ask after the pool fee.
func (p *Pool) ReverseSimulate(ctx context.Context, ask AssetAmount) (AssetAmount, ReverseQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	askIdx, err := p.indexOf(ask.Info)
	if err != nil {
		return AssetAmount{}, ReverseQuote{}, err
	}
	if ask.Amount == nil {
		return AssetAmount{}, ReverseQuote{}, fmt.Errorf("%w: ask amount", ErrInvalidParameter)
	}
	offerIdx := 1 - askIdx
	reserves := [2]*uint256.Int{}
	reserves[0], reserves[1] = p.reserveAmounts()

	quote, err := ComputeOfferAmount(reserves[offerIdx], reserves[askIdx], ask.Amount, p.feeRate)
	if err != nil {
		return AssetAmount{}, ReverseQuote{}, err
	}
	return AssetAmount{Info: p.infos[offerIdx], Amount: quote.OfferAmount.Clone()}, quote, nil
}

// quoteSwap prices req and returns the reserves as they would be after it.
// The pool's own ledger is not touched.
func (p *Pool) quoteSwap(ctx context.Context, req SwapRequest) (SwapResult, *ReserveLedger, error) {
	offerIdx, err := p.indexOf(req.Offer.Info)
	if err != nil {
		return SwapResult{}, nil, err
	}
	if req.Offer.Amount == nil {
		return SwapResult{}, nil, fmt.Errorf("%w: offer amount", ErrInvalidParameter)
	}
	askIdx := 1 - offerIdx
	receiver := req.To
	if receiver == "" {
		receiver = req.Sender
	}

	result := SwapResult{
		Offer:          AssetAmount{Info: p.infos[offerIdx], Amount: req.Offer.Amount.Clone()},
		AskInfo:        p.infos[askIdx],
		Receiver:       receiver,
		ReturnAmount:   zero(),
		FeeAmount:      zero(),
		SpreadAmount:   zero(),
		NetAmount:      zero(),
		TaxAmount:      zero(),
		ReceivedAmount: zero(),
		Debit:          zero(),
	}
	if req.Offer.Amount.IsZero() {
		return result, p.reserves.clone(), nil
	}
	if p.isEmpty() {
		return SwapResult{}, nil, fmt.Errorf("%w: pool is empty", ErrInsufficientReserve)
	}

	reserves := [2]*uint256.Int{}
	reserves[0], reserves[1] = p.reserveAmounts()
	offerPool, askPool := reserves[offerIdx], reserves[askIdx]

	quote, err := ComputeSwap(offerPool, askPool, req.Offer.Amount, p.feeRate)
	if err != nil {
		return SwapResult{}, nil, err
	}
	if err := AssertMaxSpread(req.MaxSpread, req.BeliefPrice, offerPool, askPool, req.Offer.Amount, quote.ReturnAmount); err != nil {
		return SwapResult{}, nil, err
	}

	net := quote.NetAmount()
	payout, err := computePayout(ctx, p.tax, result.AskInfo, net)
	if err != nil {
		return SwapResult{}, nil, err
	}

	remaining := zero()
	if askPool.Gt(payout.Debit) {
		remaining.Sub(askPool, payout.Debit)
	}
	if remaining.Lt(p.minReserve) {
		return SwapResult{}, nil, fmt.Errorf("%w: %s reserve would drop to %s", ErrInsufficientReserve, result.AskInfo, remaining.Dec())
	}

	next := p.reserves.clone()
	if err := next.Deposit(result.Offer.Info, req.Offer.Amount); err != nil {
		return SwapResult{}, nil, err
	}
	if err := next.Withdraw(result.AskInfo, payout.Debit); err != nil {
		return SwapResult{}, nil, err
	}

	result.ReturnAmount = quote.ReturnAmount
	result.FeeAmount = quote.FeeAmount
	result.SpreadAmount = quote.SpreadAmount
	result.NetAmount = net
	result.TaxAmount = payout.Tax()
	result.ReceivedAmount = payout.Received
	result.Debit = payout.Debit
	return result, next, nil
}

// WithdrawLiquidity burns shares and pays out the proportional reserves.
// Redeeming the whole supply empties the pool.
func (p *Pool) WithdrawLiquidity(ctx context.Context, req WithdrawLiquidityRequest) (WithdrawLiquidityResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(req.Sender) == "" {
		return WithdrawLiquidityResult{}, fmt.Errorf("%w: sender is required", ErrInvalidParameter)
	}
	if req.Shares == nil || req.Shares.IsZero() {
		return WithdrawLiquidityResult{}, fmt.Errorf("%w: shares", ErrZeroAmount)
	}
	if balance := p.shares.BalanceOf(req.Sender); balance.Lt(req.Shares) {
		return WithdrawLiquidityResult{}, fmt.Errorf("%w: %s holds %s, redeeming %s", ErrInsufficientShares, req.Sender, balance.Dec(), req.Shares.Dec())
	}

	reserveA, reserveB := p.reserveAmounts()
	total := p.shares.TotalSupply()
	amountA, amountB, err := BurnAmounts(req.Shares, reserveA, reserveB, total)
	if err != nil {
		return WithdrawLiquidityResult{}, err
	}
	full := req.Shares.Eq(total)

	owed := [2]*uint256.Int{amountA, amountB}
	held := [2]*uint256.Int{reserveA, reserveB}
	reserves := p.reserves.clone()
	shares := p.shares.clone()

	result := WithdrawLiquidityResult{Shares: req.Shares.Clone()}
	transfers := []Transfer{BurnShare(p.lpToken, req.Sender, req.Shares)}
	for i, info := range p.infos {
		payout, err := computePayout(ctx, p.tax, info, owed[i])
		if err != nil {
			return WithdrawLiquidityResult{}, err
		}
		if full {
			// sweep rounding dust so the pool returns to empty
			payout.Debit = held[i].Clone()
		}
		if err := reserves.Withdraw(info, payout.Debit); err != nil {
			return WithdrawLiquidityResult{}, err
		}
		result.Refunds[i] = AssetAmount{Info: info, Amount: payout.Received}
		result.Taxes[i] = payout.Tax()

		if !payout.Received.IsZero() {
			transfers = append(transfers, Transfer{Asset: info, From: p.Address(), To: req.Sender, Amount: payout.Received.Clone()})
		}
		if tax := payout.Tax(); !tax.IsZero() {
			transfers = append(transfers, Transfer{Asset: info, From: p.Address(), To: p.taxCollector, Amount: tax})
		}
	}
	if err := shares.Burn(req.Sender, req.Shares); err != nil {
		return WithdrawLiquidityResult{}, err
	}

	if err := p.settle(ctx, transfers); err != nil {
		return WithdrawLiquidityResult{}, err
	}

	p.reserves = reserves
	p.shares = shares

	p.logger.Debug("liquidity withdrawn",
		zap.String("sender", req.Sender),
		zap.String("shares", req.Shares.Dec()),
		zap.String("refund0", result.Refunds[0].Amount.Dec()),
		zap.String("refund1", result.Refunds[1].Amount.Dec()),
		zap.Bool("emptied", full),
	)

	return result, nil
}

func (p *Pool) settle(ctx context.Context, transfers []Transfer) error {
	if p.bank == nil {
		return nil
	}
	if err := p.bank.Settle(ctx, transfers); err != nil {
		return fmt.Errorf("%w: %v", ErrSettlement, err)
	}
	return nil
}

func (p *Pool) reserveAmounts() (*uint256.Int, *uint256.Int) {
	a, b := p.reserves.Reserves()
	return a.Amount, b.Amount
}

func (p *Pool) indexOf(info model.AssetInfo) (int, error) {
	for i, candidate := range p.infos {
		if candidate.Equal(info) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidAsset, info)
}

// orderPair arranges a two-asset input in pool order.
func (p *Pool) orderPair(assets [2]AssetAmount) ([2]AssetAmount, error) {
	first, err := p.indexOf(assets[0].Info)
	if err != nil {
		return [2]AssetAmount{}, err
	}
	second, err := p.indexOf(assets[1].Info)
	if err != nil {
		return [2]AssetAmount{}, err
	}
	if first == second {
		return [2]AssetAmount{}, fmt.Errorf("%w: %s supplied twice", ErrInvalidAsset, assets[0].Info)
	}
	var ordered [2]AssetAmount
	ordered[first] = AssetAmount{Info: p.infos[first], Amount: assets[0].Amount}
	ordered[second] = AssetAmount{Info: p.infos[second], Amount: assets[1].Amount}
	return ordered, nil
}
