package model

// Operation kinds.
const (
	OpInstantiate       = "instantiate"
	OpFund              = "fund"
	OpProvideLiquidity  = "provide_liquidity"
	OpSwap              = "swap"
	OpWithdrawLiquidity = "withdraw_liquidity"
)

// InstantiateData is the journaled payload of a pool creation.
type InstantiateData struct {
	AssetInfos     [2]AssetInfo `json:"asset_infos"`
	FeeRate        string       `json:"fee_rate"`
	LiquidityToken string       `json:"liquidity_token"`
}

// FundData is the journaled payload of an external-ledger credit.
type FundData struct {
	Holder string  `json:"holder"`
	Funds  []Asset `json:"funds"`
}

// ProvideLiquidityData is the journaled payload of a deposit.
type ProvideLiquidityData struct {
	Deposits [2]Asset `json:"deposits"`
	Shares   string   `json:"shares"`
}

// SwapData is the journaled payload of a swap. All amounts are in the ask
// asset except the offer.
type SwapData struct {
	Offer          Asset     `json:"offer"`
	AskInfo        AssetInfo `json:"ask_info"`
	Receiver       string    `json:"receiver"`
	ReturnAmount   string    `json:"return_amount"`
	SpreadAmount   string    `json:"spread_amount"`
	FeeAmount      string    `json:"fee_amount"`
	TaxAmount      string    `json:"tax_amount"`
	ReceivedAmount string    `json:"received_amount"`
}

// WithdrawLiquidityData is the journaled payload of a share redemption.
type WithdrawLiquidityData struct {
	Shares  string   `json:"shares"`
	Refunds [2]Asset `json:"refunds"`
}
