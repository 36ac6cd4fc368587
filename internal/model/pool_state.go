package model

const (
	PoolStateEmpty  = "empty"
	PoolStateActive = "active"
)

// PoolState is a point-in-time snapshot of a pool, including its share ledger.
type PoolState struct {
	ID             string            `json:"id"`
	AssetInfos     [2]AssetInfo      `json:"asset_infos"`
	Reserves       [2]string         `json:"reserves"`
	LiquidityToken string            `json:"liquidity_token"`
	FeeRate        string            `json:"fee_rate"`
	MinimumReserve string            `json:"minimum_reserve"`
	TotalShare     string            `json:"total_share"`
	Shares         map[string]string `json:"shares,omitempty"`
	State          string            `json:"state"`
}

// Balance is one holder's balance of one asset on the external ledger.
type Balance struct {
	Holder string    `json:"holder"`
	Info   AssetInfo `json:"info"`
	Amount string    `json:"amount"`
}

// Snapshot is everything needed to resume a replay: pools, external balances
// and the last committed request sequence.
type Snapshot struct {
	LastSeq   uint64      `json:"last_seq"`
	Pools     []PoolState `json:"pools"`
	Balances  []Balance   `json:"balances"`
	UpdatedAt string      `json:"updated_at"`
}
