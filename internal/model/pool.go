package model

// Pool is the immutable pool metadata record for storage.
type Pool struct {
	ID             string `json:"id"`
	Asset0         string `json:"asset0"`
	Asset1         string `json:"asset1"`
	LiquidityToken string `json:"liquidity_token"`
	FeeRate        string `json:"fee_rate"`
	FirstSeenSeq   uint64 `json:"first_seen_seq"`
}
