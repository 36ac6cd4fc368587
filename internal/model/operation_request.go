package model

import (
	"encoding/json"
)

// OperationRequest is one line of a replay input. Which fields apply depends on Op.
type OperationRequest struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	Pool      string `json:"pool,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`

	// instantiate
	AssetInfos []AssetInfo `json:"asset_infos,omitempty"`
	FeeRate    string      `json:"fee_rate,omitempty"`

	// provide_liquidity deposits, or fund credits
	Assets            []Asset `json:"assets,omitempty"`
	SlippageTolerance string  `json:"slippage_tolerance,omitempty"`

	// swap
	OfferAsset  *Asset `json:"offer_asset,omitempty"`
	MaxSpread   string `json:"max_spread,omitempty"`
	BeliefPrice string `json:"belief_price,omitempty"`
	To          string `json:"to,omitempty"`

	// withdraw_liquidity
	Shares string `json:"shares,omitempty"`
}

// MarshalJSON ensures OperationRequest is encoded with stable field names.
func (r OperationRequest) MarshalJSON() ([]byte, error) {
	type Alias OperationRequest
	return json.Marshal(Alias(r))
}

// UnmarshalJSON decodes an OperationRequest from JSON.
func (r *OperationRequest) UnmarshalJSON(data []byte) error {
	type Alias OperationRequest
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = OperationRequest(a)
	return nil
}
