package model

// TokenMeta captures display metadata for a pool asset.
type TokenMeta struct {
	Asset    string `json:"asset"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
