package model

import (
	"fmt"
	"strings"
)

// AssetInfo identifies an asset held by a pool. Exactly one of Token or
// NativeToken is set.
type AssetInfo struct {
	Token       *TokenInfo       `json:"token,omitempty"`
	NativeToken *NativeTokenInfo `json:"native_token,omitempty"`
}

// TokenInfo references a fungible-token contract.
type TokenInfo struct {
	ContractAddr string `json:"contract_addr"`
}

// NativeTokenInfo references a native-ledger denomination.
type NativeTokenInfo struct {
	Denom string `json:"denom"`
}

// Asset pairs an AssetInfo with an integer amount in the asset's smallest unit.
type Asset struct {
	Info   AssetInfo `json:"info"`
	Amount string    `json:"amount"`
}

func NativeAsset(denom string) AssetInfo {
	return AssetInfo{NativeToken: &NativeTokenInfo{Denom: denom}}
}

func TokenAsset(contractAddr string) AssetInfo {
	return AssetInfo{Token: &TokenInfo{ContractAddr: contractAddr}}
}

// IsNative reports whether the asset is denominated in the native ledger currency.
func (a AssetInfo) IsNative() bool {
	return a.NativeToken != nil
}

// Denom returns the native denomination, or "" for token assets.
func (a AssetInfo) Denom() string {
	if a.NativeToken == nil {
		return ""
	}
	return a.NativeToken.Denom
}

// ContractAddr returns the token contract, or "" for native assets.
func (a AssetInfo) ContractAddr() string {
	if a.Token == nil {
		return ""
	}
	return a.Token.ContractAddr
}

// Equal compares asset identity. Token contracts compare case-insensitively.
func (a AssetInfo) Equal(other AssetInfo) bool {
	switch {
	case a.NativeToken != nil && other.NativeToken != nil:
		return a.NativeToken.Denom == other.NativeToken.Denom
	case a.Token != nil && other.Token != nil:
		return strings.EqualFold(a.Token.ContractAddr, other.Token.ContractAddr)
	default:
		return false
	}
}

// Validate checks that exactly one variant is set and its identifier is non-empty.
func (a AssetInfo) Validate() error {
	switch {
	case a.NativeToken != nil && a.Token != nil:
		return fmt.Errorf("asset info sets both token and native_token")
	case a.NativeToken != nil:
		if strings.TrimSpace(a.NativeToken.Denom) == "" {
			return fmt.Errorf("native_token denom is empty")
		}
	case a.Token != nil:
		if strings.TrimSpace(a.Token.ContractAddr) == "" {
			return fmt.Errorf("token contract_addr is empty")
		}
	default:
		return fmt.Errorf("asset info is empty")
	}
	return nil
}

func (a AssetInfo) String() string {
	switch {
	case a.NativeToken != nil:
		return "native:" + a.NativeToken.Denom
	case a.Token != nil:
		return "token:" + strings.ToLower(a.Token.ContractAddr)
	default:
		return "unknown"
	}
}

// ParseAssetInfo parses the "native:<denom>" / "token:<addr>" form produced by String.
func ParseAssetInfo(input string) (AssetInfo, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(input), ":")
	if !ok || strings.TrimSpace(id) == "" {
		return AssetInfo{}, fmt.Errorf("invalid asset %q, want native:<denom> or token:<addr>", input)
	}
	switch strings.ToLower(kind) {
	case "native":
		return NativeAsset(strings.TrimSpace(id)), nil
	case "token":
		return TokenAsset(strings.TrimSpace(id)), nil
	default:
		return AssetInfo{}, fmt.Errorf("invalid asset kind %q", kind)
	}
}
