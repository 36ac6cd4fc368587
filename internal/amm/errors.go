package amm

import "errors"

var (
	ErrInvalidAsset        = errors.New("asset does not belong to the pool pair")
	ErrZeroAmount          = errors.New("amount must be greater than zero")
	ErrZeroLiquidity       = errors.New("operation would mint or burn zero liquidity")
	ErrInsufficientReserve = errors.New("insufficient reserve")
	ErrMaxSpreadExceeded   = errors.New("max spread exceeded")
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")

	ErrInsufficientShares  = errors.New("insufficient liquidity shares")
	ErrMaxSlippageExceeded = errors.New("max slippage tolerance exceeded")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrSettlement          = errors.New("settlement failed")
)
