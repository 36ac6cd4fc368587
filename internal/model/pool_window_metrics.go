package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window. Index 0/1
// follow the pool's asset order.
type PoolWindowMetrics struct {
	PoolID         string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	ProvideCount   uint64
	WithdrawCount  uint64
	Volume0        string
	Volume1        string
	Fee0           string
	Fee1           string
	Tax0           string
	Tax1           string
	FeeRate0       *string
	FeeRate1       *string
	TVL0           *string
	TVL1           *string
	APR            *string
	TVLMethod      string
}
