package event

import "math/big"

// ValuationUpdated records one pass of the NAV engine: gross reported AUM,
// fees accrued for the period, and the resulting adjusted AUM and NAV.
type ValuationUpdated struct {
	GrossAum       *big.Int `json:"gross_aum"`    // normalized
	AdjustedAum    *big.Int `json:"adjusted_aum"` // normalized, net of accrued fees
	NavPerShare    *big.Int `json:"nav_per_share"`
	ManagementFee  *big.Int `json:"management_fee"`  // accrued this period, normalized
	PerformanceFee *big.Int `json:"performance_fee"` // accrued this period, normalized
	TotalSupply    *big.Int `json:"total_supply"`
}

// HighWaterMarkReset records the only path by which the HWM moves to a new
// base: a completed drawdown recovery.
type HighWaterMarkReset struct {
	Previous *big.Int `json:"previous"`
	Current  *big.Int `json:"current"`
}

type VaultSuspended struct{}

type VaultResumed struct{}

type FeeRatesUpdated struct {
	ManagementBps  int64 `json:"management_bps"`
	PerformanceBps int64 `json:"performance_bps"`
	EntranceBps    int64 `json:"entrance_bps"`
	ExitBps        int64 `json:"exit_bps"`
}
