package query

import (
	"time"

	"github.com/google/uuid"
)

// All big values are string-encoded decimal integers: normalized amounts do
// not fit in JSON-safe numbers.

type QueueLengthsResponse struct {
	Deposits       uint64 `json:"deposits"`
	DepositHead    uint64 `json:"deposit_head"`
	DepositTail    uint64 `json:"deposit_tail"`
	Redemptions    uint64 `json:"redemptions"`
	RedemptionHead uint64 `json:"redemption_head"`
	RedemptionTail uint64 `json:"redemption_tail"`
	AsOfSequence   int64  `json:"as_of_sequence"`
}

type PendingEntry struct {
	Index        uint64    `json:"index"`
	Holder       uuid.UUID `json:"holder"`
	Amount       string    `json:"amount"`
	NavAtEnqueue string    `json:"nav_at_enqueue"`
	MinOutput    string    `json:"min_output"`
}

type PendingListResponse struct {
	Queue        string         `json:"queue"`
	Offset       int            `json:"offset"`
	Entries      []PendingEntry `json:"entries"`
	AsOfSequence int64          `json:"as_of_sequence"`
}

type FeesResponse struct {
	ManagementBps  int64  `json:"management_bps"`
	PerformanceBps int64  `json:"performance_bps"`
	EntranceBps    int64  `json:"entrance_bps"`
	ExitBps        int64  `json:"exit_bps"`
	Management     string `json:"accrued_management"`
	Performance    string `json:"accrued_performance"`
	Entrance       string `json:"accrued_entrance"`
	Exit           string `json:"accrued_exit"`
	Total          string `json:"accrued_total"`
	AsOfSequence   int64  `json:"as_of_sequence"`
}

type NavResponse struct {
	NavPerShare   string    `json:"nav_per_share"`
	GrossAum      string    `json:"gross_aum"`
	TotalSupply   string    `json:"total_supply"`
	LastValuation time.Time `json:"last_valuation"`
	Suspended     bool      `json:"suspended"`
	AsOfSequence  int64     `json:"as_of_sequence"`
}

type HWMResponse struct {
	State               string    `json:"state"`
	HighWaterMark       string    `json:"high_water_mark"`
	LowestNavInDrawdown string    `json:"lowest_nav_in_drawdown,omitempty"`
	RecoveryStart       time.Time `json:"recovery_start,omitempty"`
	TimeToResetSeconds  int64     `json:"time_to_reset_seconds"`
	AsOfSequence        int64     `json:"as_of_sequence"`
}

type EmergencyResponse struct {
	Active       bool      `json:"active"`
	Snapshot     string    `json:"snapshot"`
	Distributed  string    `json:"distributed"`
	Remaining    string    `json:"remaining"`
	ActivatedAt  time.Time `json:"activated_at,omitempty"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

type PositionResponse struct {
	Holder             uuid.UUID `json:"holder"`
	Shares             string    `json:"shares"`
	Value              string    `json:"value"`
	PendingDeposits    string    `json:"pending_deposits"`
	PendingRedemptions string    `json:"pending_redemptions"`
	AsOfSequence       int64     `json:"as_of_sequence"`
}
