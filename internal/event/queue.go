package event

import (
	"math/big"

	"github.com/google/uuid"
)

// QueueName distinguishes the two FIFO queues in queue-scoped records.
const (
	QueueDeposits    = "deposits"
	QueueRedemptions = "redemptions"
)

type DepositQueued struct {
	Index        uint64    `json:"index"`
	Holder       uuid.UUID `json:"holder"`
	Amount       *big.Int  `json:"amount"` // native units
	NavAtEnqueue *big.Int  `json:"nav_at_enqueue"`
	MinShares    *big.Int  `json:"min_shares"`
}

type RedemptionQueued struct {
	Index        uint64    `json:"index"`
	Holder       uuid.UUID `json:"holder"`
	Shares       *big.Int  `json:"shares"`
	NavAtEnqueue *big.Int  `json:"nav_at_enqueue"`
	MinPayout    *big.Int  `json:"min_payout"` // native units
}

// RequestProcessed records a committed queue item: minted shares for a
// deposit, or the native payout for a redemption.
type RequestProcessed struct {
	Queue  string    `json:"queue"`
	Index  uint64    `json:"index"`
	Holder uuid.UUID `json:"holder"`
	Amount *big.Int  `json:"amount"`
	Output *big.Int  `json:"output"`
	Fee    *big.Int  `json:"fee"` // normalized units
}

// RequestSkipped records an item left live for retry, with a
// machine-readable reason ("slippage", "payout_failed", "zero_output").
type RequestSkipped struct {
	Queue  string    `json:"queue"`
	Index  uint64    `json:"index"`
	Holder uuid.UUID `json:"holder"`
	Reason string    `json:"reason"`
}

type RequestCancelled struct {
	Queue  string    `json:"queue"`
	Index  uint64    `json:"index"`
	Holder uuid.UUID `json:"holder"`
	Amount *big.Int  `json:"amount"`
}
