package queue

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Skip reasons recorded when an item is left live for a later batch.
const (
	ReasonSlippage     = "slippage"
	ReasonPayoutFailed = "payout_failed"
	ReasonZeroOutput   = "zero_output"
)

var (
	ErrQueueFull = errors.New("queue at maximum length")

	// ErrQueueOverflow trips when the tail index would wrap. The queue
	// refuses the enqueue instead of reusing indices.
	ErrQueueOverflow = errors.New("queue tail index overflow")

	ErrHolderCap       = errors.New("holder at maximum pending requests")
	ErrBatchSize       = errors.New("batch size zero or above cap")
	ErrIndexOutOfRange = errors.New("index outside live queue range")
	ErrNotLive         = errors.New("item already processed or cancelled")
	ErrNoPending       = errors.New("holder has no pending requests")
)

// Item is one enqueued request. Amount is in the queue's native unit: asset
// units for deposits, share units for redemptions. An item is mutated
// exactly once, when Processed flips on commit, skip-free success, or
// cancellation.
type Item struct {
	Index        uint64
	Holder       uuid.UUID
	Amount       *big.Int
	NavAtEnqueue *big.Int
	MinOutput    *big.Int
	Processed    bool
}

// Outcome is the economic result of pricing an item at current NAV.
type Outcome struct {
	Output *big.Int // shares minted for deposits, native payout for redemptions
	Fee    *big.Int // normalized fee charged
}

// Processor prices and commits items. The queue engine never moves value
// itself: it calls Evaluate to decide eligibility and Apply to commit, and
// only marks completion.
type Processor interface {
	// Evaluate prices the item at current NAV with no side effects. An error
	// aborts the whole batch.
	Evaluate(item *Item) (Outcome, error)

	// Apply commits the outcome (mint shares, execute payout, accrue fees).
	// Returning a *SkipError leaves the item live for retry; any other error
	// aborts the batch.
	Apply(item *Item, out Outcome) error
}

// Restorer returns an item's held resource to its holder on cancellation:
// the asset for deposits, the share reservation for redemptions.
type Restorer interface {
	Restore(item *Item) error
}

// SkipError marks an item retryable with a machine-readable reason.
type SkipError struct {
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("skipped: %s", e.Reason)
	}
	return fmt.Sprintf("skipped: %s: %v", e.Reason, e.Err)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// Result is the per-item outcome a batch returns to the orchestrator.
type Result struct {
	Index   uint64
	Holder  uuid.UUID
	Amount  *big.Int
	Outcome Outcome
	Skipped bool
	Reason  string
}
