package event

import (
	"math/big"

	"github.com/google/uuid"
)

// FeesPaid records a fee payout. Paid < Requested means liquidity covered
// only part of the accrued total; the accrued mix was reduced pro rata.
type FeesPaid struct {
	Recipient uuid.UUID `json:"recipient"`
	Requested *big.Int  `json:"requested"` // native units
	Paid      *big.Int  `json:"paid"`      // native units
	Partial   bool      `json:"partial"`
}

// PayoutShortfall is the distinguishable failure signal for a payout that
// could not be fully executed: the relay leg was unavailable, failed, or the
// observed balance movement did not match the requested amount. It is
// emitted even when the surrounding operation succeeds.
type PayoutShortfall struct {
	Recipient uuid.UUID `json:"recipient"`
	Requested *big.Int  `json:"requested"` // native units
	Paid      *big.Int  `json:"paid"`      // native units
	Reason    string    `json:"reason"`
}
