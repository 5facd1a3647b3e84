package event

import (
	"math/big"

	"github.com/google/uuid"
)

type EmergencyActivated struct {
	Snapshot *big.Int `json:"snapshot"` // normalized AUM at activation
	Auto     bool     `json:"auto"`     // true when triggered by suspension/staleness threshold
}

type EmergencyDeactivated struct{}

// EmergencyClaimed records a pro-rata claim. Paid may be below Entitlement
// when available liquidity could not cover all remaining claims.
type EmergencyClaimed struct {
	Holder      uuid.UUID `json:"holder"`
	Shares      *big.Int  `json:"shares"`
	Entitlement *big.Int  `json:"entitlement"` // normalized
	Paid        *big.Int  `json:"paid"`        // native units
}
