package core

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"vaultcore/internal/emergency"
	fixmath "vaultcore/internal/math"
	"vaultcore/internal/nav"
	"vaultcore/internal/queue"
)

// Read-side accessors. Each takes the core lock so views observe a
// consistent transition boundary.

// Nav returns the current NAV per share, normalized.
func (v *Vault) Nav() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.navEng.Nav()
}

// Aum returns the current gross AUM, normalized.
func (v *Vault) Aum() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.navEng.Aum()
}

// FeeRates returns the current fee rates.
func (v *Vault) FeeRates() nav.Rates {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.navEng.Rates()
}

// AccruedFees returns the accrued balance breakdown, normalized.
func (v *Vault) AccruedFees() nav.Accrued {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.navEng.AccruedFees()
}

// HWMStatus returns the hysteresis state including time remaining to reset.
func (v *Vault) HWMStatus() nav.HWMStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.navEng.HWMStatus(v.clock())
}

// EmergencyStatus returns the liquidation state.
func (v *Vault) EmergencyStatus() emergency.Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.emergency.Status()
}

// QueueLengths holds the live length and index frontier of both queues.
type QueueLengths struct {
	Deposits       uint64
	DepositHead    uint64
	DepositTail    uint64
	Redemptions    uint64
	RedemptionHead uint64
	RedemptionTail uint64
}

func (v *Vault) QueueLengths() QueueLengths {
	v.mu.Lock()
	defer v.mu.Unlock()
	return QueueLengths{
		Deposits:       v.deposits.Len(),
		DepositHead:    v.deposits.Head(),
		DepositTail:    v.deposits.Tail(),
		Redemptions:    v.redeems.Len(),
		RedemptionHead: v.redeems.Head(),
		RedemptionTail: v.redeems.Tail(),
	}
}

// PendingDeposits returns up to limit live deposit entries from offset, in
// FIFO order.
func (v *Vault) PendingDeposits(offset, limit int) []queue.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deposits.Pending(offset, limit)
}

// PendingRedemptions returns up to limit live redemption entries from
// offset, in FIFO order.
func (v *Vault) PendingRedemptions(offset, limit int) []queue.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redeems.Pending(offset, limit)
}

// Position is a holder's consolidated view.
type Position struct {
	Holder             uuid.UUID
	Shares             *big.Int
	Value              *big.Int // shares at current NAV, normalized
	PendingDeposits    *big.Int // native units
	PendingRedemptions *big.Int // share units
}

func (v *Vault) HolderPosition(holder uuid.UUID) Position {
	v.mu.Lock()
	defer v.mu.Unlock()

	shares := v.shares.BalanceOf(holder)
	return Position{
		Holder:             holder,
		Shares:             shares,
		Value:              fixmath.AmountForShares(shares, v.navEng.Nav()),
		PendingDeposits:    v.deposits.PendingAmount(holder),
		PendingRedemptions: v.redeems.PendingAmount(holder),
	}
}

// LastValuation returns the timestamp of the last accepted valuation.
func (v *Vault) LastValuation() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.navEng.AumTimestamp()
}

// Sequence returns the next sequence number to be assigned.
func (v *Vault) Sequence() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sequence
}
