package core

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"vaultcore/internal/event"
	fixmath "vaultcore/internal/math"
)

// ActivateEmergency enters the pro-rata liquidation path, snapshotting
// current AUM as the claimable pool. Idempotent: re-triggering while active
// changes nothing and reports false.
func (v *Vault) ActivateEmergency() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.activateEmergencyLocked(false), nil
}

// DeactivateEmergency returns to normal operation, clearing the snapshot
// and distributed counter.
func (v *Vault) DeactivateEmergency() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.emergency.Deactivate(); err != nil {
		v.rejected("deactivate_emergency", "not_active")
		return err
	}
	v.emit(event.EventTypeEmergencyDeactivated, "vault", event.EmergencyDeactivated{})
	v.applied("deactivate_emergency")
	if v.metrics != nil {
		v.metrics.EmergencyActive.Set(0)
	}
	v.log.Warn().Msg("emergency mode deactivated")
	return nil
}

func (v *Vault) activateEmergencyLocked(auto bool) bool {
	snapshot := v.navEng.Aum()
	if !v.emergency.Activate(snapshot, v.clock()) {
		return false
	}
	v.emit(event.EventTypeEmergencyActivated, "vault", event.EmergencyActivated{
		Snapshot: snapshot,
		Auto:     auto,
	})
	v.applied("activate_emergency")
	if v.metrics != nil {
		v.metrics.EmergencyActive.Set(1)
		v.metrics.EmergencySnapshot.Set(bigFloat(snapshot))
		v.metrics.EmergencyDistributed.Set(0)
	}
	v.log.Warn().
		Bool("auto", auto).
		Str("snapshot", snapshot.String()).
		Msg("emergency mode activated")
	return true
}

// EmergencyWithdraw claims a holder's full pro-rata share of the emergency
// pool. If emergency mode is not yet active, the standing auto-activation
// conditions (suspension or stale valuation past the threshold) are checked
// first and may flip it on within the same transition.
//
// Shares burn and the distributed counter advance strictly before the
// custody call; a shortfall during the payout is surfaced via the claim
// record and a PayoutShortfall event, never unwound.
func (v *Vault) EmergencyWithdraw(holder uuid.UUID) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.clock()
	if !v.emergency.Active() {
		if v.emergency.ShouldAutoActivate(v.suspendedAt, v.navEng.AumTimestamp(), now, v.cfg.EmergencyThreshold()) {
			v.activateEmergencyLocked(true)
		}
	}

	holderShares := v.shares.BalanceOf(holder)
	if holderShares.Sign() == 0 {
		v.rejected("emergency_withdraw", "no_shares")
		return nil, fmt.Errorf("%w: holder %s", ErrNoShares, holder)
	}

	liquidity, err := v.reachableLiquidity()
	if err != nil {
		v.rejected("emergency_withdraw", "custodian")
		return nil, err
	}
	availableNorm := fixmath.Normalize(liquidity, v.navEng.Factor())

	supply := v.shares.TotalSupply()
	entitlement, payoutNorm, err := v.emergency.Claim(holderShares, supply, availableNorm)
	if err != nil {
		v.rejected("emergency_withdraw", "claim")
		return nil, err
	}

	if err := v.shares.Burn(holder, holderShares); err != nil {
		panic(fmt.Sprintf("FATAL: emergency burn of %s shares for %s failed after claim: %v",
			holderShares, holder, err))
	}

	payoutNative := fixmath.Denormalize(payoutNorm, v.navEng.Factor())
	v.navEng.SubAum(fixmath.Normalize(payoutNative, v.navEng.Factor()))

	paid := new(big.Int)
	if payoutNative.Sign() > 0 {
		payRes, payErr := v.payer.Pay(holder, payoutNative)
		paid.Set(payRes.Paid)
		if payErr != nil {
			v.emitShortfall(holder, payRes)
		}
	}

	v.emit(event.EventTypeEmergencyClaimed, holderKey(holder), event.EmergencyClaimed{
		Holder:      holder,
		Shares:      holderShares,
		Entitlement: entitlement,
		Paid:        paid,
	})
	v.applied("emergency_withdraw")
	if v.metrics != nil {
		v.metrics.EmergencyClaims.Inc()
		v.metrics.EmergencyDistributed.Set(bigFloat(v.emergency.Status().Distributed))
	}
	return paid, nil
}
