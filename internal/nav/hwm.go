package nav

import (
	"math/big"
	"time"

	fixmath "vaultcore/internal/math"
)

// HWMState tracks where NAV sits relative to the high-water mark.
type HWMState int32

const (
	HWMAtHigh HWMState = iota
	HWMInDrawdown
	HWMRecovering
)

func (s HWMState) String() string {
	switch s {
	case HWMAtHigh:
		return "AT_HIGH"
	case HWMInDrawdown:
		return "IN_DRAWDOWN"
	case HWMRecovering:
		return "RECOVERING"
	default:
		return "UNKNOWN"
	}
}

// CanTransitionTo validates a hysteresis edge.
func (s HWMState) CanTransitionTo(target HWMState) bool {
	if s == target {
		return true
	}
	switch s {
	case HWMAtHigh:
		return target == HWMInDrawdown
	case HWMInDrawdown:
		return target == HWMRecovering || target == HWMAtHigh
	case HWMRecovering:
		return target == HWMInDrawdown || target == HWMAtHigh
	default:
		return false
	}
}

// HWMReset reports a completed recovery: the only path that moves the mark
// to a new base below an all-time high.
type HWMReset struct {
	Previous *big.Int
	Current  *big.Int
}

// updateHighWaterMark runs one hysteresis step against the current NAV.
// Returns a non-nil HWMReset only when a recovery window completes.
//
// Edges:
//   - any state -> AT_HIGH when nav exceeds the mark outright (new all-time
//     high); the mark follows NAV up and drawdown bookkeeping clears.
//   - AT_HIGH -> IN_DRAWDOWN when nav < hwm * (1 - drawdownPct).
//   - IN_DRAWDOWN: a new low moves lowestNav and cancels any recovery timer.
//   - IN_DRAWDOWN -> RECOVERING when nav >= lowestNav * (1 + recoveryPct).
//   - RECOVERING -> AT_HIGH (mark reset to current nav) once the recovery
//     threshold has held continuously for the configured period; a dip below
//     the threshold cancels the timer and returns to IN_DRAWDOWN.
func (e *Engine) updateHighWaterMark(now time.Time) *HWMReset {
	if e.nav.Cmp(e.hwm) > 0 {
		e.hwm.Set(e.nav)
		e.hwmState = HWMAtHigh
		e.lowestNav = nil
		e.recoveryStart = time.Time{}
		return nil
	}

	switch e.hwmState {
	case HWMAtHigh:
		drawdownFloor := fixmath.BpsOf(e.hwm, fixmath.DenomBps-e.cfg.HWMDrawdownBps())
		if e.nav.Cmp(drawdownFloor) < 0 {
			e.hwmState = HWMInDrawdown
			e.lowestNav = new(big.Int).Set(e.nav)
			e.recoveryStart = time.Time{}
		}

	case HWMInDrawdown:
		if e.nav.Cmp(e.lowestNav) < 0 {
			e.lowestNav.Set(e.nav)
			e.recoveryStart = time.Time{}
			return nil
		}
		if e.nav.Cmp(e.recoveryThreshold()) >= 0 {
			e.hwmState = HWMRecovering
			e.recoveryStart = now
		}

	case HWMRecovering:
		if e.nav.Cmp(e.recoveryThreshold()) < 0 {
			e.hwmState = HWMInDrawdown
			e.recoveryStart = time.Time{}
			if e.nav.Cmp(e.lowestNav) < 0 {
				e.lowestNav.Set(e.nav)
			}
			return nil
		}
		if now.Sub(e.recoveryStart) >= e.cfg.HWMRecoveryPeriod() {
			reset := &HWMReset{
				Previous: new(big.Int).Set(e.hwm),
				Current:  new(big.Int).Set(e.nav),
			}
			e.hwm.Set(e.nav)
			e.hwmState = HWMAtHigh
			e.lowestNav = nil
			e.recoveryStart = time.Time{}
			return reset
		}
	}
	return nil
}

func (e *Engine) recoveryThreshold() *big.Int {
	return fixmath.BpsOf(e.lowestNav, fixmath.DenomBps+e.cfg.HWMRecoveryBps())
}

// HWMStatus is the operator view of the hysteresis state.
type HWMStatus struct {
	State               HWMState
	HighWaterMark       *big.Int
	LowestNavInDrawdown *big.Int // nil outside drawdown
	RecoveryStart       time.Time
	TimeToReset         time.Duration // 0 unless RECOVERING
}

func (e *Engine) HWMStatus(now time.Time) HWMStatus {
	st := HWMStatus{
		State:         e.hwmState,
		HighWaterMark: new(big.Int).Set(e.hwm),
		RecoveryStart: e.recoveryStart,
	}
	if e.lowestNav != nil {
		st.LowestNavInDrawdown = new(big.Int).Set(e.lowestNav)
	}
	if e.hwmState == HWMRecovering {
		remaining := e.cfg.HWMRecoveryPeriod() - now.Sub(e.recoveryStart)
		if remaining > 0 {
			st.TimeToReset = remaining
		}
	}
	return st
}
