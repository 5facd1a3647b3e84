package emergency

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	fixmath "vaultcore/internal/math"
)

// Mode is the liquidation state machine.
type Mode int32

const (
	ModeNormal Mode = iota
	ModeEmergency
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// CanTransitionTo validates a mode edge.
func (m Mode) CanTransitionTo(target Mode) bool {
	return m != target
}

var (
	ErrNotActive  = errors.New("emergency mode not active")
	ErrZeroShares = errors.New("claim shares or total supply is zero")

	// ErrPoolExhausted means the snapshot has been fully distributed.
	ErrPoolExhausted = errors.New("emergency pool fully distributed")
)

// Engine runs the snapshot-based pro-rata liquidation path. While active,
// the cumulative distributed amount never exceeds the snapshot taken at
// activation. All amounts are normalized. The engine holds no lock: the
// orchestrator serializes access.
type Engine struct {
	mode        Mode
	snapshot    *big.Int
	distributed *big.Int
	activatedAt time.Time
}

func NewEngine() *Engine {
	return &Engine{
		mode:        ModeNormal,
		snapshot:    new(big.Int),
		distributed: new(big.Int),
	}
}

// Activate snapshots the claimable pool and enters emergency mode. Returns
// false without touching state when already active: re-triggering is a
// no-op, never a snapshot refresh.
func (e *Engine) Activate(aumNormalized *big.Int, now time.Time) bool {
	if e.mode == ModeEmergency {
		return false
	}
	e.mode = ModeEmergency
	e.snapshot = new(big.Int).Set(aumNormalized)
	e.distributed = new(big.Int)
	e.activatedAt = now
	return true
}

// Deactivate clears the snapshot and distributed counter and returns to
// normal operation.
func (e *Engine) Deactivate() error {
	if e.mode != ModeEmergency {
		return ErrNotActive
	}
	e.mode = ModeNormal
	e.snapshot = new(big.Int)
	e.distributed = new(big.Int)
	e.activatedAt = time.Time{}
	return nil
}

// ShouldAutoActivate reports whether either standing condition has held for
// the threshold duration: operations suspended, or the valuation stale.
// Either alone suffices. Zero times mean the condition is not standing.
func (e *Engine) ShouldAutoActivate(suspendedSince, lastValuation, now time.Time, threshold time.Duration) bool {
	if e.mode == ModeEmergency {
		return false
	}
	if !suspendedSince.IsZero() && now.Sub(suspendedSince) >= threshold {
		return true
	}
	if !lastValuation.IsZero() && now.Sub(lastValuation) >= threshold {
		return true
	}
	return false
}

// Claim computes a holder's pro-rata entitlement and the payable amount.
//
// Entitlement is shares*snapshot/totalSupply, capped at the remaining pool.
// When available liquidity covers the remaining pool the payout is the full
// entitlement; otherwise it scales down uniformly by available/remaining, so
// every claimant against the same underfunded pool takes the same haircut.
// The distributed counter advances by the full entitlement, not the scaled
// payout, so a later liquidity top-up cannot be double-claimed against an
// entitlement already consumed.
func (e *Engine) Claim(shares, totalSupply, availableNormalized *big.Int) (entitlement, payout *big.Int, err error) {
	if e.mode != ModeEmergency {
		return nil, nil, ErrNotActive
	}
	if shares.Sign() == 0 || totalSupply.Sign() == 0 {
		return nil, nil, ErrZeroShares
	}

	remaining := new(big.Int).Sub(e.snapshot, e.distributed)
	if remaining.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: snapshot=%s, distributed=%s", ErrPoolExhausted, e.snapshot, e.distributed)
	}

	entitlement = fixmath.MulDiv(shares, e.snapshot, totalSupply)
	if entitlement.Cmp(remaining) > 0 {
		entitlement = new(big.Int).Set(remaining)
	}

	if availableNormalized.Cmp(remaining) >= 0 {
		payout = new(big.Int).Set(entitlement)
	} else {
		payout = fixmath.MulDiv(entitlement, availableNormalized, remaining)
	}

	e.distributed.Add(e.distributed, entitlement)

	if e.distributed.Cmp(e.snapshot) > 0 {
		panic(fmt.Sprintf("FATAL: emergency distributed %s exceeds snapshot %s", e.distributed, e.snapshot))
	}
	return entitlement, payout, nil
}

// Active reports whether emergency mode is on.
func (e *Engine) Active() bool {
	return e.mode == ModeEmergency
}

// Mode returns the current mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Status is the operator view of the liquidation state.
type Status struct {
	Active      bool
	Snapshot    *big.Int
	Distributed *big.Int
	Remaining   *big.Int
	ActivatedAt time.Time
}

func (e *Engine) Status() Status {
	return Status{
		Active:      e.mode == ModeEmergency,
		Snapshot:    new(big.Int).Set(e.snapshot),
		Distributed: new(big.Int).Set(e.distributed),
		Remaining:   new(big.Int).Sub(e.snapshot, e.distributed),
		ActivatedAt: e.activatedAt,
	}
}
