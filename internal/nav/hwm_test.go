package nav_test

import (
	"math/big"
	"testing"
	"time"

	"vaultcore/internal/config"
	fixmath "vaultcore/internal/math"
	"vaultcore/internal/nav"
)

// hwmConfig: 40% drawdown threshold, 5% recovery threshold, 72h recovery
// period. The wide freshness window keeps multi-day sequences valid.
func hwmConfig() *config.Static {
	return testConfig(func(p *config.Params) {
		p.HWMDrawdownBps = 4_000
		p.HWMRecoveryBps = 500
		p.HWMRecoveryPeriod = 72 * time.Hour
		p.MaxAumAge = 100 * 24 * time.Hour
	})
}

// hwmEngine pins supply at 1000 shares so AUM of n Wad drives NAV to n/1000
// exactly. Fee rates are zero to keep the NAV arithmetic clean.
type hwmEngine struct {
	t      *testing.T
	e      *nav.Engine
	supply *big.Int
}

func newHWMEngine(t *testing.T) *hwmEngine {
	t.Helper()
	return &hwmEngine{
		t:      t,
		e:      newEngine(t, hwmConfig(), 18, nav.Rates{}),
		supply: wadTimes(1000),
	}
}

// value reports AUM such that NAV lands at navMils/1000.
func (h *hwmEngine) value(navMils int64, at time.Time) nav.ValuationResult {
	h.t.Helper()
	res, err := h.e.UpdateValuation(wadTimes(navMils), h.supply, big.NewInt(0), at)
	if err != nil {
		h.t.Fatalf("valuation at %s: %v", at, err)
	}
	return res
}

func (h *hwmEngine) wantState(at time.Time, want nav.HWMState) {
	h.t.Helper()
	if got := h.e.HWMStatus(at).State; got != want {
		h.t.Fatalf("state: got %s, want %s", got, want)
	}
}

// navMils converts thousandths to a normalized NAV value.
func navMils(n int64) *big.Int {
	out := new(big.Int).Mul(fixmath.Wad, big.NewInt(n))
	return out.Quo(out, big.NewInt(1000))
}

// ============================================================================
// Test: state machine edges
// ============================================================================

func TestHWM_StaysAtHighWithinTolerance(t *testing.T) {
	h := newHWMEngine(t)
	h.value(1000, t0)
	h.wantState(t0, nav.HWMAtHigh)

	// NAV 0.650 is above the 0.600 drawdown floor; the mark holds.
	h.value(650, t0.Add(time.Hour))
	h.wantState(t0.Add(time.Hour), nav.HWMAtHigh)

	status := h.e.HWMStatus(t0.Add(time.Hour))
	if status.HighWaterMark.Cmp(fixmath.Wad) != 0 {
		t.Errorf("hwm: got %s, want %s", status.HighWaterMark, fixmath.Wad)
	}
	if status.LowestNavInDrawdown != nil {
		t.Errorf("lowest outside drawdown: got %s, want nil", status.LowestNavInDrawdown)
	}
}

func TestHWM_NewHighMovesMarkWithoutReset(t *testing.T) {
	h := newHWMEngine(t)
	h.value(1000, t0)

	res := h.value(1200, t0.Add(time.Hour))
	if res.Reset != nil {
		t.Errorf("unexpected reset on new high: %+v", res.Reset)
	}
	h.wantState(t0.Add(time.Hour), nav.HWMAtHigh)
	if got := h.e.HWMStatus(t0.Add(time.Hour)).HighWaterMark; got.Cmp(navMils(1200)) != 0 {
		t.Errorf("hwm: got %s, want %s", got, navMils(1200))
	}
}

func TestHWM_DrawdownRecoveryReset(t *testing.T) {
	h := newHWMEngine(t)

	h.value(1000, t0)
	h.wantState(t0, nav.HWMAtHigh)

	// Drop to 0.500, below the 0.600 floor: drawdown begins.
	t1 := t0.Add(1 * time.Hour)
	h.value(500, t1)
	h.wantState(t1, nav.HWMInDrawdown)
	if got := h.e.HWMStatus(t1).LowestNavInDrawdown; got.Cmp(navMils(500)) != 0 {
		t.Errorf("lowest: got %s, want %s", got, navMils(500))
	}

	// 0.525 is exactly lowest * 1.05: recovery starts.
	t2 := t0.Add(2 * time.Hour)
	h.value(525, t2)
	h.wantState(t2, nav.HWMRecovering)

	// Dip below the recovery threshold: the timer cancels and the new low
	// is recorded.
	t3 := t0.Add(3 * time.Hour)
	h.value(490, t3)
	h.wantState(t3, nav.HWMInDrawdown)
	if got := h.e.HWMStatus(t3).LowestNavInDrawdown; got.Cmp(navMils(490)) != 0 {
		t.Errorf("lowest after dip: got %s, want %s", got, navMils(490))
	}

	// 0.515 clears the new threshold 0.490 * 1.05 = 0.5145; recovery
	// restarts from here.
	t4 := t0.Add(4 * time.Hour)
	h.value(515, t4)
	h.wantState(t4, nav.HWMRecovering)

	// Held for 71h: not yet.
	t5 := t4.Add(71 * time.Hour)
	res := h.value(515, t5)
	if res.Reset != nil {
		t.Errorf("reset before recovery period elapsed: %+v", res.Reset)
	}
	h.wantState(t5, nav.HWMRecovering)

	// 72h of continuous recovery: the mark resets to current NAV, which is
	// below the previous all-time high.
	t6 := t4.Add(72 * time.Hour)
	res = h.value(515, t6)
	if res.Reset == nil {
		t.Fatal("expected reset after recovery period")
	}
	if res.Reset.Previous.Cmp(fixmath.Wad) != 0 {
		t.Errorf("reset previous: got %s, want %s", res.Reset.Previous, fixmath.Wad)
	}
	if res.Reset.Current.Cmp(navMils(515)) != 0 {
		t.Errorf("reset current: got %s, want %s", res.Reset.Current, navMils(515))
	}
	h.wantState(t6, nav.HWMAtHigh)
	if got := h.e.HWMStatus(t6).HighWaterMark; got.Cmp(navMils(515)) != 0 {
		t.Errorf("hwm after reset: got %s, want %s", got, navMils(515))
	}
}

func TestHWM_NewLowRestartsRecoveryClock(t *testing.T) {
	h := newHWMEngine(t)
	h.value(1000, t0)
	h.value(500, t0.Add(1*time.Hour))
	h.value(525, t0.Add(2*time.Hour))
	h.wantState(t0.Add(2*time.Hour), nav.HWMRecovering)

	status := h.e.HWMStatus(t0.Add(2 * time.Hour))
	if status.TimeToReset != 72*time.Hour {
		t.Errorf("time to reset: got %s, want 72h", status.TimeToReset)
	}

	// A new low below the old one cancels the timer outright.
	h.value(400, t0.Add(3*time.Hour))
	h.wantState(t0.Add(3*time.Hour), nav.HWMInDrawdown)
	if got := h.e.HWMStatus(t0.Add(3 * time.Hour)).LowestNavInDrawdown; got.Cmp(navMils(400)) != 0 {
		t.Errorf("lowest: got %s, want %s", got, navMils(400))
	}
}

func TestHWM_RecoveryToNewHighClearsDrawdown(t *testing.T) {
	h := newHWMEngine(t)
	h.value(1000, t0)
	h.value(500, t0.Add(1*time.Hour))
	h.wantState(t0.Add(1*time.Hour), nav.HWMInDrawdown)

	// NAV above the old mark exits the drawdown immediately, no waiting
	// period, and no reset event.
	res := h.value(1100, t0.Add(2*time.Hour))
	if res.Reset != nil {
		t.Errorf("unexpected reset on outright new high: %+v", res.Reset)
	}
	h.wantState(t0.Add(2*time.Hour), nav.HWMAtHigh)
	if got := h.e.HWMStatus(t0.Add(2 * time.Hour)).HighWaterMark; got.Cmp(navMils(1100)) != 0 {
		t.Errorf("hwm: got %s, want %s", got, navMils(1100))
	}
}

// ============================================================================
// Test: state transition table
// ============================================================================

func TestHWMState_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to nav.HWMState
		want     bool
	}{
		{nav.HWMAtHigh, nav.HWMInDrawdown, true},
		{nav.HWMAtHigh, nav.HWMRecovering, false},
		{nav.HWMInDrawdown, nav.HWMRecovering, true},
		{nav.HWMInDrawdown, nav.HWMAtHigh, true},
		{nav.HWMRecovering, nav.HWMAtHigh, true},
		{nav.HWMRecovering, nav.HWMInDrawdown, true},
		{nav.HWMAtHigh, nav.HWMAtHigh, true},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
