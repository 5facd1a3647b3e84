package nav

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"vaultcore/internal/config"
	fixmath "vaultcore/internal/math"
)

// Rate bounds in basis points. Rates outside these are rejected at
// construction and on every update.
const (
	MaxManagementBps  = 500   // 5% per year
	MaxPerformanceBps = 5_000 // 50% of appreciation above the mark
	MaxEntranceBps    = 500
	MaxExitBps        = 500
)

var (
	ErrZeroAum = errors.New("reported AUM is zero")

	// ErrAumBelowLiquidity rejects a valuation reporting less AUM than the
	// custodian provably holds.
	ErrAumBelowLiquidity = errors.New("reported AUM below custodian liquidity")

	ErrRateOutOfBounds = errors.New("fee rate outside allowed bounds")

	// ErrInsufficientLiquidity rejects a fee payout that would drop liquidity
	// below the configured target ratio.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for fee payout")

	ErrStaleValuation = errors.New("valuation is stale")
)

// Rates holds the four fee rates in basis points.
type Rates struct {
	ManagementBps  int64
	PerformanceBps int64
	EntranceBps    int64
	ExitBps        int64
}

// Validate checks every rate against its bound.
func (r Rates) Validate() error {
	check := func(name string, v, max int64) error {
		if v < 0 || v > max {
			return fmt.Errorf("%w: %s=%d, max=%d", ErrRateOutOfBounds, name, v, max)
		}
		return nil
	}
	if err := check("management", r.ManagementBps, MaxManagementBps); err != nil {
		return err
	}
	if err := check("performance", r.PerformanceBps, MaxPerformanceBps); err != nil {
		return err
	}
	if err := check("entrance", r.EntranceBps, MaxEntranceBps); err != nil {
		return err
	}
	return check("exit", r.ExitBps, MaxExitBps)
}

// Accrued is the fee balance breakdown, all in normalized units.
type Accrued struct {
	Management  *big.Int
	Performance *big.Int
	Entrance    *big.Int
	Exit        *big.Int
}

// Total sums the four balances.
func (a Accrued) Total() *big.Int {
	total := new(big.Int).Add(a.Management, a.Performance)
	total.Add(total, a.Entrance)
	return total.Add(total, a.Exit)
}

// Engine maintains fee rates, accrued-fee balances, AUM, NAV and the
// high-water-mark hysteresis state. All NAV math runs in the 18-decimal
// normalized unit; the native decimal factor is threaded through every
// conversion. The engine holds no lock: the orchestrator serializes access.
type Engine struct {
	cfg config.Provider

	decimals int
	factor   *big.Int // 10^(18-decimals)

	rates   Rates
	accrued Accrued

	aum          *big.Int // normalized, gross of accrued fees
	aumTimestamp time.Time
	nav          *big.Int // normalized, Wad = parity

	hwm           *big.Int
	hwmState      HWMState
	lowestNav     *big.Int
	recoveryStart time.Time
}

// NewEngine builds an engine for an asset with the given native decimal
// count. NAV and HWM start at parity.
func NewEngine(cfg config.Provider, decimals int, rates Rates) (*Engine, error) {
	factor, err := fixmath.DecimalFactor(decimals)
	if err != nil {
		return nil, err
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		decimals: decimals,
		factor:   factor,
		rates:    rates,
		accrued: Accrued{
			Management:  new(big.Int),
			Performance: new(big.Int),
			Entrance:    new(big.Int),
			Exit:        new(big.Int),
		},
		aum:      new(big.Int),
		nav:      new(big.Int).Set(fixmath.Wad),
		hwm:      new(big.Int).Set(fixmath.Wad),
		hwmState: HWMAtHigh,
	}, nil
}

// ValuationResult reports one pass of UpdateValuation.
type ValuationResult struct {
	GrossAum       *big.Int
	AdjustedAum    *big.Int
	Nav            *big.Int
	ManagementFee  *big.Int // accrued this period, normalized
	PerformanceFee *big.Int // accrued this period, normalized
	Reset          *HWMReset
}

// UpdateValuation ingests a reported AUM figure and recomputes NAV.
//
// Evaluation order is fixed: management fee on the elapsed period, then
// performance fee on the provisional gross NAV above the mark, then the full
// accrued balance is deducted from AUM, then the hysteresis step runs on the
// resulting NAV. Fees accrue only when the elapsed period is within the
// freshness window, and the elapsed time used in the rate calculation is
// capped so a single stale update cannot charge an unbounded period.
func (e *Engine) UpdateValuation(newAumNative, totalSupply, liquidityNative *big.Int, now time.Time) (ValuationResult, error) {
	if newAumNative.Sign() == 0 {
		return ValuationResult{}, ErrZeroAum
	}
	if newAumNative.Cmp(liquidityNative) < 0 {
		return ValuationResult{}, fmt.Errorf("%w: aum=%s, liquidity=%s",
			ErrAumBelowLiquidity, newAumNative, liquidityNative)
	}

	aumNorm := fixmath.Normalize(newAumNative, e.factor)
	mgmtFee := new(big.Int)
	perfFee := new(big.Int)

	if totalSupply.Sign() > 0 && !e.aumTimestamp.IsZero() {
		elapsed := now.Sub(e.aumTimestamp)
		if elapsed > 0 && elapsed <= e.cfg.MaxAumAge() {
			if bound := e.cfg.FeeAccrualBound(); elapsed > bound {
				elapsed = bound
			}
			elapsedSec := int64(elapsed / time.Second)

			// managementFee = nav * mgmtBps/DENOM * elapsed/year * supply/Wad
			mgmtFee = fixmath.BpsOf(e.nav, e.rates.ManagementBps)
			mgmtFee = fixmath.MulDiv(mgmtFee, big.NewInt(elapsedSec), big.NewInt(fixmath.SecondsPerYear))
			mgmtFee = fixmath.MulDiv(mgmtFee, totalSupply, fixmath.Wad)
			e.accrued.Management.Add(e.accrued.Management, mgmtFee)

			// Performance fee on the provisional gross NAV above the mark.
			grossNav := fixmath.NavPerShare(aumNorm, totalSupply)
			if grossNav.Cmp(e.hwm) > 0 {
				excess := new(big.Int).Sub(grossNav, e.hwm)
				perfFee = fixmath.BpsOf(excess, e.rates.PerformanceBps)
				perfFee = fixmath.MulDiv(perfFee, totalSupply, fixmath.Wad)
				e.accrued.Performance.Add(e.accrued.Performance, perfFee)
			}
		}
	}

	adjusted := new(big.Int).Sub(aumNorm, e.accrued.Total())
	if adjusted.Sign() < 0 {
		adjusted.SetInt64(0)
	}

	e.aum.Set(aumNorm)
	e.aumTimestamp = now
	if totalSupply.Sign() > 0 {
		e.nav = fixmath.NavPerShare(adjusted, totalSupply)
	} else {
		e.nav = new(big.Int).Set(fixmath.Wad)
	}

	reset := e.updateHighWaterMark(now)

	return ValuationResult{
		GrossAum:       aumNorm,
		AdjustedAum:    adjusted,
		Nav:            new(big.Int).Set(e.nav),
		ManagementFee:  mgmtFee,
		PerformanceFee: perfFee,
		Reset:          reset,
	}, nil
}

// ComputeEntranceFee is the pure variant: fee on a native deposit amount
// without accruing it.
func (e *Engine) ComputeEntranceFee(depositNative *big.Int) (net, fee *big.Int) {
	fee = fixmath.BpsOf(depositNative, e.rates.EntranceBps)
	net = new(big.Int).Sub(depositNative, fee)
	return net, fee
}

// AccrueEntranceFee deducts the entrance fee from a native deposit amount
// and accrues the normalized fee.
func (e *Engine) AccrueEntranceFee(depositNative *big.Int) (net, fee *big.Int) {
	net, fee = e.ComputeEntranceFee(depositNative)
	e.accrued.Entrance.Add(e.accrued.Entrance, fixmath.Normalize(fee, e.factor))
	return net, fee
}

// ComputeExitFee is the pure variant: fee on a normalized gross redemption
// value without accruing it.
func (e *Engine) ComputeExitFee(grossNormalized *big.Int) (net, fee *big.Int) {
	fee = fixmath.BpsOf(grossNormalized, e.rates.ExitBps)
	net = new(big.Int).Sub(grossNormalized, fee)
	return net, fee
}

// AccrueExitFee deducts the exit fee from a normalized gross redemption
// value and accrues it.
func (e *Engine) AccrueExitFee(grossNormalized *big.Int) (net, fee *big.Int) {
	net, fee = e.ComputeExitFee(grossNormalized)
	e.accrued.Exit.Add(e.accrued.Exit, fee)
	return net, fee
}

// AddAum credits committed inflows (normalized) between valuations.
func (e *Engine) AddAum(deltaNormalized *big.Int) {
	e.aum.Add(e.aum, deltaNormalized)
}

// SubAum debits committed outflows (normalized) between valuations. Clamps
// at zero rather than going negative.
func (e *Engine) SubAum(deltaNormalized *big.Int) {
	e.aum.Sub(e.aum, deltaNormalized)
	if e.aum.Sign() < 0 {
		e.aum.SetInt64(0)
	}
}

// FeeSettlement reports the outcome of SettleFees.
type FeeSettlement struct {
	Requested *big.Int // total accrued, native units
	Paid      *big.Int // native units
	Partial   bool
}

// SettleFees reduces the accrued balances against available liquidity and
// returns the native amount the orchestrator must pay out. The payout is the
// lesser of total accrued and available liquidity; a partial payment reduces
// each of the four balances proportionally so the fee-type mix is preserved.
// Fails unless liquidity stays at or above the configured target ratio of
// AUM. Accrued state is reduced before the caller moves any value.
func (e *Engine) SettleFees(liquidityNative *big.Int) (FeeSettlement, error) {
	aumNative := fixmath.Denormalize(e.aum, e.factor)
	target := fixmath.BpsOf(aumNative, e.cfg.TargetLiquidityBps())
	if liquidityNative.Cmp(target) < 0 {
		return FeeSettlement{}, fmt.Errorf("%w: liquidity=%s, target=%s",
			ErrInsufficientLiquidity, liquidityNative, target)
	}

	totalNorm := e.accrued.Total()
	requested := fixmath.Denormalize(totalNorm, e.factor)
	if requested.Sign() == 0 {
		return FeeSettlement{Requested: requested, Paid: new(big.Int)}, nil
	}

	paid := new(big.Int).Set(requested)
	partial := false
	if liquidityNative.Cmp(paid) < 0 {
		paid.Set(liquidityNative)
		partial = true
	}

	if partial {
		paidNorm := fixmath.Normalize(paid, e.factor)
		remaining := new(big.Int).Sub(totalNorm, paidNorm)
		for _, bal := range []*big.Int{
			e.accrued.Management, e.accrued.Performance,
			e.accrued.Entrance, e.accrued.Exit,
		} {
			bal.Set(fixmath.MulDiv(bal, remaining, totalNorm))
		}
		e.SubAum(paidNorm)
	} else {
		// Full settlement zeroes every balance so denormalization dust
		// cannot accumulate.
		e.accrued.Management.SetInt64(0)
		e.accrued.Performance.SetInt64(0)
		e.accrued.Entrance.SetInt64(0)
		e.accrued.Exit.SetInt64(0)
		e.SubAum(totalNorm)
	}

	return FeeSettlement{Requested: requested, Paid: paid, Partial: partial}, nil
}

// SetRates replaces the fee rates after bounds validation.
func (e *Engine) SetRates(r Rates) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.rates = r
	return nil
}

// Rates returns the current fee rates.
func (e *Engine) Rates() Rates {
	return e.rates
}

// IsStale reports whether the last valuation is older than the configured
// maximum age. A never-valued engine is stale.
func (e *Engine) IsStale(now time.Time) bool {
	if e.aumTimestamp.IsZero() {
		return true
	}
	return now.Sub(e.aumTimestamp) > e.cfg.MaxAumAge()
}

// Nav returns the current NAV per share, normalized.
func (e *Engine) Nav() *big.Int {
	return new(big.Int).Set(e.nav)
}

// Aum returns the current gross AUM, normalized.
func (e *Engine) Aum() *big.Int {
	return new(big.Int).Set(e.aum)
}

// AumNative returns the current gross AUM floored to native units.
func (e *Engine) AumNative() *big.Int {
	return fixmath.Denormalize(e.aum, e.factor)
}

// AumTimestamp returns the time of the last accepted valuation.
func (e *Engine) AumTimestamp() time.Time {
	return e.aumTimestamp
}

// AccruedFees returns a copy of the accrued balance breakdown.
func (e *Engine) AccruedFees() Accrued {
	return Accrued{
		Management:  new(big.Int).Set(e.accrued.Management),
		Performance: new(big.Int).Set(e.accrued.Performance),
		Entrance:    new(big.Int).Set(e.accrued.Entrance),
		Exit:        new(big.Int).Set(e.accrued.Exit),
	}
}

// Factor returns the native-to-normalized decimal factor.
func (e *Engine) Factor() *big.Int {
	return e.factor
}

// Decimals returns the asset's native decimal count.
func (e *Engine) Decimals() int {
	return e.decimals
}
