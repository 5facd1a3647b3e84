package config

import (
	"math/big"
	"sync"
	"time"
)

// Provider exposes the mutable caps and thresholds the core consults. The
// core always re-reads through this interface rather than caching values, so
// a configuration change takes effect on the next operation.
type Provider interface {
	MinDeposit() *big.Int          // native units
	MinRedemptionShares() *big.Int // share units (18 decimals)

	MaxQueueLength() uint64
	MaxPendingPerHolder() int
	MaxBatchSize() int
	MaxCancelBatch() int

	MaxAumAge() time.Duration       // valuation freshness window
	FeeAccrualBound() time.Duration // cap on elapsed time used in fee accrual

	HWMDrawdownBps() int64
	HWMRecoveryBps() int64
	HWMRecoveryPeriod() time.Duration

	TargetLiquidityBps() int64

	EmergencyThreshold() time.Duration
	AutoProcess() bool
}

// Params is a plain value bag backing the Static provider.
type Params struct {
	MinDeposit          *big.Int
	MinRedemptionShares *big.Int

	MaxQueueLength      uint64
	MaxPendingPerHolder int
	MaxBatchSize        int
	MaxCancelBatch      int

	MaxAumAge       time.Duration
	FeeAccrualBound time.Duration

	HWMDrawdownBps    int64
	HWMRecoveryBps    int64
	HWMRecoveryPeriod time.Duration

	TargetLiquidityBps int64

	EmergencyThreshold time.Duration
	AutoProcess        bool
}

// DefaultParams returns the MVP defaults.
func DefaultParams() Params {
	return Params{
		MinDeposit:          big.NewInt(1),
		MinRedemptionShares: big.NewInt(1),
		MaxQueueLength:      10_000,
		MaxPendingPerHolder: 10,
		MaxBatchSize:        100,
		MaxCancelBatch:      50,
		MaxAumAge:           24 * time.Hour,
		FeeAccrualBound:     7 * 24 * time.Hour,
		HWMDrawdownBps:      1_000, // 10%
		HWMRecoveryBps:      500,   // 5%
		HWMRecoveryPeriod:   72 * time.Hour,
		TargetLiquidityBps:  1_000, // 10% of AUM stays liquid
		EmergencyThreshold:  30 * 24 * time.Hour,
		AutoProcess:         false,
	}
}

// Static is a mutable in-memory Provider. Updates land through Update and
// are visible to the core on its next read.
type Static struct {
	mu     sync.RWMutex
	params Params
}

func NewStatic(p Params) *Static {
	return &Static{params: p}
}

// Update replaces the full parameter set.
func (s *Static) Update(fn func(*Params)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.params)
}

func (s *Static) MinDeposit() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.params.MinDeposit)
}

func (s *Static) MinRedemptionShares() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.params.MinRedemptionShares)
}

func (s *Static) MaxQueueLength() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.MaxQueueLength
}

func (s *Static) MaxPendingPerHolder() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.MaxPendingPerHolder
}

func (s *Static) MaxBatchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.MaxBatchSize
}

func (s *Static) MaxCancelBatch() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.MaxCancelBatch
}

func (s *Static) MaxAumAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.MaxAumAge
}

func (s *Static) FeeAccrualBound() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.FeeAccrualBound
}

func (s *Static) HWMDrawdownBps() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.HWMDrawdownBps
}

func (s *Static) HWMRecoveryBps() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.HWMRecoveryBps
}

func (s *Static) HWMRecoveryPeriod() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.HWMRecoveryPeriod
}

func (s *Static) TargetLiquidityBps() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.TargetLiquidityBps
}

func (s *Static) EmergencyThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.EmergencyThreshold
}

func (s *Static) AutoProcess() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.AutoProcess
}
