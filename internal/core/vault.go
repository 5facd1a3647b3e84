package core

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vaultcore/internal/config"
	"vaultcore/internal/custody"
	"vaultcore/internal/emergency"
	"vaultcore/internal/event"
	"vaultcore/internal/ledger"
	"vaultcore/internal/nav"
	"vaultcore/internal/observability"
	"vaultcore/internal/queue"
)

var (
	ErrSuspended    = errors.New("vault is suspended")
	ErrNotSuspended = errors.New("vault is not suspended")

	// ErrEmergencyActive rejects normal operations while the liquidation
	// path is on.
	ErrEmergencyActive = errors.New("emergency mode active")

	ErrBelowMinimum       = errors.New("amount below configured minimum")
	ErrInsufficientShares = errors.New("holder balance below requested plus pending redemptions")
	ErrNoShares           = errors.New("holder has no shares")
)

// Output is what the vault emits per committed transition: the sequence
// envelope plus the typed payload.
type Output struct {
	Envelope *event.Envelope
	Payload  interface{}
}

// Vault is the accounting core orchestrator. It binds the NAV/fee engine,
// the two request queues and the emergency engine to the share ledger and
// custodian, and serializes every public operation under one mutex: each
// transition runs to completion before the next begins, and state mutation
// is ordered strictly before external custody calls.
type Vault struct {
	mu sync.Mutex

	sequence int64

	cfg       config.Provider
	navEng    *nav.Engine
	deposits  *queue.Engine
	redeems   *queue.Engine
	emergency *emergency.Engine
	shares    ledger.ShareLedger
	custodian custody.Custodian
	payer     *custody.Payer

	suspended   bool
	suspendedAt time.Time

	metrics *observability.Metrics
	log     zerolog.Logger
	clock   func() time.Time

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// NewVault builds a vault for an asset with the given native decimal count.
// persistChan and projectionChan may be nil for in-memory use.
func NewVault(
	startSequence int64,
	cfg config.Provider,
	decimals int,
	rates nav.Rates,
	shares ledger.ShareLedger,
	custodian custody.Custodian,
	metrics *observability.Metrics,
	persistChan, projectionChan chan<- Output,
) (*Vault, error) {
	navEng, err := nav.NewEngine(cfg, decimals, rates)
	if err != nil {
		return nil, err
	}
	return &Vault{
		sequence:       startSequence,
		cfg:            cfg,
		navEng:         navEng,
		deposits:       queue.NewEngine(event.QueueDeposits, cfg),
		redeems:        queue.NewEngine(event.QueueRedemptions, cfg),
		emergency:      emergency.NewEngine(),
		shares:         shares,
		custodian:      custodian,
		payer:          custody.NewPayer(custodian),
		metrics:        metrics,
		log:            observability.NewLogger("core"),
		clock:          time.Now,
		persistChan:    persistChan,
		projectionChan: projectionChan,
	}, nil
}

// SetClock replaces the time source. Test hook.
func (v *Vault) SetClock(clock func() time.Time) {
	v.clock = clock
}

// emit wraps a payload in the next sequence envelope and pushes it out.
// The persist channel uses a BLOCKING send (backpressure: the core stalls
// until the persistence worker drains, so no event is lost). The projection
// channel uses a NON-BLOCKING send with silent drop; projections rebuild
// from the event log when they fall behind.
func (v *Vault) emit(t event.EventType, key string, payload interface{}) {
	env := &event.Envelope{
		Sequence:  v.sequence,
		EventType: t,
		Key:       key,
		Timestamp: v.clock(),
	}
	v.sequence++

	out := Output{Envelope: env, Payload: payload}

	if v.persistChan != nil {
		v.persistChan <- out
	}
	if v.projectionChan != nil {
		select {
		case v.projectionChan <- out:
		default:
			if v.metrics != nil {
				v.metrics.ProjectionDrops.Inc()
			}
		}
	}

	if v.metrics != nil {
		v.metrics.CoreSequence.Set(float64(v.sequence))
	}
}

func (v *Vault) applied(op string) {
	if v.metrics != nil {
		v.metrics.OpsApplied.WithLabelValues(op).Inc()
	}
}

func (v *Vault) rejected(op, reason string) {
	if v.metrics != nil {
		v.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
}

func (v *Vault) queueDepths() {
	if v.metrics != nil {
		v.metrics.QueueDepth.WithLabelValues(event.QueueDeposits).Set(float64(v.deposits.Len()))
		v.metrics.QueueDepth.WithLabelValues(event.QueueRedemptions).Set(float64(v.redeems.Len()))
	}
}

// Suspend halts deposits, redemptions and queue processing. The suspension
// timestamp feeds the emergency auto-activation threshold.
func (v *Vault) Suspend() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.suspended {
		return ErrSuspended
	}
	v.suspended = true
	v.suspendedAt = v.clock()
	v.emit(event.EventTypeVaultSuspended, "vault", event.VaultSuspended{})
	v.applied("suspend")
	v.log.Warn().Time("suspended_at", v.suspendedAt).Msg("vault suspended")
	return nil
}

// Resume lifts a suspension.
func (v *Vault) Resume() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.suspended {
		return ErrNotSuspended
	}
	v.suspended = false
	v.suspendedAt = time.Time{}
	v.emit(event.EventTypeVaultResumed, "vault", event.VaultResumed{})
	v.applied("resume")
	v.log.Info().Msg("vault resumed")
	return nil
}

// Suspended reports the suspension flag.
func (v *Vault) Suspended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.suspended
}

// SetFeeRates replaces the four fee rates after bounds validation.
func (v *Vault) SetFeeRates(r nav.Rates) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.navEng.SetRates(r); err != nil {
		v.rejected("set_fee_rates", "bounds")
		return err
	}
	v.emit(event.EventTypeFeeRatesUpdated, "vault", event.FeeRatesUpdated{
		ManagementBps:  r.ManagementBps,
		PerformanceBps: r.PerformanceBps,
		EntranceBps:    r.EntranceBps,
		ExitBps:        r.ExitBps,
	})
	v.applied("set_fee_rates")
	return nil
}

// checkNormalMode rejects operations while suspended or in emergency.
func (v *Vault) checkNormalMode(op string) error {
	if v.suspended {
		v.rejected(op, "suspended")
		return ErrSuspended
	}
	if v.emergency.Active() {
		v.rejected(op, "emergency")
		return ErrEmergencyActive
	}
	return nil
}

// reachableLiquidity is buffer plus, while the relay is up, the secondary
// vault balance. Native units.
func (v *Vault) reachableLiquidity() (*big.Int, error) {
	buf, err := v.custodian.Balance(custody.LocationBuffer)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Set(buf)
	if v.custodian.RelayAvailable() {
		vaultBal, err := v.custodian.Balance(custody.LocationVault)
		if err != nil {
			return nil, err
		}
		total.Add(total, vaultBal)
	}
	return total, nil
}

func holderKey(h uuid.UUID) string {
	return h.String()
}
