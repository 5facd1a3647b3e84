package ingestion

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"vaultcore/internal/core"
	"vaultcore/internal/event"
	"vaultcore/internal/nav"
	"vaultcore/internal/observability"
	"vaultcore/internal/queue"
)

// Dispatcher applies parsed commands to the core. Rejections are terminal:
// a command the core refuses (bad input, wrong mode, economic rejection)
// is ACKed and logged, never redelivered, because replaying it cannot
// succeed against the same state.
type Dispatcher struct {
	vault *core.Vault
	log   zerolog.Logger
}

func NewDispatcher(vault *core.Vault) *Dispatcher {
	return &Dispatcher{
		vault: vault,
		log:   observability.NewLogger("dispatcher"),
	}
}

// Apply parses and applies one raw command, then ACKs or NAKs it.
func (d *Dispatcher) Apply(raw RawCommand) {
	cmd, err := ParseRawCommand(raw, raw.CommandType())
	if err != nil {
		d.log.Error().Err(err).Str("subject", raw.Subject).Msg("unparseable command")
		raw.AckFunc()
		return
	}

	if err := d.dispatch(cmd); err != nil {
		if transient(err) {
			d.log.Warn().Err(err).Str("type", cmd.CommandType()).Msg("command deferred")
			raw.NakFunc()
			return
		}
		d.log.Info().Err(err).Str("type", cmd.CommandType()).Msg("command rejected")
	}
	raw.AckFunc()
}

func (d *Dispatcher) dispatch(cmd Command) error {
	switch c := cmd.(type) {
	case DepositCommand:
		_, err := d.vault.Deposit(c.Holder, c.Amount, c.MinShares)
		return err
	case RedemptionCommand:
		_, err := d.vault.RequestRedemption(c.Holder, c.Shares, c.MinPayout)
		return err
	case ValuationCommand:
		return d.vault.UpdateValuation(c.AumNative)
	case ProcessCommand:
		var err error
		if c.Queue == event.QueueDeposits {
			_, err = d.vault.ProcessDeposits(c.MaxCount)
		} else {
			_, err = d.vault.ProcessRedemptions(c.MaxCount)
		}
		return err
	case CancelCommand:
		return d.cancel(c)
	case PayFeesCommand:
		_, err := d.vault.PayFees(c.Recipient)
		return err
	case SuspendCommand:
		return d.vault.Suspend()
	case ResumeCommand:
		return d.vault.Resume()
	case EmergencyActivateCommand:
		_, err := d.vault.ActivateEmergency()
		return err
	case EmergencyDeactivateCommand:
		return d.vault.DeactivateEmergency()
	case EmergencyWithdrawCommand:
		_, err := d.vault.EmergencyWithdraw(c.Holder)
		return err
	case SetFeeRatesCommand:
		return d.vault.SetFeeRates(nav.Rates{
			ManagementBps:  c.ManagementBps,
			PerformanceBps: c.PerformanceBps,
			EntranceBps:    c.EntranceBps,
			ExitBps:        c.ExitBps,
		})
	default:
		return fmt.Errorf("unhandled command type %s", cmd.CommandType())
	}
}

func (d *Dispatcher) cancel(c CancelCommand) error {
	if len(c.Indices) > 0 {
		var err error
		if c.Queue == event.QueueDeposits {
			_, err = d.vault.CancelDepositBatch(c.Indices)
		} else {
			_, err = d.vault.CancelRedemptionBatch(c.Indices)
		}
		return err
	}
	var err error
	if c.Queue == event.QueueDeposits {
		_, err = d.vault.CancelDepositsByHolder(c.Holder, c.Max)
	} else {
		_, err = d.vault.CancelRedemptionsByHolder(c.Holder, c.Max)
	}
	return err
}

// transient reports whether a command failure can succeed on redelivery.
// Staleness clears on the next valuation; everything else is a terminal
// rejection against current state.
func transient(err error) bool {
	return errors.Is(err, nav.ErrStaleValuation) || errors.Is(err, queue.ErrQueueFull)
}
