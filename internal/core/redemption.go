package core

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"vaultcore/internal/custody"
	"vaultcore/internal/event"
	fixmath "vaultcore/internal/math"
	"vaultcore/internal/nav"
	"vaultcore/internal/queue"
)

// RequestRedemption enqueues a redemption. Shares stay in the holder's
// balance but are reserved: the holder's balance must cover the new request
// plus every redemption already pending, and the burn happens only at
// processing. minPayout is the slippage floor in native units.
func (v *Vault) RequestRedemption(holder uuid.UUID, shares, minPayout *big.Int) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkNormalMode("request_redemption"); err != nil {
		return 0, err
	}
	if shares.Cmp(v.cfg.MinRedemptionShares()) < 0 {
		v.rejected("request_redemption", "below_minimum")
		return 0, fmt.Errorf("%w: shares %s, min %s", ErrBelowMinimum, shares, v.cfg.MinRedemptionShares())
	}
	now := v.clock()
	if v.navEng.IsStale(now) {
		v.rejected("request_redemption", "stale_valuation")
		return 0, nav.ErrStaleValuation
	}

	reserved := new(big.Int).Add(v.redeems.PendingAmount(holder), shares)
	if v.shares.BalanceOf(holder).Cmp(reserved) < 0 {
		v.rejected("request_redemption", "insufficient_shares")
		return 0, fmt.Errorf("%w: balance %s, reserved %s",
			ErrInsufficientShares, v.shares.BalanceOf(holder), reserved)
	}

	currentNav := v.navEng.Nav()
	idx, err := v.redeems.Enqueue(holder, shares, currentNav, minPayout)
	if err != nil {
		v.rejected("request_redemption", "queue")
		return 0, err
	}

	v.emit(event.EventTypeRedemptionQueued, holderKey(holder), event.RedemptionQueued{
		Index:        idx,
		Holder:       holder,
		Shares:       new(big.Int).Set(shares),
		NavAtEnqueue: currentNav,
		MinPayout:    new(big.Int).Set(minPayout),
	})
	v.applied("request_redemption")
	if v.metrics != nil {
		v.metrics.QueueEnqueued.WithLabelValues(event.QueueRedemptions).Inc()
	}
	v.queueDepths()

	if v.cfg.AutoProcess() {
		if res, err := v.redeems.ProcessAt(idx, &redemptionProcessor{v}); err == nil {
			v.emitQueueResult(event.QueueRedemptions, res)
		}
	}
	return idx, nil
}

// redemptionProcessor prices queued redemptions at current NAV. Evaluate is
// pure. Apply first checks that the payout is coverable so an uncoverable
// item skips with nothing moved; once coverable, shares burn and accounting
// updates strictly before the custody call, and a mid-payment shortfall is
// surfaced as a PayoutShortfall event rather than unwinding the burn.
type redemptionProcessor struct {
	v *Vault
}

func (p *redemptionProcessor) Evaluate(item *queue.Item) (queue.Outcome, error) {
	gross := fixmath.AmountForShares(item.Amount, p.v.navEng.Nav())
	net, fee := p.v.navEng.ComputeExitFee(gross)
	payout := fixmath.Denormalize(net, p.v.navEng.Factor())
	return queue.Outcome{Output: payout, Fee: fee}, nil
}

func (p *redemptionProcessor) Apply(item *queue.Item, out queue.Outcome) error {
	coverable, err := p.v.payer.CanCover(out.Output)
	if err != nil {
		return fmt.Errorf("liquidity check: %w", err)
	}
	if !coverable {
		return &queue.SkipError{Reason: queue.ReasonPayoutFailed}
	}

	gross := fixmath.AmountForShares(item.Amount, p.v.navEng.Nav())
	p.v.navEng.AccrueExitFee(gross)

	if err := p.v.shares.Burn(item.Holder, item.Amount); err != nil {
		return fmt.Errorf("burn %s shares of %s: %w", item.Amount, item.Holder, err)
	}
	p.v.navEng.SubAum(fixmath.Normalize(out.Output, p.v.navEng.Factor()))

	payRes, payErr := p.v.payer.Pay(item.Holder, out.Output)
	if payErr != nil {
		p.v.emitShortfall(item.Holder, payRes)
	}
	return nil
}

// redemptionRestorer releases the share reservation on cancellation. The
// shares never left the holder's balance, so nothing moves.
type redemptionRestorer struct{}

func (redemptionRestorer) Restore(*queue.Item) error {
	return nil
}

// ProcessRedemptions walks up to maxCount live redemption requests from the
// head under the shared eligibility rule.
func (v *Vault) ProcessRedemptions(maxCount int) ([]queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkNormalMode("process_redemptions"); err != nil {
		return nil, err
	}
	if v.navEng.IsStale(v.clock()) {
		v.rejected("process_redemptions", "stale_valuation")
		return nil, nav.ErrStaleValuation
	}

	results, err := v.redeems.ProcessBatch(maxCount, &redemptionProcessor{v})
	for _, res := range results {
		v.emitQueueResult(event.QueueRedemptions, res)
	}
	v.queueDepths()
	if err != nil {
		v.rejected("process_redemptions", "batch")
		return results, err
	}
	v.applied("process_redemptions")
	return results, nil
}

// ProcessRedemptionAt processes exactly one redemption request by index.
func (v *Vault) ProcessRedemptionAt(index uint64) (queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkNormalMode("process_redemption_at"); err != nil {
		return queue.Result{}, err
	}
	if v.navEng.IsStale(v.clock()) {
		v.rejected("process_redemption_at", "stale_valuation")
		return queue.Result{}, nav.ErrStaleValuation
	}

	res, err := v.redeems.ProcessAt(index, &redemptionProcessor{v})
	if err != nil {
		v.rejected("process_redemption_at", "queue")
		return queue.Result{}, err
	}
	v.emitQueueResult(event.QueueRedemptions, res)
	v.queueDepths()
	v.applied("process_redemption_at")
	return res, nil
}

// CancelRedemptionsByHolder cancels up to max of the holder's queued
// redemptions, releasing their share reservations.
func (v *Vault) CancelRedemptionsByHolder(holder uuid.UUID, max int) ([]queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	results, err := v.redeems.CancelByHolder(holder, max, redemptionRestorer{})
	v.emitCancellations(event.QueueRedemptions, results)
	v.queueDepths()
	if err != nil {
		v.rejected("cancel_redemptions", "queue")
		return results, err
	}
	v.applied("cancel_redemptions")
	return results, nil
}

// CancelRedemptionAt cancels one queued redemption by index.
// Administrative path.
func (v *Vault) CancelRedemptionAt(index uint64) (queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	res, err := v.redeems.CancelAt(index, redemptionRestorer{})
	if err != nil {
		v.rejected("cancel_redemption_at", "queue")
		return queue.Result{}, err
	}
	v.emitCancellations(event.QueueRedemptions, []queue.Result{res})
	v.queueDepths()
	v.applied("cancel_redemption_at")
	return res, nil
}

// CancelRedemptionBatch cancels an explicit list of queued redemption
// indices. Administrative path.
func (v *Vault) CancelRedemptionBatch(indices []uint64) ([]queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	results, err := v.redeems.CancelBatch(indices, redemptionRestorer{})
	v.emitCancellations(event.QueueRedemptions, results)
	v.queueDepths()
	if err != nil {
		v.rejected("cancel_redemption_batch", "queue")
		return results, err
	}
	v.applied("cancel_redemption_batch")
	return results, nil
}

// emitShortfall surfaces a partial payout. Never silently absorbed: the
// operation may still succeed, but the under-payment is always observable.
func (v *Vault) emitShortfall(recipient uuid.UUID, res custody.PayResult) {
	v.emit(event.EventTypePayoutShortfall, holderKey(recipient), event.PayoutShortfall{
		Recipient: recipient,
		Requested: res.Requested,
		Paid:      res.Paid,
		Reason:    res.Reason,
	})
	if v.metrics != nil {
		v.metrics.PayoutShortfalls.WithLabelValues(res.Reason).Inc()
	}
	v.log.Error().
		Str("recipient", recipient.String()).
		Str("requested", res.Requested.String()).
		Str("paid", res.Paid.String()).
		Str("reason", res.Reason).
		Msg("payout shortfall")
}
