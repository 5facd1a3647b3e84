package core

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"vaultcore/internal/event"
	fixmath "vaultcore/internal/math"
	"vaultcore/internal/nav"
	"vaultcore/internal/queue"
)

// Deposit enqueues a deposit request. The asset must already sit in the
// custodian buffer; shares are minted only when the request is processed at
// then-current NAV. minShares is the slippage floor.
func (v *Vault) Deposit(holder uuid.UUID, amount, minShares *big.Int) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkNormalMode("deposit"); err != nil {
		return 0, err
	}
	if amount.Cmp(v.cfg.MinDeposit()) < 0 {
		v.rejected("deposit", "below_minimum")
		return 0, fmt.Errorf("%w: deposit %s, min %s", ErrBelowMinimum, amount, v.cfg.MinDeposit())
	}
	now := v.clock()
	if v.navEng.IsStale(now) {
		v.rejected("deposit", "stale_valuation")
		return 0, nav.ErrStaleValuation
	}

	currentNav := v.navEng.Nav()
	idx, err := v.deposits.Enqueue(holder, amount, currentNav, minShares)
	if err != nil {
		v.rejected("deposit", "queue")
		return 0, err
	}

	v.emit(event.EventTypeDepositQueued, holderKey(holder), event.DepositQueued{
		Index:        idx,
		Holder:       holder,
		Amount:       new(big.Int).Set(amount),
		NavAtEnqueue: currentNav,
		MinShares:    new(big.Int).Set(minShares),
	})
	v.applied("deposit")
	if v.metrics != nil {
		v.metrics.QueueEnqueued.WithLabelValues(event.QueueDeposits).Inc()
	}
	v.queueDepths()

	if v.cfg.AutoProcess() {
		// Immediate single-item processing under the same eligibility rule.
		// A skip leaves the request queued; it is not an enqueue failure.
		if res, err := v.deposits.ProcessAt(idx, &depositProcessor{v}); err == nil {
			v.emitQueueResult(event.QueueDeposits, res)
		}
	}
	return idx, nil
}

// depositProcessor prices queued deposits at current NAV. Evaluate is pure;
// Apply accrues the entrance fee, mints the shares and credits AUM.
type depositProcessor struct {
	v *Vault
}

func (p *depositProcessor) Evaluate(item *queue.Item) (queue.Outcome, error) {
	net, fee := p.v.navEng.ComputeEntranceFee(item.Amount)
	netNorm := fixmath.Normalize(net, p.v.navEng.Factor())
	sharesOut := fixmath.SharesForAmount(netNorm, p.v.navEng.Nav())
	return queue.Outcome{
		Output: sharesOut,
		Fee:    fixmath.Normalize(fee, p.v.navEng.Factor()),
	}, nil
}

func (p *depositProcessor) Apply(item *queue.Item, out queue.Outcome) error {
	p.v.navEng.AccrueEntranceFee(item.Amount)
	if err := p.v.shares.Mint(item.Holder, out.Output); err != nil {
		return fmt.Errorf("mint %s shares to %s: %w", out.Output, item.Holder, err)
	}
	p.v.navEng.AddAum(fixmath.Normalize(item.Amount, p.v.navEng.Factor()))
	return nil
}

// depositRestorer returns the queued asset from the buffer to the holder on
// cancellation.
type depositRestorer struct {
	v *Vault
}

func (r *depositRestorer) Restore(item *queue.Item) error {
	return r.v.custodian.Transfer(item.Holder, item.Amount)
}

// ProcessDeposits walks up to maxCount live deposit requests from the head,
// committing those that meet their slippage floor and skipping the rest
// with a recorded reason.
func (v *Vault) ProcessDeposits(maxCount int) ([]queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkNormalMode("process_deposits"); err != nil {
		return nil, err
	}
	if v.navEng.IsStale(v.clock()) {
		v.rejected("process_deposits", "stale_valuation")
		return nil, nav.ErrStaleValuation
	}

	results, err := v.deposits.ProcessBatch(maxCount, &depositProcessor{v})
	for _, res := range results {
		v.emitQueueResult(event.QueueDeposits, res)
	}
	v.queueDepths()
	if err != nil {
		v.rejected("process_deposits", "batch")
		return results, err
	}
	v.applied("process_deposits")
	return results, nil
}

// ProcessDepositAt processes exactly one deposit request by index.
func (v *Vault) ProcessDepositAt(index uint64) (queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkNormalMode("process_deposit_at"); err != nil {
		return queue.Result{}, err
	}
	if v.navEng.IsStale(v.clock()) {
		v.rejected("process_deposit_at", "stale_valuation")
		return queue.Result{}, nav.ErrStaleValuation
	}

	res, err := v.deposits.ProcessAt(index, &depositProcessor{v})
	if err != nil {
		v.rejected("process_deposit_at", "queue")
		return queue.Result{}, err
	}
	v.emitQueueResult(event.QueueDeposits, res)
	v.queueDepths()
	v.applied("process_deposit_at")
	return res, nil
}

// CancelDepositsByHolder cancels up to max of the holder's queued deposits,
// returning each queued amount from the buffer.
func (v *Vault) CancelDepositsByHolder(holder uuid.UUID, max int) ([]queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	results, err := v.deposits.CancelByHolder(holder, max, &depositRestorer{v})
	v.emitCancellations(event.QueueDeposits, results)
	v.queueDepths()
	if err != nil {
		v.rejected("cancel_deposits", "queue")
		return results, err
	}
	v.applied("cancel_deposits")
	return results, nil
}

// CancelDepositAt cancels one queued deposit by index. Administrative path.
func (v *Vault) CancelDepositAt(index uint64) (queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	res, err := v.deposits.CancelAt(index, &depositRestorer{v})
	if err != nil {
		v.rejected("cancel_deposit_at", "queue")
		return queue.Result{}, err
	}
	v.emitCancellations(event.QueueDeposits, []queue.Result{res})
	v.queueDepths()
	v.applied("cancel_deposit_at")
	return res, nil
}

// CancelDepositBatch cancels an explicit list of queued deposit indices.
// Administrative path.
func (v *Vault) CancelDepositBatch(indices []uint64) ([]queue.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	results, err := v.deposits.CancelBatch(indices, &depositRestorer{v})
	v.emitCancellations(event.QueueDeposits, results)
	v.queueDepths()
	if err != nil {
		v.rejected("cancel_deposit_batch", "queue")
		return results, err
	}
	v.applied("cancel_deposit_batch")
	return results, nil
}

// emitQueueResult emits the processed or skipped record for one item.
func (v *Vault) emitQueueResult(queueName string, res queue.Result) {
	if res.Skipped {
		v.emit(event.EventTypeRequestSkipped, holderKey(res.Holder), event.RequestSkipped{
			Queue:  queueName,
			Index:  res.Index,
			Holder: res.Holder,
			Reason: res.Reason,
		})
		if v.metrics != nil {
			v.metrics.QueueSkipped.WithLabelValues(queueName, res.Reason).Inc()
		}
		return
	}
	v.emit(event.EventTypeRequestProcessed, holderKey(res.Holder), event.RequestProcessed{
		Queue:  queueName,
		Index:  res.Index,
		Holder: res.Holder,
		Amount: res.Amount,
		Output: res.Outcome.Output,
		Fee:    res.Outcome.Fee,
	})
	if v.metrics != nil {
		v.metrics.QueueProcessed.WithLabelValues(queueName).Inc()
	}
}

func (v *Vault) emitCancellations(queueName string, results []queue.Result) {
	for _, res := range results {
		v.emit(event.EventTypeRequestCancelled, holderKey(res.Holder), event.RequestCancelled{
			Queue:  queueName,
			Index:  res.Index,
			Holder: res.Holder,
			Amount: res.Amount,
		})
		if v.metrics != nil {
			v.metrics.QueueCancelled.WithLabelValues(queueName).Inc()
		}
	}
}
