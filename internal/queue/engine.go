package queue

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/google/uuid"

	"vaultcore/internal/config"
)

// Engine is one FIFO request queue. Indices are assigned at a strictly
// increasing tail; head advances only over contiguous processed entries
// (lazy compaction), so head <= tail always and tail-head is the live
// length. A per-holder index set keeps holder-scoped scans proportional to
// that holder's own pending count. The engine holds no lock: the
// orchestrator serializes access.
type Engine struct {
	name string
	cfg  config.Provider

	head  uint64
	tail  uint64
	items map[uint64]*Item

	byHolder      map[uuid.UUID]map[uint64]struct{}
	pendingAmount map[uuid.UUID]*big.Int
}

func NewEngine(name string, cfg config.Provider) *Engine {
	return &Engine{
		name:          name,
		cfg:           cfg,
		items:         make(map[uint64]*Item),
		byHolder:      make(map[uuid.UUID]map[uint64]struct{}),
		pendingAmount: make(map[uuid.UUID]*big.Int),
	}
}

// Name returns the queue's name ("deposits" or "redemptions").
func (q *Engine) Name() string {
	return q.name
}

// Enqueue appends a request at the tail and returns its index.
func (q *Engine) Enqueue(holder uuid.UUID, amount, navAtEnqueue, minOutput *big.Int) (uint64, error) {
	if q.tail-q.head >= q.cfg.MaxQueueLength() {
		return 0, fmt.Errorf("%w: %s live length %d", ErrQueueFull, q.name, q.tail-q.head)
	}
	if len(q.byHolder[holder]) >= q.cfg.MaxPendingPerHolder() {
		return 0, fmt.Errorf("%w: %s holder %s", ErrHolderCap, q.name, holder)
	}
	if q.tail == math.MaxUint64 {
		return 0, fmt.Errorf("%w: %s", ErrQueueOverflow, q.name)
	}

	idx := q.tail
	q.items[idx] = &Item{
		Index:        idx,
		Holder:       holder,
		Amount:       new(big.Int).Set(amount),
		NavAtEnqueue: new(big.Int).Set(navAtEnqueue),
		MinOutput:    new(big.Int).Set(minOutput),
	}
	q.tail++

	set, ok := q.byHolder[holder]
	if !ok {
		set = make(map[uint64]struct{})
		q.byHolder[holder] = set
	}
	set[idx] = struct{}{}

	pending, ok := q.pendingAmount[holder]
	if !ok {
		pending = new(big.Int)
		q.pendingAmount[holder] = pending
	}
	pending.Add(pending, amount)

	return idx, nil
}

// ProcessBatch walks forward from the head over up to maxCount live items.
// Each item is priced at current NAV; items below their slippage floor or
// whose commit fails retryably are skipped with a reason and stay live. The
// bound is re-validated against the current cap on every call. Compaction
// runs after the walk.
func (q *Engine) ProcessBatch(maxCount int, p Processor) ([]Result, error) {
	if maxCount <= 0 || maxCount > q.cfg.MaxBatchSize() {
		return nil, fmt.Errorf("%w: got %d, cap %d", ErrBatchSize, maxCount, q.cfg.MaxBatchSize())
	}

	var results []Result
	live := 0
	for idx := q.head; idx < q.tail && live < maxCount; idx++ {
		item, ok := q.items[idx]
		if !ok || item.Processed {
			continue
		}
		live++

		res, err := q.processItem(item, p)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	q.compact()
	return results, nil
}

// ProcessAt applies the batch eligibility and commit rule to exactly one
// item addressed by index. Outcome is tri-state: committed, skipped with
// reason, or an error for a non-live index.
func (q *Engine) ProcessAt(index uint64, p Processor) (Result, error) {
	if index < q.head || index >= q.tail {
		return Result{}, fmt.Errorf("%w: index %d, live range [%d, %d)", ErrIndexOutOfRange, index, q.head, q.tail)
	}
	item, ok := q.items[index]
	if !ok || item.Processed {
		return Result{}, fmt.Errorf("%w: index %d", ErrNotLive, index)
	}

	res, err := q.processItem(item, p)
	if err != nil {
		return Result{}, err
	}
	q.compact()
	return res, nil
}

func (q *Engine) processItem(item *Item, p Processor) (Result, error) {
	res := Result{
		Index:  item.Index,
		Holder: item.Holder,
		Amount: new(big.Int).Set(item.Amount),
	}

	out, err := p.Evaluate(item)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate index %d: %w", item.Index, err)
	}
	if out.Output.Sign() == 0 {
		res.Skipped = true
		res.Reason = ReasonZeroOutput
		return res, nil
	}
	if out.Output.Cmp(item.MinOutput) < 0 {
		res.Skipped = true
		res.Reason = ReasonSlippage
		return res, nil
	}

	if err := p.Apply(item, out); err != nil {
		var skip *SkipError
		if errors.As(err, &skip) {
			res.Skipped = true
			res.Reason = skip.Reason
			return res, nil
		}
		return Result{}, fmt.Errorf("apply index %d: %w", item.Index, err)
	}

	q.markDone(item)
	res.Outcome = out
	return res, nil
}

// CancelByHolder cancels up to max of the holder's live entries in FIFO
// order, restoring each item's held resource.
func (q *Engine) CancelByHolder(holder uuid.UUID, max int, r Restorer) ([]Result, error) {
	if max <= 0 || max > q.cfg.MaxCancelBatch() {
		return nil, fmt.Errorf("%w: got %d, cap %d", ErrBatchSize, max, q.cfg.MaxCancelBatch())
	}
	set := q.byHolder[holder]
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: %s holder %s", ErrNoPending, q.name, holder)
	}

	indices := make([]uint64, 0, len(set))
	for idx := range set {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > max {
		indices = indices[:max]
	}

	results := make([]Result, 0, len(indices))
	for _, idx := range indices {
		res, err := q.cancelItem(q.items[idx], r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	q.compact()
	return results, nil
}

// CancelAt cancels one live entry by index. Administrative path.
func (q *Engine) CancelAt(index uint64, r Restorer) (Result, error) {
	if index < q.head || index >= q.tail {
		return Result{}, fmt.Errorf("%w: index %d, live range [%d, %d)", ErrIndexOutOfRange, index, q.head, q.tail)
	}
	item, ok := q.items[index]
	if !ok || item.Processed {
		return Result{}, fmt.Errorf("%w: index %d", ErrNotLive, index)
	}

	res, err := q.cancelItem(item, r)
	if err != nil {
		return Result{}, err
	}
	q.compact()
	return res, nil
}

// CancelBatch cancels an explicit list of live indices. Administrative path;
// the list length is capped per call.
func (q *Engine) CancelBatch(indices []uint64, r Restorer) ([]Result, error) {
	if len(indices) == 0 || len(indices) > q.cfg.MaxCancelBatch() {
		return nil, fmt.Errorf("%w: got %d indices, cap %d", ErrBatchSize, len(indices), q.cfg.MaxCancelBatch())
	}

	var results []Result
	for _, idx := range indices {
		if idx < q.head || idx >= q.tail {
			return results, fmt.Errorf("%w: index %d, live range [%d, %d)", ErrIndexOutOfRange, idx, q.head, q.tail)
		}
		item, ok := q.items[idx]
		if !ok || item.Processed {
			continue
		}
		res, err := q.cancelItem(item, r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	q.compact()
	return results, nil
}

func (q *Engine) cancelItem(item *Item, r Restorer) (Result, error) {
	if err := r.Restore(item); err != nil {
		return Result{}, fmt.Errorf("restore index %d: %w", item.Index, err)
	}
	q.markDone(item)
	return Result{
		Index:  item.Index,
		Holder: item.Holder,
		Amount: new(big.Int).Set(item.Amount),
	}, nil
}

func (q *Engine) markDone(item *Item) {
	item.Processed = true

	if set, ok := q.byHolder[item.Holder]; ok {
		delete(set, item.Index)
		if len(set) == 0 {
			delete(q.byHolder, item.Holder)
		}
	}
	if pending, ok := q.pendingAmount[item.Holder]; ok {
		pending.Sub(pending, item.Amount)
		if pending.Sign() <= 0 {
			delete(q.pendingAmount, item.Holder)
		}
	}
}

// compact deletes the contiguous run of processed entries at the head and
// advances the head pointer, bounding map growth to the unprocessed tail.
func (q *Engine) compact() {
	for q.head < q.tail {
		item, ok := q.items[q.head]
		if ok && !item.Processed {
			return
		}
		delete(q.items, q.head)
		q.head++
	}
}

// Len returns the live (not yet compacted) queue length.
func (q *Engine) Len() uint64 {
	return q.tail - q.head
}

// Head returns the compaction frontier.
func (q *Engine) Head() uint64 {
	return q.head
}

// Tail returns the next index to be assigned.
func (q *Engine) Tail() uint64 {
	return q.tail
}

// PendingCount returns the holder's live entry count.
func (q *Engine) PendingCount(holder uuid.UUID) int {
	return len(q.byHolder[holder])
}

// PendingAmount returns the holder's total live amount.
func (q *Engine) PendingAmount(holder uuid.UUID) *big.Int {
	if pending, ok := q.pendingAmount[holder]; ok {
		return new(big.Int).Set(pending)
	}
	return new(big.Int)
}

// Pending returns up to limit live entries in FIFO order, skipping the first
// offset live entries. Entries are copies.
func (q *Engine) Pending(offset, limit int) []Item {
	if limit <= 0 {
		return nil
	}
	var out []Item
	seen := 0
	for idx := q.head; idx < q.tail; idx++ {
		item, ok := q.items[idx]
		if !ok || item.Processed {
			continue
		}
		if seen < offset {
			seen++
			continue
		}
		out = append(out, Item{
			Index:        item.Index,
			Holder:       item.Holder,
			Amount:       new(big.Int).Set(item.Amount),
			NavAtEnqueue: new(big.Int).Set(item.NavAtEnqueue),
			MinOutput:    new(big.Int).Set(item.MinOutput),
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}
