package custody

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ErrShortfall means a payout could not be fully executed. The PayResult
// carries how much actually moved; callers must surface the shortfall, never
// absorb it.
var ErrShortfall = errors.New("payout shortfall")

// PayResult reports how a payout was executed across the two custody tiers.
type PayResult struct {
	Requested *big.Int
	Paid      *big.Int
	FromRelay *big.Int
	Short     *big.Int
	Reason    string // set when Short > 0: "relay_unavailable", "relay_failed", "balance_mismatch"
}

// Payer executes payouts: the local buffer first, then the relay for any
// shortfall. It verifies observed balance movement after the buffer leg;
// a transfer that reports success but moves nothing is a failure.
type Payer struct {
	cust Custodian
}

func NewPayer(c Custodian) *Payer {
	return &Payer{cust: c}
}

// CanCover reports whether a payout of amount could currently be executed in
// full, counting the vault tier only while the relay is available. Callers
// use this as the retry-safe eligibility check before moving any value.
func (p *Payer) CanCover(amount *big.Int) (bool, error) {
	buf, err := p.cust.Balance(LocationBuffer)
	if err != nil {
		return false, fmt.Errorf("buffer balance: %w", err)
	}
	reachable := new(big.Int).Set(buf)
	if p.cust.RelayAvailable() {
		vault, err := p.cust.Balance(LocationVault)
		if err != nil {
			return false, fmt.Errorf("vault balance: %w", err)
		}
		reachable.Add(reachable, vault)
	}
	return reachable.Cmp(amount) >= 0, nil
}

// Pay executes the two-tier payout. When the relay leg is unavailable or
// fails, Pay returns the partial PayResult together with ErrShortfall so the
// caller can emit a distinguishable under-payment signal.
func (p *Payer) Pay(to uuid.UUID, amount *big.Int) (PayResult, error) {
	res := PayResult{
		Requested: new(big.Int).Set(amount),
		Paid:      new(big.Int),
		FromRelay: new(big.Int),
		Short:     new(big.Int),
	}
	if amount.Sign() <= 0 {
		return res, nil
	}

	buf, err := p.cust.Balance(LocationBuffer)
	if err != nil {
		return res, fmt.Errorf("buffer balance: %w", err)
	}

	fromBuffer := new(big.Int).Set(amount)
	if buf.Cmp(fromBuffer) < 0 {
		fromBuffer.Set(buf)
	}

	if fromBuffer.Sign() > 0 {
		if err := p.cust.Transfer(to, fromBuffer); err != nil {
			res.Short.Set(amount)
			res.Reason = "transfer_failed"
			return res, fmt.Errorf("buffer transfer: %w", err)
		}
		after, err := p.cust.Balance(LocationBuffer)
		if err != nil {
			return res, fmt.Errorf("buffer balance after transfer: %w", err)
		}
		moved := new(big.Int).Sub(buf, after)
		if moved.Cmp(fromBuffer) != 0 {
			res.Short.Sub(amount, moved)
			res.Paid.Set(moved)
			res.Reason = "balance_mismatch"
			return res, fmt.Errorf("%w: expected %s, moved %s", ErrBalanceMismatch, fromBuffer, moved)
		}
		res.Paid.Set(fromBuffer)
	}

	shortfall := new(big.Int).Sub(amount, fromBuffer)
	if shortfall.Sign() == 0 {
		return res, nil
	}

	if !p.cust.RelayAvailable() {
		res.Short.Set(shortfall)
		res.Reason = "relay_unavailable"
		return res, fmt.Errorf("%w: %s short", ErrShortfall, shortfall)
	}

	if err := p.cust.RelayTransfer(to, shortfall); err != nil {
		res.Short.Set(shortfall)
		res.Reason = "relay_failed"
		return res, fmt.Errorf("%w: %v", ErrShortfall, err)
	}

	res.FromRelay.Set(shortfall)
	res.Paid.Add(res.Paid, shortfall)
	return res, nil
}
