package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ShareLedger is the external share-token bookkeeping the core calls into.
// The core never owns holder balances; it only mints on committed deposits
// and burns on committed redemptions and emergency claims.
type ShareLedger interface {
	Mint(holder uuid.UUID, shares *big.Int) error
	Burn(holder uuid.UUID, shares *big.Int) error
	BalanceOf(holder uuid.UUID) *big.Int
	TotalSupply() *big.Int
}

// MemLedger is the in-memory ShareLedger used by tests and local runs.
type MemLedger struct {
	balances map[uuid.UUID]*big.Int
	supply   *big.Int
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances: make(map[uuid.UUID]*big.Int),
		supply:   new(big.Int),
	}
}

func (l *MemLedger) Mint(holder uuid.UUID, shares *big.Int) error {
	if shares.Sign() <= 0 {
		return fmt.Errorf("mint amount must be positive, got %s", shares)
	}
	bal, ok := l.balances[holder]
	if !ok {
		bal = new(big.Int)
		l.balances[holder] = bal
	}
	bal.Add(bal, shares)
	l.supply.Add(l.supply, shares)
	return nil
}

func (l *MemLedger) Burn(holder uuid.UUID, shares *big.Int) error {
	if shares.Sign() <= 0 {
		return fmt.Errorf("burn amount must be positive, got %s", shares)
	}
	bal, ok := l.balances[holder]
	if !ok || bal.Cmp(shares) < 0 {
		return fmt.Errorf("burn %s exceeds balance of holder %s", shares, holder)
	}
	bal.Sub(bal, shares)
	if bal.Sign() == 0 {
		delete(l.balances, holder)
	}
	l.supply.Sub(l.supply, shares)
	return nil
}

func (l *MemLedger) BalanceOf(holder uuid.UUID) *big.Int {
	if bal, ok := l.balances[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (l *MemLedger) TotalSupply() *big.Int {
	return new(big.Int).Set(l.supply)
}

// Holders returns the holders with non-zero balances, for operator views.
func (l *MemLedger) Holders() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(l.balances))
	for h := range l.balances {
		out = append(out, h)
	}
	return out
}
