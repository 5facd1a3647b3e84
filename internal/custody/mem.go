package custody

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// MemCustodian is the in-memory custody adapter used by tests and local
// runs. Failure injection mirrors the partial-failure modes of a real
// two-tier custodian: relay disabled, relay erroring, and a transfer that
// reports success without moving the balance.
type MemCustodian struct {
	buffer *big.Int
	vault  *big.Int

	relayEnabled bool

	// Failure injection for tests.
	FailTransfer  bool
	FailRelay     bool
	SilentNoMove  bool // Transfer reports success but does not debit the buffer
	paidOut       map[uuid.UUID]*big.Int
	totalPaid     *big.Int
	totalReceived *big.Int
}

func NewMemCustodian(buffer, vault *big.Int) *MemCustodian {
	return &MemCustodian{
		buffer:        new(big.Int).Set(buffer),
		vault:         new(big.Int).Set(vault),
		relayEnabled:  true,
		paidOut:       make(map[uuid.UUID]*big.Int),
		totalPaid:     new(big.Int),
		totalReceived: new(big.Int),
	}
}

func (m *MemCustodian) Balance(loc Location) (*big.Int, error) {
	switch loc {
	case LocationBuffer:
		return new(big.Int).Set(m.buffer), nil
	case LocationVault:
		return new(big.Int).Set(m.vault), nil
	default:
		return nil, fmt.Errorf("unknown location %d", loc)
	}
}

func (m *MemCustodian) Transfer(to uuid.UUID, amount *big.Int) error {
	if m.FailTransfer {
		return fmt.Errorf("injected transfer failure")
	}
	if m.SilentNoMove {
		return nil
	}
	if m.buffer.Cmp(amount) < 0 {
		return fmt.Errorf("buffer has %s, need %s", m.buffer, amount)
	}
	m.buffer.Sub(m.buffer, amount)
	m.credit(to, amount)
	return nil
}

func (m *MemCustodian) RelayTransfer(to uuid.UUID, amount *big.Int) error {
	if !m.relayEnabled {
		return ErrRelayUnavailable
	}
	if m.FailRelay {
		return ErrRelayFailed
	}
	if m.vault.Cmp(amount) < 0 {
		return fmt.Errorf("%w: vault has %s, need %s", ErrRelayFailed, m.vault, amount)
	}
	m.vault.Sub(m.vault, amount)
	m.credit(to, amount)
	return nil
}

func (m *MemCustodian) RelayAvailable() bool {
	return m.relayEnabled
}

// SetRelayEnabled toggles the privileged relay, modeling its independent
// availability.
func (m *MemCustodian) SetRelayEnabled(on bool) {
	m.relayEnabled = on
}

// Fund credits the buffer, modeling an inbound asset transfer.
func (m *MemCustodian) Fund(amount *big.Int) {
	m.buffer.Add(m.buffer, amount)
	m.totalReceived.Add(m.totalReceived, amount)
}

func (m *MemCustodian) credit(to uuid.UUID, amount *big.Int) {
	bal, ok := m.paidOut[to]
	if !ok {
		bal = new(big.Int)
		m.paidOut[to] = bal
	}
	bal.Add(bal, amount)
	m.totalPaid.Add(m.totalPaid, amount)
}

// PaidTo returns the cumulative amount paid out to a recipient.
func (m *MemCustodian) PaidTo(to uuid.UUID) *big.Int {
	if bal, ok := m.paidOut[to]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// TotalPaid returns the cumulative amount paid out to all recipients.
func (m *MemCustodian) TotalPaid() *big.Int {
	return new(big.Int).Set(m.totalPaid)
}
