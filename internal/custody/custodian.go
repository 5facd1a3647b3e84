package custody

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
)

// Location identifies where the pooled asset sits: a local buffer the core
// can spend directly, or a secondary vault reachable only through a
// privileged relay call.
type Location int

const (
	LocationBuffer Location = iota
	LocationVault
)

func (l Location) String() string {
	switch l {
	case LocationBuffer:
		return "buffer"
	case LocationVault:
		return "vault"
	default:
		return "unknown"
	}
}

var (
	// ErrRelayUnavailable means the privileged relay is disabled; the caller
	// must treat this as a named failure, not a surprise revert.
	ErrRelayUnavailable = errors.New("custodian relay unavailable")

	ErrRelayFailed = errors.New("custodian relay transfer failed")

	// ErrBalanceMismatch means a transfer reported success but the observed
	// balance did not move by the expected amount.
	ErrBalanceMismatch = errors.New("custodian balance did not move by expected amount")
)

// Custodian is the external asset custody adapter. All amounts are native
// units. Transfer spends from the local buffer; RelayTransfer draws from the
// secondary vault and may be disabled or fail independently of the
// accounting state.
type Custodian interface {
	Balance(loc Location) (*big.Int, error)
	Transfer(to uuid.UUID, amount *big.Int) error
	RelayTransfer(to uuid.UUID, amount *big.Int) error
	RelayAvailable() bool
}

// TotalLiquidity returns buffer + vault balances.
func TotalLiquidity(c Custodian) (*big.Int, error) {
	buf, err := c.Balance(LocationBuffer)
	if err != nil {
		return nil, err
	}
	vault, err := c.Balance(LocationVault)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(buf, vault), nil
}
