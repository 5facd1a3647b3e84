package ingestion

import (
	"math/big"

	"github.com/google/uuid"
)

// Command is a typed mutation request parsed off the command stream, ready
// for the dispatcher to apply to the core.
type Command interface {
	CommandType() string
}

type DepositCommand struct {
	Holder    uuid.UUID
	Amount    *big.Int
	MinShares *big.Int
}

func (DepositCommand) CommandType() string { return "Deposit" }

type RedemptionCommand struct {
	Holder    uuid.UUID
	Shares    *big.Int
	MinPayout *big.Int
}

func (RedemptionCommand) CommandType() string { return "RequestRedemption" }

type ValuationCommand struct {
	AumNative *big.Int
}

func (ValuationCommand) CommandType() string { return "UpdateValuation" }

type ProcessCommand struct {
	Queue    string // "deposits" or "redemptions"
	MaxCount int
}

func (ProcessCommand) CommandType() string { return "ProcessQueue" }

type CancelCommand struct {
	Queue   string
	Holder  uuid.UUID
	Max     int
	Indices []uint64 // administrative batch form; empty means by-holder
}

func (CancelCommand) CommandType() string { return "Cancel" }

type PayFeesCommand struct {
	Recipient uuid.UUID
}

func (PayFeesCommand) CommandType() string { return "PayFees" }

type SuspendCommand struct{}

func (SuspendCommand) CommandType() string { return "Suspend" }

type ResumeCommand struct{}

func (ResumeCommand) CommandType() string { return "Resume" }

type EmergencyActivateCommand struct{}

func (EmergencyActivateCommand) CommandType() string { return "ActivateEmergency" }

type EmergencyDeactivateCommand struct{}

func (EmergencyDeactivateCommand) CommandType() string { return "DeactivateEmergency" }

type EmergencyWithdrawCommand struct {
	Holder uuid.UUID
}

func (EmergencyWithdrawCommand) CommandType() string { return "EmergencyWithdraw" }

type SetFeeRatesCommand struct {
	ManagementBps  int64
	PerformanceBps int64
	EntranceBps    int64
	ExitBps        int64
}

func (SetFeeRatesCommand) CommandType() string { return "SetFeeRates" }
