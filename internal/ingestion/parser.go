package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"vaultcore/internal/event"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed Command. The ingestion shell validates and converts raw
// messages before handing them to the serialized core.
func ParseRawCommand(raw RawCommand, commandType string) (Command, error) {
	switch commandType {
	case "Deposit":
		return parseDeposit(raw.Data)
	case "RequestRedemption":
		return parseRedemption(raw.Data)
	case "UpdateValuation":
		return parseValuation(raw.Data)
	case "ProcessQueue":
		return parseProcess(raw.Data)
	case "Cancel":
		return parseCancel(raw.Data)
	case "PayFees":
		return parsePayFees(raw.Data)
	case "Suspend":
		return SuspendCommand{}, nil
	case "Resume":
		return ResumeCommand{}, nil
	case "ActivateEmergency":
		return EmergencyActivateCommand{}, nil
	case "DeactivateEmergency":
		return EmergencyDeactivateCommand{}, nil
	case "EmergencyWithdraw":
		return parseEmergencyWithdraw(raw.Data)
	case "SetFeeRates":
		return parseSetFeeRates(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// Amounts are string-encoded decimal integers: normalized values exceed
// JSON-safe number range. Field names use snake_case to match upstream
// producers.

type depositJSON struct {
	Holder    string `json:"holder"`
	Amount    string `json:"amount"`
	MinShares string `json:"min_shares"`
}

func parseDeposit(data []byte) (DepositCommand, error) {
	var j depositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return DepositCommand{}, fmt.Errorf("parse Deposit: %w", err)
	}
	holder, err := uuid.Parse(j.Holder)
	if err != nil {
		return DepositCommand{}, fmt.Errorf("parse holder: %w", err)
	}
	amount, err := parseBig("amount", j.Amount)
	if err != nil {
		return DepositCommand{}, err
	}
	minShares, err := parseBig("min_shares", j.MinShares)
	if err != nil {
		return DepositCommand{}, err
	}
	return DepositCommand{Holder: holder, Amount: amount, MinShares: minShares}, nil
}

type redemptionJSON struct {
	Holder    string `json:"holder"`
	Shares    string `json:"shares"`
	MinPayout string `json:"min_payout"`
}

func parseRedemption(data []byte) (RedemptionCommand, error) {
	var j redemptionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return RedemptionCommand{}, fmt.Errorf("parse RequestRedemption: %w", err)
	}
	holder, err := uuid.Parse(j.Holder)
	if err != nil {
		return RedemptionCommand{}, fmt.Errorf("parse holder: %w", err)
	}
	shares, err := parseBig("shares", j.Shares)
	if err != nil {
		return RedemptionCommand{}, err
	}
	minPayout, err := parseBig("min_payout", j.MinPayout)
	if err != nil {
		return RedemptionCommand{}, err
	}
	return RedemptionCommand{Holder: holder, Shares: shares, MinPayout: minPayout}, nil
}

type valuationJSON struct {
	AumNative string `json:"aum_native"`
}

func parseValuation(data []byte) (ValuationCommand, error) {
	var j valuationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return ValuationCommand{}, fmt.Errorf("parse UpdateValuation: %w", err)
	}
	aum, err := parseBig("aum_native", j.AumNative)
	if err != nil {
		return ValuationCommand{}, err
	}
	return ValuationCommand{AumNative: aum}, nil
}

type processJSON struct {
	Queue    string `json:"queue"`
	MaxCount int    `json:"max_count"`
}

func parseProcess(data []byte) (ProcessCommand, error) {
	var j processJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return ProcessCommand{}, fmt.Errorf("parse ProcessQueue: %w", err)
	}
	if err := validQueue(j.Queue); err != nil {
		return ProcessCommand{}, err
	}
	return ProcessCommand{Queue: j.Queue, MaxCount: j.MaxCount}, nil
}

type cancelJSON struct {
	Queue   string   `json:"queue"`
	Holder  string   `json:"holder,omitempty"`
	Max     int      `json:"max,omitempty"`
	Indices []uint64 `json:"indices,omitempty"`
}

func parseCancel(data []byte) (CancelCommand, error) {
	var j cancelJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return CancelCommand{}, fmt.Errorf("parse Cancel: %w", err)
	}
	if err := validQueue(j.Queue); err != nil {
		return CancelCommand{}, err
	}
	cmd := CancelCommand{Queue: j.Queue, Max: j.Max, Indices: j.Indices}
	if len(j.Indices) == 0 {
		holder, err := uuid.Parse(j.Holder)
		if err != nil {
			return CancelCommand{}, fmt.Errorf("parse holder: %w", err)
		}
		cmd.Holder = holder
	}
	return cmd, nil
}

type payFeesJSON struct {
	Recipient string `json:"recipient"`
}

func parsePayFees(data []byte) (PayFeesCommand, error) {
	var j payFeesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return PayFeesCommand{}, fmt.Errorf("parse PayFees: %w", err)
	}
	recipient, err := uuid.Parse(j.Recipient)
	if err != nil {
		return PayFeesCommand{}, fmt.Errorf("parse recipient: %w", err)
	}
	return PayFeesCommand{Recipient: recipient}, nil
}

type emergencyWithdrawJSON struct {
	Holder string `json:"holder"`
}

func parseEmergencyWithdraw(data []byte) (EmergencyWithdrawCommand, error) {
	var j emergencyWithdrawJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return EmergencyWithdrawCommand{}, fmt.Errorf("parse EmergencyWithdraw: %w", err)
	}
	holder, err := uuid.Parse(j.Holder)
	if err != nil {
		return EmergencyWithdrawCommand{}, fmt.Errorf("parse holder: %w", err)
	}
	return EmergencyWithdrawCommand{Holder: holder}, nil
}

type setFeeRatesJSON struct {
	ManagementBps  int64 `json:"management_bps"`
	PerformanceBps int64 `json:"performance_bps"`
	EntranceBps    int64 `json:"entrance_bps"`
	ExitBps        int64 `json:"exit_bps"`
}

func parseSetFeeRates(data []byte) (SetFeeRatesCommand, error) {
	var j setFeeRatesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return SetFeeRatesCommand{}, fmt.Errorf("parse SetFeeRates: %w", err)
	}
	return SetFeeRatesCommand{
		ManagementBps:  j.ManagementBps,
		PerformanceBps: j.PerformanceBps,
		EntranceBps:    j.EntranceBps,
		ExitBps:        j.ExitBps,
	}, nil
}

func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: not a decimal integer: %q", field, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("parse %s: negative: %q", field, s)
	}
	return v, nil
}

func validQueue(q string) error {
	if q != event.QueueDeposits && q != event.QueueRedemptions {
		return fmt.Errorf("unknown queue: %q", q)
	}
	return nil
}
