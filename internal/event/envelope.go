package event

import "time"

// EventType identifies a vault transition record.
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDepositQueued
	EventTypeRedemptionQueued
	EventTypeRequestProcessed
	EventTypeRequestSkipped
	EventTypeRequestCancelled
	EventTypeValuationUpdated
	EventTypeHighWaterMarkReset
	EventTypeFeesPaid
	EventTypePayoutShortfall
	EventTypeEmergencyActivated
	EventTypeEmergencyDeactivated
	EventTypeEmergencyClaimed
	EventTypeVaultSuspended
	EventTypeVaultResumed
	EventTypeFeeRatesUpdated
)

func (t EventType) String() string {
	switch t {
	case EventTypeDepositQueued:
		return "DepositQueued"
	case EventTypeRedemptionQueued:
		return "RedemptionQueued"
	case EventTypeRequestProcessed:
		return "RequestProcessed"
	case EventTypeRequestSkipped:
		return "RequestSkipped"
	case EventTypeRequestCancelled:
		return "RequestCancelled"
	case EventTypeValuationUpdated:
		return "ValuationUpdated"
	case EventTypeHighWaterMarkReset:
		return "HighWaterMarkReset"
	case EventTypeFeesPaid:
		return "FeesPaid"
	case EventTypePayoutShortfall:
		return "PayoutShortfall"
	case EventTypeEmergencyActivated:
		return "EmergencyActivated"
	case EventTypeEmergencyDeactivated:
		return "EmergencyDeactivated"
	case EventTypeEmergencyClaimed:
		return "EmergencyClaimed"
	case EventTypeVaultSuspended:
		return "VaultSuspended"
	case EventTypeVaultResumed:
		return "VaultResumed"
	case EventTypeFeeRatesUpdated:
		return "FeeRatesUpdated"
	default:
		return "Unknown"
	}
}

// Envelope wraps every outbound record with the core's monotonically
// increasing sequence. Consumers order and deduplicate on (Sequence, Key).
type Envelope struct {
	Sequence  int64     `json:"sequence"`
	EventType EventType `json:"event_type"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}
