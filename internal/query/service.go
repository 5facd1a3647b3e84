package query

import (
	"time"

	"github.com/google/uuid"

	"vaultcore/internal/core"
	"vaultcore/internal/event"
	"vaultcore/internal/ledger"
	"vaultcore/internal/observability"
	"vaultcore/internal/queue"
)

// Service serves the core's observable state surface: queue lengths,
// paginated pending lists, fee breakdown, HWM status, emergency status and
// holder positions. Reads go straight to the core under its transition
// lock, so every response reflects a consistent sequence boundary.
type Service struct {
	vault   *core.Vault
	shares  ledger.ShareLedger
	metrics *observability.Metrics
}

func NewService(vault *core.Vault, shares ledger.ShareLedger, metrics *observability.Metrics) *Service {
	return &Service{vault: vault, shares: shares, metrics: metrics}
}

func (s *Service) observe(endpoint string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (s *Service) QueueLengths() QueueLengthsResponse {
	defer s.observe("queue_lengths", time.Now())

	lengths := s.vault.QueueLengths()
	return QueueLengthsResponse{
		Deposits:       lengths.Deposits,
		DepositHead:    lengths.DepositHead,
		DepositTail:    lengths.DepositTail,
		Redemptions:    lengths.Redemptions,
		RedemptionHead: lengths.RedemptionHead,
		RedemptionTail: lengths.RedemptionTail,
		AsOfSequence:   s.vault.Sequence(),
	}
}

func (s *Service) PendingDeposits(offset, limit int) PendingListResponse {
	defer s.observe("pending_deposits", time.Now())
	return s.pendingList(event.QueueDeposits, s.vault.PendingDeposits(offset, limit), offset)
}

func (s *Service) PendingRedemptions(offset, limit int) PendingListResponse {
	defer s.observe("pending_redemptions", time.Now())
	return s.pendingList(event.QueueRedemptions, s.vault.PendingRedemptions(offset, limit), offset)
}

func (s *Service) Fees() FeesResponse {
	defer s.observe("fees", time.Now())

	rates := s.vault.FeeRates()
	accrued := s.vault.AccruedFees()
	return FeesResponse{
		ManagementBps:  rates.ManagementBps,
		PerformanceBps: rates.PerformanceBps,
		EntranceBps:    rates.EntranceBps,
		ExitBps:        rates.ExitBps,
		Management:     accrued.Management.String(),
		Performance:    accrued.Performance.String(),
		Entrance:       accrued.Entrance.String(),
		Exit:           accrued.Exit.String(),
		Total:          accrued.Total().String(),
		AsOfSequence:   s.vault.Sequence(),
	}
}

func (s *Service) Nav() NavResponse {
	defer s.observe("nav", time.Now())

	return NavResponse{
		NavPerShare:   s.vault.Nav().String(),
		GrossAum:      s.vault.Aum().String(),
		TotalSupply:   s.shares.TotalSupply().String(),
		LastValuation: s.vault.LastValuation(),
		Suspended:     s.vault.Suspended(),
		AsOfSequence:  s.vault.Sequence(),
	}
}

func (s *Service) HWM() HWMResponse {
	defer s.observe("hwm", time.Now())

	st := s.vault.HWMStatus()
	resp := HWMResponse{
		State:              st.State.String(),
		HighWaterMark:      st.HighWaterMark.String(),
		RecoveryStart:      st.RecoveryStart,
		TimeToResetSeconds: int64(st.TimeToReset / time.Second),
		AsOfSequence:       s.vault.Sequence(),
	}
	if st.LowestNavInDrawdown != nil {
		resp.LowestNavInDrawdown = st.LowestNavInDrawdown.String()
	}
	return resp
}

func (s *Service) Emergency() EmergencyResponse {
	defer s.observe("emergency", time.Now())

	st := s.vault.EmergencyStatus()
	return EmergencyResponse{
		Active:       st.Active,
		Snapshot:     st.Snapshot.String(),
		Distributed:  st.Distributed.String(),
		Remaining:    st.Remaining.String(),
		ActivatedAt:  st.ActivatedAt,
		AsOfSequence: s.vault.Sequence(),
	}
}

func (s *Service) Position(holder uuid.UUID) PositionResponse {
	defer s.observe("position", time.Now())

	pos := s.vault.HolderPosition(holder)
	return PositionResponse{
		Holder:             pos.Holder,
		Shares:             pos.Shares.String(),
		Value:              pos.Value.String(),
		PendingDeposits:    pos.PendingDeposits.String(),
		PendingRedemptions: pos.PendingRedemptions.String(),
		AsOfSequence:       s.vault.Sequence(),
	}
}

func (s *Service) pendingList(queueName string, items []queue.Item, offset int) PendingListResponse {
	entries := make([]PendingEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, PendingEntry{
			Index:        item.Index,
			Holder:       item.Holder,
			Amount:       item.Amount.String(),
			NavAtEnqueue: item.NavAtEnqueue.String(),
			MinOutput:    item.MinOutput.String(),
		})
	}
	return PendingListResponse{
		Queue:        queueName,
		Offset:       offset,
		Entries:      entries,
		AsOfSequence: s.vault.Sequence(),
	}
}
