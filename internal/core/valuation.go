package core

import (
	"math/big"

	"github.com/google/uuid"

	"vaultcore/internal/custody"
	"vaultcore/internal/event"
	fixmath "vaultcore/internal/math"
)

// UpdateValuation ingests a reported AUM figure (native units), accrues
// management and performance fees for the elapsed period, recomputes NAV
// and runs the HWM hysteresis step. Rejected while emergency mode is on:
// the claimable pool is frozen at the activation snapshot.
func (v *Vault) UpdateValuation(newAumNative *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.emergency.Active() {
		v.rejected("update_valuation", "emergency")
		return ErrEmergencyActive
	}

	liquidity, err := custody.TotalLiquidity(v.custodian)
	if err != nil {
		v.rejected("update_valuation", "custodian")
		return err
	}

	supply := v.shares.TotalSupply()
	res, err := v.navEng.UpdateValuation(newAumNative, supply, liquidity, v.clock())
	if err != nil {
		v.rejected("update_valuation", "economic")
		return err
	}

	v.emit(event.EventTypeValuationUpdated, "vault", event.ValuationUpdated{
		GrossAum:       res.GrossAum,
		AdjustedAum:    res.AdjustedAum,
		NavPerShare:    res.Nav,
		ManagementFee:  res.ManagementFee,
		PerformanceFee: res.PerformanceFee,
		TotalSupply:    supply,
	})
	if res.Reset != nil {
		v.emit(event.EventTypeHighWaterMarkReset, "vault", event.HighWaterMarkReset{
			Previous: res.Reset.Previous,
			Current:  res.Reset.Current,
		})
		v.log.Info().
			Str("previous", res.Reset.Previous.String()).
			Str("current", res.Reset.Current.String()).
			Msg("high-water mark reset after recovery")
	}
	v.applied("update_valuation")
	v.observeNav()
	return nil
}

// PayFees settles the accrued fee balances against available liquidity and
// pays the result to the recipient. Accrued state is reduced strictly
// before the custody call; a shortfall during the payment is surfaced, not
// rolled back.
func (v *Vault) PayFees(recipient uuid.UUID) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.emergency.Active() {
		v.rejected("pay_fees", "emergency")
		return nil, ErrEmergencyActive
	}

	liquidity, err := custody.TotalLiquidity(v.custodian)
	if err != nil {
		v.rejected("pay_fees", "custodian")
		return nil, err
	}

	settlement, err := v.navEng.SettleFees(liquidity)
	if err != nil {
		v.rejected("pay_fees", "economic")
		return nil, err
	}

	paid := new(big.Int).Set(settlement.Paid)
	if settlement.Paid.Sign() > 0 {
		payRes, payErr := v.payer.Pay(recipient, settlement.Paid)
		if payErr != nil {
			v.emitShortfall(recipient, payRes)
			paid.Set(payRes.Paid)
		}
	}

	v.emit(event.EventTypeFeesPaid, holderKey(recipient), event.FeesPaid{
		Recipient: recipient,
		Requested: settlement.Requested,
		Paid:      paid,
		Partial:   settlement.Partial || paid.Cmp(settlement.Requested) < 0,
	})
	v.applied("pay_fees")
	if v.metrics != nil {
		v.metrics.FeesPaidTotal.Inc()
	}
	v.observeNav()
	return paid, nil
}

// observeNav refreshes the NAV-related gauges.
func (v *Vault) observeNav() {
	if v.metrics == nil {
		return
	}
	v.metrics.NavPerShare.Set(bigFloat(v.navEng.Nav()))
	v.metrics.GrossAum.Set(bigFloat(v.navEng.Aum()))
	v.metrics.HighWaterMark.Set(bigFloat(v.navEng.HWMStatus(v.clock()).HighWaterMark))
	accrued := v.navEng.AccruedFees()
	v.metrics.AccruedFees.WithLabelValues("management").Set(bigFloat(accrued.Management))
	v.metrics.AccruedFees.WithLabelValues("performance").Set(bigFloat(accrued.Performance))
	v.metrics.AccruedFees.WithLabelValues("entrance").Set(bigFloat(accrued.Entrance))
	v.metrics.AccruedFees.WithLabelValues("exit").Set(bigFloat(accrued.Exit))
}

// bigFloat is the lossy gauge projection of a normalized big.Int, scaled
// down by Wad.
func bigFloat(x *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(x), new(big.Float).SetInt(fixmath.Wad)).Float64()
	return f
}
