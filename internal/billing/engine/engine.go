// Package engine holds the pure tariff calculation. No I/O, no floating
// point: inputs are integral cubic-meter readings and integer minor-currency
// prices, so every result is exact and reproducible.
package engine

import (
	"time"

	billingdomain "github.com/flowin/pdam/internal/billing/domain"
	tariffdomain "github.com/flowin/pdam/internal/tariff/domain"
)

// ComputeCost prices the consumption between two readings against a tariff
// group. The first TierThresholdM3 cubic meters are charged at the low-tier
// price, the remainder at the high-tier price, plus the group's fixed charge.
func ComputeCost(group tariffdomain.TariffGroup, previousReading, currentReading int64) (billingdomain.CostBreakdown, error) {
	if currentReading < previousReading {
		return billingdomain.CostBreakdown{}, billingdomain.ErrInvalidReading
	}

	consumption := currentReading - previousReading

	var volumetric int64
	if consumption <= tariffdomain.TierThresholdM3 {
		volumetric = consumption * group.PriceBelow10
	} else {
		volumetric = tariffdomain.TierThresholdM3*group.PriceBelow10 +
			(consumption-tariffdomain.TierThresholdM3)*group.PriceAbove10
	}

	return billingdomain.CostBreakdown{
		Consumption:    consumption,
		VolumetricCost: volumetric,
		FixedCharge:    group.FixedCharge,
		Total:          volumetric + group.FixedCharge,
	}, nil
}

// AccrueArrears derives the carried balance and late penalty for a new
// billing from the previous one. The penalty rate is in basis points and the
// result floor-rounds; the carried balance includes the previous billing's
// own arrears and penalty, so unpaid periods compound.
func AccrueArrears(previous *billingdomain.Billing, penaltyRateBps int64, now time.Time) (arrears, penalty int64) {
	if previous == nil || !previous.Overdue(now) {
		return 0, 0
	}
	outstanding := previous.TotalOutstanding()
	return outstanding, outstanding * penaltyRateBps / 10000
}
