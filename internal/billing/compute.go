package billing

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ComputeInput carries every value the billing formula depends on. Callers
// resolve rates, charges and the PDC before calling Compute; nothing in here
// touches storage or the clock.
type ComputeInput struct {
	Rent            float64
	Dues            float64
	LateFeePerDay   float64
	GracePeriodDays int

	WaterPrev float64
	WaterCurr float64
	WaterRate float64

	ElecPrev float64
	ElecCurr float64
	ElecRate float64

	Charges []ChargeLine
	PDC     *PDCState

	DueDate time.Time
	Now     time.Time
}

// ChargeLine is a charge or discount already narrowed at the boundary.
type ChargeLine struct {
	Category ChargeCategory
	Type     string
	Amount   float64
}

// PDCState is the slice of a post-dated check the formula cares about.
type PDCState struct {
	Amount float64
	Status PDCStatus
}

// ComputeResult is the full breakdown both the save path and the tenant
// redisplay path render from.
type ComputeResult struct {
	WaterUsage      float64 `json:"water_usage"`
	ElecUsage       float64 `json:"elec_usage"`
	WaterCost       float64 `json:"water_cost"`
	ElecCost        float64 `json:"elec_cost"`
	Dues            float64 `json:"dues"`
	TotalAdditional float64 `json:"total_additional"`
	TotalDiscount   float64 `json:"total_discount"`
	PDCCovered      float64 `json:"pdc_covered"`
	RentAfterPDC    float64 `json:"rent_after_pdc"`
	LateFee         float64 `json:"late_fee"`
	TotalBeforePDC  float64 `json:"total_before_pdc"`
	TotalAmountDue  float64 `json:"total_amount_due"`
}

// MeterUsage converts adjacent readings into consumption. Readings entered in
// the wrong order produce zero usage rather than a negative bill.
func MeterUsage(previous, current float64) float64 {
	usage := current - previous
	if usage < 0 {
		return 0
	}
	return usage
}

// ParseReading interprets a human-entered meter reading. Blank or
// unparseable input counts as zero.
func ParseReading(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// UtilityRate derives a per-unit rate from a trailing aggregate. Zero
// consumption yields a zero rate, not an error.
func UtilityRate(total, consumption float64) float64 {
	if consumption <= 0 {
		return 0
	}
	return total / consumption
}

// ChargeTotals sums charge amounts per category. Input is assumed already
// filtered at the boundary; the sums are deterministic over whatever arrives.
func ChargeTotals(charges []ChargeLine) (additional, discount float64) {
	for _, c := range charges {
		switch c.Category {
		case ChargeCategoryAdditional:
			additional += c.Amount
		case ChargeCategoryDiscount:
			discount += c.Amount
		}
	}
	return additional, discount
}

// PDCCoverage resolves how much of the rent a post-dated check offsets.
// Only a cleared check covers, and never more than the rent component.
func PDCCoverage(pdc *PDCState, rent float64) (covered, rentAfter float64) {
	if pdc != nil && pdc.Status == PDCStatusCleared {
		covered = pdc.Amount
		if covered > rent {
			covered = rent
		}
	}
	rentAfter = rent - covered
	if rentAfter < 0 {
		rentAfter = 0
	}
	return covered, rentAfter
}

// LateFee returns the accrued fee for time elapsed past the grace window.
// Inside the window the fee is zero. The create/update path surfaces this
// informationally; it enters the total only when the caller adds it.
func LateFee(dueDate, now time.Time, gracePeriodDays int, feePerDay float64) float64 {
	if dueDate.IsZero() || feePerDay <= 0 {
		return 0
	}
	deadline := dueDate.AddDate(0, 0, gracePeriodDays)
	if !now.After(deadline) {
		return 0
	}
	days := int(math.Ceil(now.Sub(deadline).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return Round2(float64(days) * feePerDay)
}

// Round2 rounds half-up to two decimals. Utility costs are rounded here,
// before summation, so the stored per-utility amounts add up to the stored
// grand total exactly.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute is the single authoritative billing formula. The create/update
// flow, the pre-save preview and the tenant redisplay all call this; any
// drift between those surfaces is a bug here, not in the callers.
func Compute(in ComputeInput) ComputeResult {
	waterUsage := MeterUsage(in.WaterPrev, in.WaterCurr)
	elecUsage := MeterUsage(in.ElecPrev, in.ElecCurr)

	waterCost := Round2(waterUsage * in.WaterRate)
	elecCost := Round2(elecUsage * in.ElecRate)

	additional, discount := ChargeTotals(in.Charges)
	covered, rentAfter := PDCCoverage(in.PDC, in.Rent)

	total := rentAfter + in.Dues + waterCost + elecCost + additional - discount
	if total < 0 {
		total = 0
	}

	return ComputeResult{
		WaterUsage:      waterUsage,
		ElecUsage:       elecUsage,
		WaterCost:       waterCost,
		ElecCost:        elecCost,
		Dues:            in.Dues,
		TotalAdditional: additional,
		TotalDiscount:   discount,
		PDCCovered:      covered,
		RentAfterPDC:    rentAfter,
		LateFee:         LateFee(in.DueDate, in.Now, in.GracePeriodDays, in.LateFeePerDay),
		TotalBeforePDC:  TotalBeforePDC(in),
		TotalAmountDue:  Round2(total),
	}
}

// TotalBeforePDC reports the gross amount ignoring check coverage, shown to
// landlords alongside the adjusted total.
func TotalBeforePDC(in ComputeInput) float64 {
	waterCost := Round2(MeterUsage(in.WaterPrev, in.WaterCurr) * in.WaterRate)
	elecCost := Round2(MeterUsage(in.ElecPrev, in.ElecCurr) * in.ElecRate)
	additional, discount := ChargeTotals(in.Charges)
	return Round2(in.Rent + in.Dues + waterCost + elecCost + additional - discount)
}
