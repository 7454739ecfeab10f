package billing

import (
	"time"
)

// ChargeCategory tags a charge as adding to or subtracting from the bill.
type ChargeCategory string

const (
	ChargeCategoryAdditional ChargeCategory = "additional"
	ChargeCategoryDiscount   ChargeCategory = "discount"
)

// PDCStatus mirrors the lifecycle of a post-dated check as this engine
// observes it. Status changes happen elsewhere; billing only reads them.
type PDCStatus string

const (
	PDCStatusPending PDCStatus = "pending"
	PDCStatusCleared PDCStatus = "cleared"
	PDCStatusBounced PDCStatus = "bounced"
)

// Charge model. Owned by exactly one billing record.
type Charge struct {
	ID        int64
	BillingID int64
	Category  ChargeCategory
	Type      string
	Amount    float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BillingRecord model. Exactly zero or one exists per (unit, period).
type BillingRecord struct {
	ID          int64
	Reference   string
	UnitID      int64
	Period      string
	BillingDate time.Time
	ReadingDate time.Time
	DueDate     time.Time

	WaterPrev float64
	WaterCurr float64
	ElecPrev  float64
	ElecCurr  float64

	TotalWaterAmount       float64
	TotalElectricityAmount float64
	TotalAmountDue         float64

	Charges []Charge

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChargeInput carries one charge through create or merge. A zero ID means
// insert; a non-zero ID updates the persisted charge with that id.
type ChargeInput struct {
	ID       int64
	Category ChargeCategory
	Type     string
	Amount   float64
}

// SaveBillingInput is the full create-or-update request for one
// (unit, period) key.
type SaveBillingInput struct {
	UnitID      int64
	Period      string
	BillingDate time.Time
	ReadingDate time.Time
	DueDate     time.Time

	WaterPrev float64
	WaterCurr float64
	ElecPrev  float64
	ElecCurr  float64

	Charges []ChargeInput

	// IncludeLateFee folds the computed late fee into the persisted total.
	// Left false the fee stays informational.
	IncludeLateFee bool
}

// BillingDraft holds in-progress form values between steps of multi-unit
// entry. It is passed explicitly by the caller; nothing is stashed in
// ambient storage.
type BillingDraft struct {
	PropertyID  int64
	UnitID      int64
	Period      string
	BillingDate time.Time
	ReadingDate time.Time
	DueDate     time.Time

	WaterRate float64
	ElecRate  float64
	Dues      float64

	LateFeePerDay   float64
	GracePeriodDays int
}

// NextUnitResult reports the outcome of advancing batch entry to the next
// unit of the property. Done is set past the last unit; that is a normal
// terminal acknowledgment, not an error.
type NextUnitResult struct {
	Done  bool
	Unit  *NextUnit
	Draft BillingDraft
	PDC   *PDCState
}

// NextUnit is the minimal unit view batch progression needs.
type NextUnit struct {
	ID      int64
	Name    string
	Rent    float64
	LeaseID int64
}
