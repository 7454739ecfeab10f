package property

import "time"

// BillingMode describes how a property bills a utility. Fixed at property
// creation and never altered afterwards.
type BillingMode string

const (
	BillingModeIncluded   BillingMode = "included"
	BillingModeDirect     BillingMode = "direct"
	BillingModeSubmetered BillingMode = "submetered"
)

// ValidBillingMode reports whether the mode is one of the known variants.
func ValidBillingMode(m BillingMode) bool {
	switch m {
	case BillingModeIncluded, BillingModeDirect, BillingModeSubmetered:
		return true
	}
	return false
}

// Property model.
type Property struct {
	ID              int64
	Name            string
	Address         string
	AssociationDues float64
	LateFeePerDay   float64
	GracePeriodDays int
	WaterMode       BillingMode
	ElecMode        BillingMode
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Unit model. MonthlyRent is landlord-set and authoritative over any value
// extracted from a lease document.
type Unit struct {
	ID          int64
	PropertyID  int64
	Name        string
	MonthlyRent float64
	LeaseID     int64
	Occupied    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePropertyInput for registering a property.
type CreatePropertyInput struct {
	Name            string
	Address         string
	AssociationDues float64
	LateFeePerDay   float64
	GracePeriodDays int
	WaterMode       BillingMode
	ElecMode        BillingMode
}

// CreateUnitInput for registering a unit under a property.
type CreateUnitInput struct {
	PropertyID  int64
	Name        string
	MonthlyRent float64
	LeaseID     int64
}
