package pdc

import "time"

// Status enumerates post-dated check states. Transitions are landlord
// actions; the billing engine only reads them.
type Status string

const (
	StatusPending Status = "pending"
	StatusCleared Status = "cleared"
	StatusBounced Status = "bounced"
)

// PDC model. Associated with a lease and, once a bill exists, with a
// specific billing record.
type PDC struct {
	ID        int64
	LeaseID   int64
	BillingID *int64
	Number    string
	Amount    float64
	Status    Status
	CheckDate time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreatePDCInput registers a check against a lease.
type CreatePDCInput struct {
	LeaseID   int64
	Number    string
	Amount    float64
	CheckDate time.Time
}
