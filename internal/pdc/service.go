package pdc

import (
	"context"
	"errors"
)

// RepositoryPort defines data access methods for PDCs.
type RepositoryPort interface {
	CreatePDC(ctx context.Context, input CreatePDCInput) (*PDC, error)
	GetPDC(ctx context.Context, id int64) (*PDC, error)
	ListByBilling(ctx context.Context, billingID int64) ([]PDC, error)
	ListByLease(ctx context.Context, leaseID int64) ([]PDC, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	AttachBilling(ctx context.Context, id, billingID int64) error
}

// ErrInvalidStatus indicates a transition the check lifecycle does not allow.
var ErrInvalidStatus = errors.New("pdc: invalid status transition")

// Service handles PDC business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Select picks the check a billing computation should look at when several
// are on file: pending first, then cleared, then whatever came back first.
// The first-returned fallback is inherited from upstream API ordering and is
// pinned by tests; do not reorder it without checking callers.
func Select(pdcs []PDC) *PDC {
	if len(pdcs) == 0 {
		return nil
	}
	for i := range pdcs {
		if pdcs[i].Status == StatusPending {
			return &pdcs[i]
		}
	}
	for i := range pdcs {
		if pdcs[i].Status == StatusCleared {
			return &pdcs[i]
		}
	}
	return &pdcs[0]
}

// Register files a new check against a lease. New checks start pending.
func (s *Service) Register(ctx context.Context, input CreatePDCInput) (*PDC, error) {
	if input.LeaseID == 0 {
		return nil, errors.New("lease ID required")
	}
	if input.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if input.Number == "" {
		return nil, errors.New("check number required")
	}
	return s.repo.CreatePDC(ctx, input)
}

// ResolveForBilling finds the check relevant to one billing computation.
// Lookup prefers checks already attached to the billing record, falling back
// to the lease. No check on file is a normal outcome, not an error.
func (s *Service) ResolveForBilling(ctx context.Context, billingID, leaseID int64) (*PDC, error) {
	if billingID != 0 {
		pdcs, err := s.repo.ListByBilling(ctx, billingID)
		if err != nil {
			return nil, err
		}
		if selected := Select(pdcs); selected != nil {
			return selected, nil
		}
	}
	if leaseID == 0 {
		return nil, nil
	}
	pdcs, err := s.repo.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	return Select(pdcs), nil
}

// MarkCleared records a bank-cleared check. Only pending checks clear.
func (s *Service) MarkCleared(ctx context.Context, id int64) (*PDC, error) {
	return s.transition(ctx, id, StatusCleared)
}

// MarkBounced records a bounced check. Only pending checks bounce.
func (s *Service) MarkBounced(ctx context.Context, id int64) (*PDC, error) {
	return s.transition(ctx, id, StatusBounced)
}

func (s *Service) transition(ctx context.Context, id int64, target Status) (*PDC, error) {
	if id == 0 {
		return nil, errors.New("pdc ID required")
	}
	current, err := s.repo.GetPDC(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}
	current.Status = target
	return current, nil
}

// Attach links a check to the billing record it now offsets.
func (s *Service) Attach(ctx context.Context, id, billingID int64) error {
	if id == 0 || billingID == 0 {
		return errors.New("pdc ID and billing ID required")
	}
	return s.repo.AttachBilling(ctx, id, billingID)
}
