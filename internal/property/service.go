package property

import (
	"context"
	"errors"
)

// RepositoryPort defines data access methods for properties and units.
type RepositoryPort interface {
	CreateProperty(ctx context.Context, input CreatePropertyInput) (*Property, error)
	GetProperty(ctx context.Context, id int64) (*Property, error)
	ListProperties(ctx context.Context) ([]Property, error)
	CreateUnit(ctx context.Context, input CreateUnitInput) (*Unit, error)
	GetUnit(ctx context.Context, id int64) (*Unit, error)
	ListUnits(ctx context.Context, propertyID int64) ([]Unit, error)
	UpdateUnitRent(ctx context.Context, id int64, rent float64) error
}

// Service handles property and unit business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProperty registers a property. Billing modes are fixed here and
// never altered afterwards; there is intentionally no update operation for
// them.
func (s *Service) CreateProperty(ctx context.Context, input CreatePropertyInput) (*Property, error) {
	if input.Name == "" {
		return nil, errors.New("property name required")
	}
	if !ValidBillingMode(input.WaterMode) {
		return nil, errors.New("water billing mode invalid")
	}
	if !ValidBillingMode(input.ElecMode) {
		return nil, errors.New("electricity billing mode invalid")
	}
	if input.AssociationDues < 0 {
		return nil, errors.New("association dues must not be negative")
	}
	if input.LateFeePerDay < 0 {
		return nil, errors.New("late fee must not be negative")
	}
	if input.GracePeriodDays < 0 {
		return nil, errors.New("grace period must not be negative")
	}
	return s.repo.CreateProperty(ctx, input)
}

// GetProperty returns one property.
func (s *Service) GetProperty(ctx context.Context, id int64) (*Property, error) {
	if id == 0 {
		return nil, errors.New("property ID required")
	}
	return s.repo.GetProperty(ctx, id)
}

// ListProperties returns all properties.
func (s *Service) ListProperties(ctx context.Context) ([]Property, error) {
	return s.repo.ListProperties(ctx)
}

// CreateUnit registers a unit under a property.
func (s *Service) CreateUnit(ctx context.Context, input CreateUnitInput) (*Unit, error) {
	if input.PropertyID == 0 {
		return nil, errors.New("property ID required")
	}
	if input.Name == "" {
		return nil, errors.New("unit name required")
	}
	if input.MonthlyRent < 0 {
		return nil, errors.New("monthly rent must not be negative")
	}
	if _, err := s.repo.GetProperty(ctx, input.PropertyID); err != nil {
		return nil, err
	}
	return s.repo.CreateUnit(ctx, input)
}

// GetUnit returns one unit.
func (s *Service) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	if id == 0 {
		return nil, errors.New("unit ID required")
	}
	return s.repo.GetUnit(ctx, id)
}

// ListUnits returns a property's units in batch-entry order.
func (s *Service) ListUnits(ctx context.Context, propertyID int64) ([]Unit, error) {
	if propertyID == 0 {
		return nil, errors.New("property ID required")
	}
	return s.repo.ListUnits(ctx, propertyID)
}

// SetUnitRent updates the landlord-effective monthly rent.
func (s *Service) SetUnitRent(ctx context.Context, id int64, rent float64) error {
	if id == 0 {
		return errors.New("unit ID required")
	}
	if rent < 0 {
		return errors.New("monthly rent must not be negative")
	}
	return s.repo.UpdateUnitRent(ctx, id, rent)
}
