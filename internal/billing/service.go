package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentledger/rentledger/internal/pdc"
	"github.com/rentledger/rentledger/internal/property"
	"github.com/rentledger/rentledger/internal/rates"
	"github.com/rentledger/rentledger/internal/shared"
)

// RepositoryPort defines data access methods for billing records.
type RepositoryPort interface {
	GetBilling(ctx context.Context, id int64) (*BillingRecord, error)
	GetByUnitPeriod(ctx context.Context, unitID int64, period string) (*BillingRecord, error)
	CreateBilling(ctx context.Context, rec *BillingRecord, charges []ChargeInput) (*BillingRecord, error)
	UpdateBilling(ctx context.Context, rec *BillingRecord, charges []ChargeInput) (*BillingRecord, error)
	DeleteCharge(ctx context.Context, billingID, chargeID int64) error
	ListByProperty(ctx context.Context, propertyID int64, period string) ([]BillingRecord, error)
}

// PropertyPort is the slice of the property module billing consumes.
type PropertyPort interface {
	GetProperty(ctx context.Context, id int64) (*property.Property, error)
	GetUnit(ctx context.Context, id int64) (*property.Unit, error)
	ListUnits(ctx context.Context, propertyID int64) ([]property.Unit, error)
}

// PDCPort resolves and attaches post-dated checks.
type PDCPort interface {
	ResolveForBilling(ctx context.Context, billingID, leaseID int64) (*pdc.PDC, error)
	Attach(ctx context.Context, id, billingID int64) error
}

// RatePort resolves property utility rates for a billing period.
type RatePort interface {
	Resolve(ctx context.Context, propertyID int64, period string) (rates.Rates, error)
	Invalidate(ctx context.Context) error
}

// ErrDuplicateKey is returned by the repository when an insert hits the
// (unit, period) uniqueness constraint. The service routes it to the update
// branch instead of surfacing it.
var ErrDuplicateKey = errors.New("billing: record already exists for unit and period")

// Service is the billing lifecycle manager. One instance serves both the
// landlord save flow and the tenant redisplay flow so the two can never
// disagree on a total.
type Service struct {
	repo       RepositoryPort
	properties PropertyPort
	pdcs       PDCPort
	rates      RatePort
	locker     *shared.Locker
	now        func() time.Time
}

// NewService builds Service instance. locker may be nil.
func NewService(repo RepositoryPort, properties PropertyPort, pdcs PDCPort, rateSvc RatePort, locker *shared.Locker) *Service {
	return &Service{
		repo:       repo,
		properties: properties,
		pdcs:       pdcs,
		rates:      rateSvc,
		locker:     locker,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// narrowCharges drops charges that must not persist: non-positive amounts
// and blank labels. Validation lives here at the boundary; ChargeTotals
// itself sums whatever it is given.
func narrowCharges(in []ChargeInput) []ChargeInput {
	out := make([]ChargeInput, 0, len(in))
	for _, c := range in {
		if c.Amount <= 0 {
			continue
		}
		if strings.TrimSpace(c.Type) == "" {
			continue
		}
		if c.Category != ChargeCategoryAdditional && c.Category != ChargeCategoryDiscount {
			continue
		}
		out = append(out, c)
	}
	return out
}

// LateFeeChargeType labels the additional charge a billed late fee is
// folded into.
const LateFeeChargeType = "Late fee"

// foldLateFee sets the billed late fee on the charge list. A charge with the
// late fee label echoed back from a prior save is updated in place, id and
// all, so re-saving with the flag still set cannot bill the fee twice.
func foldLateFee(charges []ChargeInput, fee float64) []ChargeInput {
	for i, c := range charges {
		if c.Category == ChargeCategoryAdditional && c.Type == LateFeeChargeType {
			charges[i].Amount = fee
			return charges
		}
	}
	return append(charges, ChargeInput{Category: ChargeCategoryAdditional, Type: LateFeeChargeType, Amount: fee})
}

func chargeLines(in []ChargeInput) []ChargeLine {
	lines := make([]ChargeLine, 0, len(in))
	for _, c := range in {
		lines = append(lines, ChargeLine{Category: c.Category, Type: c.Type, Amount: c.Amount})
	}
	return lines
}

func pdcState(p *pdc.PDC) *PDCState {
	if p == nil {
		return nil
	}
	return &PDCState{Amount: p.Amount, Status: PDCStatus(p.Status)}
}

// buildInput resolves every collaborator value the formula needs for one
// unit and period. billingID is zero when no record exists yet.
func (s *Service) buildInput(ctx context.Context, in SaveBillingInput, billingID int64) (ComputeInput, *property.Unit, *pdc.PDC, error) {
	unit, err := s.properties.GetUnit(ctx, in.UnitID)
	if err != nil {
		return ComputeInput{}, nil, nil, err
	}
	prop, err := s.properties.GetProperty(ctx, unit.PropertyID)
	if err != nil {
		return ComputeInput{}, nil, nil, err
	}
	resolved, err := s.rates.Resolve(ctx, prop.ID, in.Period)
	if err != nil {
		// An unresolvable rate defaults to zero cost rather than failing.
		resolved = rates.Rates{}
	}
	waterRate, elecRate := resolved.Water, resolved.Electricity
	if prop.WaterMode != property.BillingModeSubmetered {
		waterRate = 0
	}
	if prop.ElecMode != property.BillingModeSubmetered {
		elecRate = 0
	}
	check, err := s.pdcs.ResolveForBilling(ctx, billingID, unit.LeaseID)
	if err != nil {
		// An unresolvable check is "no PDC", not a failure.
		check = nil
	}
	return ComputeInput{
		Rent:            unit.MonthlyRent,
		Dues:            prop.AssociationDues,
		LateFeePerDay:   prop.LateFeePerDay,
		GracePeriodDays: prop.GracePeriodDays,
		WaterPrev:       in.WaterPrev,
		WaterCurr:       in.WaterCurr,
		WaterRate:       waterRate,
		ElecPrev:        in.ElecPrev,
		ElecCurr:        in.ElecCurr,
		ElecRate:        elecRate,
		Charges:         chargeLines(narrowCharges(in.Charges)),
		PDC:             pdcState(check),
		DueDate:         in.DueDate,
		Now:             s.now(),
	}, unit, check, nil
}

// Preview runs the computation without persisting anything. Serves live
// recalculation while the landlord edits and the tenant redisplay of an
// unsaved draft.
func (s *Service) Preview(ctx context.Context, in SaveBillingInput) (ComputeResult, error) {
	if in.UnitID == 0 {
		return ComputeResult{}, fmt.Errorf("%w: unit ID required", shared.ErrValidation)
	}
	var billingID int64
	if period, err := shared.ParsePeriod(in.Period); err == nil {
		if existing, err := s.repo.GetByUnitPeriod(ctx, in.UnitID, period); err == nil {
			billingID = existing.ID
		}
	}
	input, _, _, err := s.buildInput(ctx, in, billingID)
	if err != nil {
		return ComputeResult{}, err
	}
	return Compute(input), nil
}

func validateSave(in *SaveBillingInput) error {
	if in.UnitID == 0 {
		return fmt.Errorf("%w: unit ID required", shared.ErrValidation)
	}
	if in.BillingDate.IsZero() {
		return fmt.Errorf("%w: billing date required", shared.ErrValidation)
	}
	if in.ReadingDate.IsZero() {
		return fmt.Errorf("%w: reading date required", shared.ErrValidation)
	}
	if in.DueDate.IsZero() {
		return fmt.Errorf("%w: due date required", shared.ErrValidation)
	}
	if in.Period == "" {
		in.Period = shared.PeriodOf(in.BillingDate)
	}
	period, err := shared.ParsePeriod(in.Period)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	in.Period = period
	return nil
}

// Save creates or updates the billing record for (unit, period). The first
// save inserts; every later save for the same key overwrites computed totals
// and merges charges by id. A concurrent create losing the uniqueness race
// is rerouted to the update branch.
func (s *Service) Save(ctx context.Context, in SaveBillingInput) (*BillingRecord, error) {
	if err := validateSave(&in); err != nil {
		return nil, err
	}

	lockKey := shared.BillingLockKey(in.UnitID, in.Period)
	if err := s.locker.Acquire(ctx, lockKey); err != nil {
		return nil, err
	}
	defer s.locker.Release(ctx, lockKey)

	existing, err := s.repo.GetByUnitPeriod(ctx, in.UnitID, in.Period)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	var billingID int64
	if existing != nil {
		billingID = existing.ID
	}
	input, _, check, err := s.buildInput(ctx, in, billingID)
	if err != nil {
		return nil, err
	}

	charges := narrowCharges(in.Charges)
	if in.IncludeLateFee {
		// Explicitly billed late fees become a regular additional charge so
		// that a later recompute from stored state reproduces the total.
		if fee := LateFee(in.DueDate, s.now(), input.GracePeriodDays, input.LateFeePerDay); fee > 0 {
			charges = foldLateFee(charges, fee)
			input.Charges = chargeLines(charges)
		}
	}
	result := Compute(input)

	rec := &BillingRecord{
		UnitID:                 in.UnitID,
		Period:                 in.Period,
		BillingDate:            in.BillingDate,
		ReadingDate:            in.ReadingDate,
		DueDate:                in.DueDate,
		WaterPrev:              in.WaterPrev,
		WaterCurr:              in.WaterCurr,
		ElecPrev:               in.ElecPrev,
		ElecCurr:               in.ElecCurr,
		TotalWaterAmount:       result.WaterCost,
		TotalElectricityAmount: result.ElecCost,
		TotalAmountDue:         result.TotalAmountDue,
	}

	var saved *BillingRecord
	if existing == nil {
		rec.Reference = uuid.NewString()
		saved, err = s.repo.CreateBilling(ctx, rec, charges)
		if errors.Is(err, ErrDuplicateKey) {
			// Lost the create race; the key now exists, so update it.
			existing, err = s.repo.GetByUnitPeriod(ctx, in.UnitID, in.Period)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
		}
	}
	if saved == nil {
		rec.ID = existing.ID
		rec.Reference = existing.Reference
		saved, err = s.repo.UpdateBilling(ctx, rec, charges)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
		}
	}

	if check != nil && check.BillingID == nil {
		if err := s.pdcs.Attach(ctx, check.ID, saved.ID); err != nil {
			return nil, fmt.Errorf("%w: attach pdc: %v", shared.ErrPersistence, err)
		}
	}

	// Billing history changed; trailing rate statistics are stale.
	_ = s.rates.Invalidate(ctx)

	return saved, nil
}

// DeleteCharge removes one persisted charge. Callers that are about to
// re-save a record must await this before the merge so the merge never races
// the deletion of the same id. On failure the charge stays, keeping the
// displayed and stored lists consistent.
func (s *Service) DeleteCharge(ctx context.Context, billingID, chargeID int64) error {
	if billingID == 0 || chargeID == 0 {
		return fmt.Errorf("%w: billing ID and charge ID required", shared.ErrValidation)
	}
	if err := s.repo.DeleteCharge(ctx, billingID, chargeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return nil
}

// Redisplay loads a stored record and recomputes its breakdown from the
// stored fields, unchanged charges and current PDC state. The recomputed
// total must equal the stored one; a mismatch is reported so drift cannot
// pass silently.
func (s *Service) Redisplay(ctx context.Context, billingID int64) (*BillingRecord, ComputeResult, error) {
	rec, err := s.repo.GetBilling(ctx, billingID)
	if err != nil {
		return nil, ComputeResult{}, err
	}
	in := SaveBillingInput{
		UnitID:      rec.UnitID,
		Period:      rec.Period,
		BillingDate: rec.BillingDate,
		ReadingDate: rec.ReadingDate,
		DueDate:     rec.DueDate,
		WaterPrev:   rec.WaterPrev,
		WaterCurr:   rec.WaterCurr,
		ElecPrev:    rec.ElecPrev,
		ElecCurr:    rec.ElecCurr,
	}
	for _, c := range rec.Charges {
		in.Charges = append(in.Charges, ChargeInput{ID: c.ID, Category: c.Category, Type: c.Type, Amount: c.Amount})
	}
	input, _, _, err := s.buildInput(ctx, in, rec.ID)
	if err != nil {
		return nil, ComputeResult{}, err
	}
	// Display what was billed, not today's rate statistics: reproduce the
	// stored per-utility amounts by deriving the effective rates back out of
	// the record itself.
	input.WaterRate = UtilityRate(rec.TotalWaterAmount, MeterUsage(rec.WaterPrev, rec.WaterCurr))
	input.ElecRate = UtilityRate(rec.TotalElectricityAmount, MeterUsage(rec.ElecPrev, rec.ElecCurr))
	result := Compute(input)
	return rec, result, nil
}

// NextUnit advances batch entry to the unit after draft.UnitID in the
// property's listing order. Form fields reset; property-level context
// carries over; the PDC lookup reruns for the next unit's lease. Past the
// last unit the result is a terminal acknowledgment.
func (s *Service) NextUnit(ctx context.Context, draft BillingDraft) (NextUnitResult, error) {
	if draft.PropertyID == 0 {
		return NextUnitResult{}, fmt.Errorf("%w: property ID required", shared.ErrValidation)
	}
	units, err := s.properties.ListUnits(ctx, draft.PropertyID)
	if err != nil {
		return NextUnitResult{}, err
	}
	idx := -1
	for i, u := range units {
		if u.ID == draft.UnitID {
			idx = i
			break
		}
	}
	if idx == -1 || idx+1 >= len(units) {
		return NextUnitResult{Done: true, Draft: draft}, nil
	}
	next := units[idx+1]

	// Reset per-unit form fields, keep property context.
	nextDraft := draft
	nextDraft.UnitID = next.ID
	nextDraft.ReadingDate = time.Time{}

	var state *PDCState
	if check, err := s.pdcs.ResolveForBilling(ctx, 0, next.LeaseID); err == nil {
		state = pdcState(check)
	}

	return NextUnitResult{
		Done: false,
		Unit: &NextUnit{
			ID:      next.ID,
			Name:    next.Name,
			Rent:    next.MonthlyRent,
			LeaseID: next.LeaseID,
		},
		Draft: nextDraft,
		PDC:   state,
	}, nil
}

// Get returns a stored billing record with its charges.
func (s *Service) Get(ctx context.Context, id int64) (*BillingRecord, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: billing ID required", shared.ErrValidation)
	}
	return s.repo.GetBilling(ctx, id)
}

// ListByProperty returns a property's billing records for one period.
func (s *Service) ListByProperty(ctx context.Context, propertyID int64, period string) ([]BillingRecord, error) {
	if propertyID == 0 {
		return nil, fmt.Errorf("%w: property ID required", shared.ErrValidation)
	}
	if period != "" {
		p, err := shared.ParsePeriod(period)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
		}
		period = p
	}
	return s.repo.ListByProperty(ctx, propertyID, period)
}
