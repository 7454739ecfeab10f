package property

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("property: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const propertyColumns = `id, name, address, association_dues, late_fee_per_day, grace_period_days, water_mode, elec_mode, created_at, updated_at`

func scanProperty(row pgx.Row) (*Property, error) {
	var p Property
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.AssociationDues, &p.LateFeePerDay, &p.GracePeriodDays, &p.WaterMode, &p.ElecMode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreateProperty inserts a property.
func (r *Repository) CreateProperty(ctx context.Context, input CreatePropertyInput) (*Property, error) {
	now := time.Now()
	row := r.pool.QueryRow(ctx, `INSERT INTO properties (name, address, association_dues, late_fee_per_day, grace_period_days, water_mode, elec_mode, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+propertyColumns,
		input.Name, input.Address, input.AssociationDues, input.LateFeePerDay, input.GracePeriodDays, input.WaterMode, input.ElecMode, now, now)
	return scanProperty(row)
}

// GetProperty fetches a property by id.
func (r *Repository) GetProperty(ctx context.Context, id int64) (*Property, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, id)
	return scanProperty(row)
}

// ListProperties returns all properties ordered by id.
func (r *Repository) ListProperties(ctx context.Context) ([]Property, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.AssociationDues, &p.LateFeePerDay, &p.GracePeriodDays, &p.WaterMode, &p.ElecMode, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// lease_id is NULL for vacant units; LeaseID 0 is the in-process spelling of
// "no lease", so the mapping happens in SQL on both sides.
const unitColumns = `id, property_id, name, monthly_rent, COALESCE(lease_id, 0), occupied, created_at, updated_at`

// CreateUnit inserts a unit.
func (r *Repository) CreateUnit(ctx context.Context, input CreateUnitInput) (*Unit, error) {
	now := time.Now()
	var u Unit
	err := r.pool.QueryRow(ctx, `INSERT INTO units (property_id, name, monthly_rent, lease_id, occupied, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7) RETURNING `+unitColumns,
		input.PropertyID, input.Name, input.MonthlyRent, input.LeaseID, input.LeaseID != 0, now, now).
		Scan(&u.ID, &u.PropertyID, &u.Name, &u.MonthlyRent, &u.LeaseID, &u.Occupied, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUnit fetches a unit by id.
func (r *Repository) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	var u Unit
	err := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id=$1`, id).
		Scan(&u.ID, &u.PropertyID, &u.Name, &u.MonthlyRent, &u.LeaseID, &u.Occupied, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListUnits returns a property's units in the order batch entry walks them.
func (r *Repository) ListUnits(ctx context.Context, propertyID int64) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM units WHERE property_id=$1 ORDER BY name, id`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.PropertyID, &u.Name, &u.MonthlyRent, &u.LeaseID, &u.Occupied, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateUnitRent sets the landlord-effective monthly rent.
func (r *Repository) UpdateUnitRent(ctx context.Context, id int64, rent float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE units SET monthly_rent=$1, updated_at=$2 WHERE id=$3`, rent, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
