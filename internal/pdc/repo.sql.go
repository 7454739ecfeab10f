package pdc

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("pdc: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pdcColumns = `id, lease_id, billing_id, number, amount, status, check_date, created_at, updated_at`

// CreatePDC inserts a check in pending state.
func (r *Repository) CreatePDC(ctx context.Context, input CreatePDCInput) (*PDC, error) {
	now := time.Now()
	var p PDC
	err := r.pool.QueryRow(ctx, `INSERT INTO pdcs (lease_id, number, amount, status, check_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+pdcColumns,
		input.LeaseID, input.Number, input.Amount, StatusPending, input.CheckDate, now, now).
		Scan(&p.ID, &p.LeaseID, &p.BillingID, &p.Number, &p.Amount, &p.Status, &p.CheckDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPDC fetches a check by id.
func (r *Repository) GetPDC(ctx context.Context, id int64) (*PDC, error) {
	var p PDC
	err := r.pool.QueryRow(ctx, `SELECT `+pdcColumns+` FROM pdcs WHERE id=$1`, id).
		Scan(&p.ID, &p.LeaseID, &p.BillingID, &p.Number, &p.Amount, &p.Status, &p.CheckDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) list(ctx context.Context, query string, arg any) ([]PDC, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PDC
	for rows.Next() {
		var p PDC
		if err := rows.Scan(&p.ID, &p.LeaseID, &p.BillingID, &p.Number, &p.Amount, &p.Status, &p.CheckDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByBilling returns checks attached to a billing record, in insertion
// order. The selection tie-break depends on this ordering staying stable.
func (r *Repository) ListByBilling(ctx context.Context, billingID int64) ([]PDC, error) {
	return r.list(ctx, `SELECT `+pdcColumns+` FROM pdcs WHERE billing_id=$1 ORDER BY id`, billingID)
}

// ListByLease returns checks filed against a lease, in insertion order.
func (r *Repository) ListByLease(ctx context.Context, leaseID int64) ([]PDC, error) {
	return r.list(ctx, `SELECT `+pdcColumns+` FROM pdcs WHERE lease_id=$1 ORDER BY id`, leaseID)
}

// UpdateStatus records a landlord status action.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE pdcs SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachBilling links a check to a billing record.
func (r *Repository) AttachBilling(ctx context.Context, id, billingID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE pdcs SET billing_id=$1, updated_at=$2 WHERE id=$3`, billingID, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
