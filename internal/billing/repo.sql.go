package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/rentledger/internal/platform/db"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("billing: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const billingColumns = `id, reference, unit_id, period, billing_date, reading_date, due_date,
water_prev, water_curr, elec_prev, elec_curr,
total_water_amount, total_electricity_amount, total_amount_due, created_at, updated_at`

func scanBilling(row pgx.Row) (*BillingRecord, error) {
	var rec BillingRecord
	err := row.Scan(&rec.ID, &rec.Reference, &rec.UnitID, &rec.Period, &rec.BillingDate, &rec.ReadingDate, &rec.DueDate,
		&rec.WaterPrev, &rec.WaterCurr, &rec.ElecPrev, &rec.ElecCurr,
		&rec.TotalWaterAmount, &rec.TotalElectricityAmount, &rec.TotalAmountDue, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) loadCharges(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, billingID int64) ([]Charge, error) {
	rows, err := q.Query(ctx, `SELECT id, billing_id, category, type, amount, created_at, updated_at FROM charges WHERE billing_id=$1 ORDER BY id`, billingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Charge
	for rows.Next() {
		var c Charge
		if err := rows.Scan(&c.ID, &c.BillingID, &c.Category, &c.Type, &c.Amount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBilling fetches a record and its charges by id.
func (r *Repository) GetBilling(ctx context.Context, id int64) (*BillingRecord, error) {
	rec, err := scanBilling(r.pool.QueryRow(ctx, `SELECT `+billingColumns+` FROM billing_records WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	rec.Charges, err = r.loadCharges(ctx, r.pool, rec.ID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByUnitPeriod fetches the single record for a (unit, period) key.
func (r *Repository) GetByUnitPeriod(ctx context.Context, unitID int64, period string) (*BillingRecord, error) {
	rec, err := scanBilling(r.pool.QueryRow(ctx, `SELECT `+billingColumns+` FROM billing_records WHERE unit_id=$1 AND period=$2`, unitID, period))
	if err != nil {
		return nil, err
	}
	rec.Charges, err = r.loadCharges(ctx, r.pool, rec.ID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateBilling inserts a record with its charges in one transaction. An
// insert that hits the (unit, period) uniqueness constraint reports
// ErrDuplicateKey so the caller can reroute to the update branch.
func (r *Repository) CreateBilling(ctx context.Context, rec *BillingRecord, charges []ChargeInput) (*BillingRecord, error) {
	var saved *BillingRecord
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		created, err := scanBilling(tx.QueryRow(ctx, `INSERT INTO billing_records
(reference, unit_id, period, billing_date, reading_date, due_date, water_prev, water_curr, elec_prev, elec_curr, total_water_amount, total_electricity_amount, total_amount_due, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING `+billingColumns,
			rec.Reference, rec.UnitID, rec.Period, rec.BillingDate, rec.ReadingDate, rec.DueDate,
			rec.WaterPrev, rec.WaterCurr, rec.ElecPrev, rec.ElecCurr,
			rec.TotalWaterAmount, rec.TotalElectricityAmount, rec.TotalAmountDue, now, now))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateKey
			}
			return err
		}
		for _, c := range charges {
			if err := insertCharge(ctx, tx, created.ID, c, now); err != nil {
				return err
			}
		}
		created.Charges, err = r.loadCharges(ctx, tx, created.ID)
		if err != nil {
			return err
		}
		saved = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateBilling overwrites computed totals and merges charges by id inside
// one transaction: inputs with an id update the existing row, inputs without
// one insert. Removal is DeleteCharge, never collection replacement; a full
// replace would orphan check attachments and receipt references.
func (r *Repository) UpdateBilling(ctx context.Context, rec *BillingRecord, charges []ChargeInput) (*BillingRecord, error) {
	var saved *BillingRecord
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		updated, err := scanBilling(tx.QueryRow(ctx, `UPDATE billing_records SET
billing_date=$1, reading_date=$2, due_date=$3,
water_prev=$4, water_curr=$5, elec_prev=$6, elec_curr=$7,
total_water_amount=$8, total_electricity_amount=$9, total_amount_due=$10, updated_at=$11
WHERE id=$12 RETURNING `+billingColumns,
			rec.BillingDate, rec.ReadingDate, rec.DueDate,
			rec.WaterPrev, rec.WaterCurr, rec.ElecPrev, rec.ElecCurr,
			rec.TotalWaterAmount, rec.TotalElectricityAmount, rec.TotalAmountDue, now, rec.ID))
		if err != nil {
			return err
		}
		for _, c := range charges {
			if c.ID == 0 {
				if err := insertCharge(ctx, tx, updated.ID, c, now); err != nil {
					return err
				}
				continue
			}
			tag, err := tx.Exec(ctx, `UPDATE charges SET category=$1, type=$2, amount=$3, updated_at=$4 WHERE id=$5 AND billing_id=$6`,
				c.Category, c.Type, c.Amount, now, c.ID, updated.ID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		updated.Charges, err = r.loadCharges(ctx, tx, updated.ID)
		if err != nil {
			return err
		}
		saved = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func insertCharge(ctx context.Context, tx pgx.Tx, billingID int64, c ChargeInput, now time.Time) error {
	_, err := tx.Exec(ctx, `INSERT INTO charges (billing_id, category, type, amount, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		billingID, c.Category, c.Type, c.Amount, now, now)
	return err
}

// DeleteCharge removes one charge owned by the given billing record.
func (r *Repository) DeleteCharge(ctx context.Context, billingID, chargeID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM charges WHERE id=$1 AND billing_id=$2`, chargeID, billingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByProperty returns a property's records, optionally for one period.
func (r *Repository) ListByProperty(ctx context.Context, propertyID int64, period string) ([]BillingRecord, error) {
	query := `SELECT ` + qualifiedBillingColumns + ` FROM billing_records b JOIN units u ON u.id = b.unit_id WHERE u.property_id=$1`
	args := []any{propertyID}
	if period != "" {
		query += ` AND b.period=$2`
		args = append(args, period)
	}
	query += ` ORDER BY b.unit_id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BillingRecord
	for rows.Next() {
		var rec BillingRecord
		if err := rows.Scan(&rec.ID, &rec.Reference, &rec.UnitID, &rec.Period, &rec.BillingDate, &rec.ReadingDate, &rec.DueDate,
			&rec.WaterPrev, &rec.WaterCurr, &rec.ElecPrev, &rec.ElecCurr,
			&rec.TotalWaterAmount, &rec.TotalElectricityAmount, &rec.TotalAmountDue, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const qualifiedBillingColumns = `b.id, b.reference, b.unit_id, b.period, b.billing_date, b.reading_date, b.due_date,
b.water_prev, b.water_curr, b.elec_prev, b.elec_curr,
b.total_water_amount, b.total_electricity_amount, b.total_amount_due, b.created_at, b.updated_at`
