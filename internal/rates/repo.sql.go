package rates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Aggregate is one utility's trailing billing total and consumption for a
// property.
type Aggregate struct {
	Total       float64 `json:"total"`
	Consumption float64 `json:"consumption"`
}

// PropertyAggregates holds the most recent per-utility aggregates.
type PropertyAggregates struct {
	Period      string    `json:"period"`
	Water       Aggregate `json:"water"`
	Electricity Aggregate `json:"electricity"`
}

// Repository reads property-level billing aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LatestAggregates sums the most recent billing period at or before upTo for
// the property. Empty upTo means the latest period on file. A property with
// no matching history yields zero aggregates, which downstream resolves to
// zero rates.
func (r *Repository) LatestAggregates(ctx context.Context, propertyID int64, upTo string) (PropertyAggregates, error) {
	var agg PropertyAggregates
	err := r.pool.QueryRow(ctx, `
SELECT b.period,
       COALESCE(SUM(b.total_water_amount), 0),
       COALESCE(SUM(GREATEST(b.water_curr - b.water_prev, 0)), 0),
       COALESCE(SUM(b.total_electricity_amount), 0),
       COALESCE(SUM(GREATEST(b.elec_curr - b.elec_prev, 0)), 0)
FROM billing_records b
JOIN units u ON u.id = b.unit_id
WHERE u.property_id = $1
  AND b.period = (
        SELECT MAX(b2.period)
        FROM billing_records b2
        JOIN units u2 ON u2.id = b2.unit_id
        WHERE u2.property_id = $1
          AND ($2 = '' OR b2.period <= $2)
  )
GROUP BY b.period`, propertyID, upTo).
		Scan(&agg.Period, &agg.Water.Total, &agg.Water.Consumption, &agg.Electricity.Total, &agg.Electricity.Consumption)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PropertyAggregates{}, nil
		}
		return PropertyAggregates{}, err
	}
	return agg, nil
}
