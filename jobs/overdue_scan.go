package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/rentledger/internal/billing"
	jobmetrics "github.com/rentledger/rentledger/internal/jobs"
	"github.com/rentledger/rentledger/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Enqueuer is the slice of the job client the overdue scan needs to fan out
// reminder emails.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// OverdueScanJob sweeps billing records past their due date, computes the
// running late fee for each and enqueues at most one reminder email per
// record per day.
type OverdueScanJob struct {
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Dedup    *shared.IdempotencyStore
	Enqueuer Enqueuer
	clock    func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(pool *pgxpool.Pool, dedup *shared.IdempotencyStore, enqueuer Enqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Pool:     pool,
		Logger:   logger,
		Metrics:  metrics,
		Dedup:    dedup,
		Enqueuer: enqueuer,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the overdue scan logic.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.LookbackDays <= 0 {
		payload.LookbackDays = 90
	}

	now := j.now()
	tracker := j.metrics().Track(TaskBillingOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("lookback_days", payload.LookbackDays))
	logger.Info("starting overdue scan")

	records, err := j.scan(ctx, payload, now)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	reminders := 0
	byProperty := make(map[int64]int)
	for _, rec := range records {
		byProperty[rec.PropertyID]++
		fee := billing.LateFee(rec.DueDate, now, rec.GracePeriodDays, rec.LateFeePerDay)
		logger.Warn("billing record overdue",
			slog.Int64("billing_id", rec.BillingID),
			slog.String("reference", rec.Reference),
			slog.String("unit", rec.UnitName),
			slog.String("period", rec.Period),
			slog.Float64("amount_due", rec.TotalAmountDue),
			slog.Float64("late_fee", fee),
		)
		if j.remind(ctx, rec, fee, now) {
			reminders++
		}
	}
	for propertyID, count := range byProperty {
		j.metrics().AddOverdue(propertyID, count)
	}

	logger.Info("completed overdue scan",
		slog.Int("overdue", len(records)),
		slog.Int("reminders", reminders),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

type overdueRecord struct {
	BillingID       int64
	Reference       string
	UnitName        string
	Period          string
	DueDate         time.Time
	TotalAmountDue  float64
	PropertyID      int64
	LateFeePerDay   float64
	GracePeriodDays int
	TenantEmail     string
}

func (j *OverdueScanJob) scan(ctx context.Context, payload OverdueScanPayload, now time.Time) ([]overdueRecord, error) {
	if j.Pool == nil {
		return nil, errors.New("overdue scan: pool not configured")
	}
	oldest := now.AddDate(0, 0, -payload.LookbackDays)
	rows, err := j.Pool.Query(ctx, `SELECT b.id, b.reference, u.name, b.period, b.due_date, b.total_amount_due,
	p.id, p.late_fee_per_day, p.grace_period_days, COALESCE(l.tenant_email, '')
FROM billing_records b
JOIN units u ON u.id = b.unit_id
JOIN properties p ON p.id = u.property_id
LEFT JOIN leases l ON l.id = u.lease_id
WHERE b.due_date < $1 AND b.due_date >= $2 AND b.settled_at IS NULL
ORDER BY b.due_date, b.id`, now, oldest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []overdueRecord
	for rows.Next() {
		var rec overdueRecord
		if err := rows.Scan(&rec.BillingID, &rec.Reference, &rec.UnitName, &rec.Period, &rec.DueDate, &rec.TotalAmountDue,
			&rec.PropertyID, &rec.LateFeePerDay, &rec.GracePeriodDays, &rec.TenantEmail); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// remind enqueues a reminder email unless one already went out today for the
// same billing record. Reports whether a reminder was sent.
func (j *OverdueScanJob) remind(ctx context.Context, rec overdueRecord, fee float64, now time.Time) bool {
	if j.Dedup == nil || j.Enqueuer == nil || rec.TenantEmail == "" {
		return false
	}
	key := fmt.Sprintf("overdue:%d:%s", rec.BillingID, now.Format("2006-01-02"))
	if err := j.Dedup.CheckAndInsert(ctx, key, "billing-reminders"); err != nil {
		if !errors.Is(err, shared.ErrIdempotencyConflict) {
			j.logger().Warn("reminder dedup", slog.Any("error", err))
		}
		return false
	}
	payload := SendEmailPayload{
		To:      rec.TenantEmail,
		Subject: fmt.Sprintf("Overdue rent statement %s for %s", rec.Reference, rec.Period),
		Body: fmt.Sprintf("Unit %s has an unpaid balance of %.2f for %s, due %s. Accrued late fee to date: %.2f.",
			rec.UnitName, rec.TotalAmountDue, rec.Period, rec.DueDate.Format("2006-01-02"), fee),
	}
	if _, err := j.Enqueuer.EnqueueSendEmail(ctx, payload); err != nil {
		// Roll the key back so the next run retries the reminder.
		if delErr := j.Dedup.Delete(ctx, key); delErr != nil {
			j.logger().Warn("reminder dedup rollback", slog.Any("error", delErr))
		}
		j.logger().Warn("enqueue reminder", slog.Int64("billing_id", rec.BillingID), slog.Any("error", err))
		return false
	}
	return true
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBillingOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskBillingOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
