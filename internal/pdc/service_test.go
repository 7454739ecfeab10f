package pdc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryPDCRepo struct {
	pdcs   map[int64]*PDC
	nextID int64
}

func newMemoryPDCRepo() *memoryPDCRepo {
	return &memoryPDCRepo{pdcs: make(map[int64]*PDC)}
}

func (r *memoryPDCRepo) CreatePDC(ctx context.Context, input CreatePDCInput) (*PDC, error) {
	r.nextID++
	p := &PDC{
		ID:        r.nextID,
		LeaseID:   input.LeaseID,
		Number:    input.Number,
		Amount:    input.Amount,
		Status:    StatusPending,
		CheckDate: input.CheckDate,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.pdcs[p.ID] = p
	return p, nil
}

func (r *memoryPDCRepo) GetPDC(ctx context.Context, id int64) (*PDC, error) {
	p, ok := r.pdcs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memoryPDCRepo) ListByBilling(ctx context.Context, billingID int64) ([]PDC, error) {
	return r.list(func(p *PDC) bool {
		return p.BillingID != nil && *p.BillingID == billingID
	}), nil
}

func (r *memoryPDCRepo) ListByLease(ctx context.Context, leaseID int64) ([]PDC, error) {
	return r.list(func(p *PDC) bool { return p.LeaseID == leaseID }), nil
}

// list returns checks ordered by id, matching the SQL repository.
func (r *memoryPDCRepo) list(match func(*PDC) bool) []PDC {
	var out []PDC
	for id := int64(1); id <= r.nextID; id++ {
		if p, ok := r.pdcs[id]; ok && match(p) {
			out = append(out, *p)
		}
	}
	return out
}

func (r *memoryPDCRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	p, ok := r.pdcs[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func (r *memoryPDCRepo) AttachBilling(ctx context.Context, id, billingID int64) error {
	p, ok := r.pdcs[id]
	if !ok {
		return ErrNotFound
	}
	p.BillingID = &billingID
	return nil
}

func TestSelect(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.Nil(t, Select(nil))
	})

	t.Run("pending beats cleared", func(t *testing.T) {
		got := Select([]PDC{
			{ID: 1, Status: StatusCleared},
			{ID: 2, Status: StatusPending},
		})
		require.Equal(t, int64(2), got.ID)
	})

	t.Run("cleared beats bounced", func(t *testing.T) {
		got := Select([]PDC{
			{ID: 1, Status: StatusBounced},
			{ID: 2, Status: StatusCleared},
		})
		require.Equal(t, int64(2), got.ID)
	})

	t.Run("first returned as fallback", func(t *testing.T) {
		got := Select([]PDC{
			{ID: 1, Status: StatusBounced},
			{ID: 2, Status: StatusBounced},
		})
		require.Equal(t, int64(1), got.ID)
	})

	t.Run("first pending wins among several", func(t *testing.T) {
		got := Select([]PDC{
			{ID: 1, Status: StatusPending},
			{ID: 2, Status: StatusPending},
		})
		require.Equal(t, int64(1), got.ID)
	})
}

func TestRegister(t *testing.T) {
	repo := newMemoryPDCRepo()
	svc := NewService(repo)

	p, err := svc.Register(context.Background(), CreatePDCInput{
		LeaseID:   100,
		Number:    "CHK-0001",
		Amount:    8000,
		CheckDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)

	_, err = svc.Register(context.Background(), CreatePDCInput{LeaseID: 0, Number: "CHK-0002", Amount: 8000})
	require.Error(t, err)
	_, err = svc.Register(context.Background(), CreatePDCInput{LeaseID: 100, Number: "", Amount: 8000})
	require.Error(t, err)
	_, err = svc.Register(context.Background(), CreatePDCInput{LeaseID: 100, Number: "CHK-0003", Amount: 0})
	require.Error(t, err)
}

func TestResolveForBilling(t *testing.T) {
	repo := newMemoryPDCRepo()
	svc := NewService(repo)
	ctx := context.Background()

	attached, err := svc.Register(ctx, CreatePDCInput{LeaseID: 100, Number: "CHK-0001", Amount: 8000})
	require.NoError(t, err)
	require.NoError(t, svc.Attach(ctx, attached.ID, 55))
	loose, err := svc.Register(ctx, CreatePDCInput{LeaseID: 100, Number: "CHK-0002", Amount: 6000})
	require.NoError(t, err)

	t.Run("attached check preferred", func(t *testing.T) {
		got, err := svc.ResolveForBilling(ctx, 55, 100)
		require.NoError(t, err)
		require.Equal(t, attached.ID, got.ID)
	})

	t.Run("falls back to lease", func(t *testing.T) {
		got, err := svc.ResolveForBilling(ctx, 0, 100)
		require.NoError(t, err)
		require.Equal(t, attached.ID, got.ID, "lease listing is id-ordered")
		_ = loose
	})

	t.Run("no check is a normal outcome", func(t *testing.T) {
		got, err := svc.ResolveForBilling(ctx, 0, 999)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestTransitions(t *testing.T) {
	repo := newMemoryPDCRepo()
	svc := NewService(repo)
	ctx := context.Background()

	p, err := svc.Register(ctx, CreatePDCInput{LeaseID: 100, Number: "CHK-0001", Amount: 8000})
	require.NoError(t, err)

	cleared, err := svc.MarkCleared(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCleared, cleared.Status)

	_, err = svc.MarkBounced(ctx, p.ID)
	require.ErrorIs(t, err, ErrInvalidStatus, "cleared checks cannot bounce")

	_, err = svc.MarkCleared(ctx, p.ID)
	require.ErrorIs(t, err, ErrInvalidStatus, "clearing is not repeatable")

	other, err := svc.Register(ctx, CreatePDCInput{LeaseID: 100, Number: "CHK-0002", Amount: 6000})
	require.NoError(t, err)
	bounced, err := svc.MarkBounced(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, StatusBounced, bounced.Status)
}
