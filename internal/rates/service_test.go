package rates

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubAggregateRepo struct {
	agg      PropertyAggregates
	calls    int
	lastUpTo string
}

func (r *stubAggregateRepo) LatestAggregates(ctx context.Context, propertyID int64, upTo string) (PropertyAggregates, error) {
	r.calls++
	r.lastUpTo = upTo
	return r.agg, nil
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestResolveDerivesRates(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := &stubAggregateRepo{agg: PropertyAggregates{
		Period:      "2026-02",
		Water:       Aggregate{Total: 1000, Consumption: 40},
		Electricity: Aggregate{Total: 2200, Consumption: 200},
	}}
	svc := NewService(repo, cache)

	got, err := svc.Resolve(context.Background(), 1, "")
	require.NoError(t, err)
	require.Equal(t, 25.0, got.Water)
	require.Equal(t, 11.0, got.Electricity)
	require.Equal(t, "2026-02", got.Period)
}

func TestResolveZeroConsumptionYieldsZeroRate(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := &stubAggregateRepo{agg: PropertyAggregates{
		Period: "2026-02",
		Water:  Aggregate{Total: 1000, Consumption: 0},
	}}
	svc := NewService(repo, cache)

	got, err := svc.Resolve(context.Background(), 1, "")
	require.NoError(t, err)
	require.Equal(t, 0.0, got.Water)
	require.Equal(t, 0.0, got.Electricity)
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := &stubAggregateRepo{agg: PropertyAggregates{
		Period: "2026-02",
		Water:  Aggregate{Total: 1000, Consumption: 40},
	}}
	svc := NewService(repo, cache)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, 1, "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, 1, "")
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls, "second resolve must hit the cache")

	require.NoError(t, svc.Invalidate(ctx))
	repo.agg.Water = Aggregate{Total: 1500, Consumption: 50}

	got, err := svc.Resolve(ctx, 1, "")
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
	require.Equal(t, 30.0, got.Water)
}

func TestResolveBoundsLookupToPriorPeriod(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := &stubAggregateRepo{agg: PropertyAggregates{
		Period: "2026-02",
		Water:  Aggregate{Total: 1000, Consumption: 40},
	}}
	svc := NewService(repo, cache)
	ctx := context.Background()

	// Billing March draws statistics from February and earlier only.
	_, err := svc.Resolve(ctx, 1, "2026-03")
	require.NoError(t, err)
	require.Equal(t, "2026-02", repo.lastUpTo)

	// A different bound is a different cache key, not a stale hit.
	_, err = svc.Resolve(ctx, 1, "2026-04")
	require.NoError(t, err)
	require.Equal(t, "2026-03", repo.lastUpTo)
	require.Equal(t, 2, repo.calls)

	// Malformed period falls back to the unbounded lookup.
	_, err = svc.Resolve(ctx, 1, "03/2026")
	require.NoError(t, err)
	require.Equal(t, "", repo.lastUpTo)
}

func TestResolveWithoutCache(t *testing.T) {
	repo := &stubAggregateRepo{agg: PropertyAggregates{
		Water: Aggregate{Total: 500, Consumption: 20},
	}}
	svc := NewService(repo, nil)

	got, err := svc.Resolve(context.Background(), 1, "")
	require.NoError(t, err)
	require.Equal(t, 25.0, got.Water)
}

func TestResolveRequiresProperty(t *testing.T) {
	svc := NewService(&stubAggregateRepo{}, nil)
	_, err := svc.Resolve(context.Background(), 0, "")
	require.Error(t, err)
}
