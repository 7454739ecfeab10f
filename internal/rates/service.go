package rates

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/rentledger/rentledger/internal/shared"
)

// RepositoryPort reads trailing billing aggregates for a property. upTo
// bounds the lookup to periods at or before the given key; empty means the
// latest period on file.
type RepositoryPort interface {
	LatestAggregates(ctx context.Context, propertyID int64, upTo string) (PropertyAggregates, error)
}

// Rates is the resolved per-unit rate pair for a property.
type Rates struct {
	Water       float64 `json:"water"`
	Electricity float64 `json:"electricity"`
	Period      string  `json:"period"`
}

// Service resolves submetered utility rates from property billing history.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
}

// NewService builds Service instance. Cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Resolve derives per-unit rates for billing the given period. Statistics
// come from the most recent period before it, so rows for the period being
// billed never feed their own rates. An empty or malformed period falls back
// to the latest period on file. A property with no consumption history
// resolves to zero rates; that is a valid result, not an error.
func (s *Service) Resolve(ctx context.Context, propertyID int64, period string) (Rates, error) {
	if propertyID == 0 {
		return Rates{}, errors.New("property ID required")
	}
	upTo := ""
	if p, err := shared.ParsePeriod(period); err == nil {
		upTo = shared.PreviousPeriod(p)
	}
	bound := upTo
	if bound == "" {
		bound = "latest"
	}
	key, err := s.cache.BuildKey(ctx, "rates", "property", strconv.FormatInt(propertyID, 10), bound)
	if err != nil {
		return Rates{}, err
	}
	var out Rates
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.group.Do(key, func() (interface{}, error) {
			agg, err := s.repo.LatestAggregates(ctx, propertyID, upTo)
			if err != nil {
				return nil, err
			}
			return Rates{
				Water:       rate(agg.Water),
				Electricity: rate(agg.Electricity),
				Period:      agg.Period,
			}, nil
		})
		return v, err
	})
	if err != nil {
		return Rates{}, err
	}
	return out, nil
}

// Invalidate bumps the cache after billing history changes.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func rate(a Aggregate) float64 {
	if a.Consumption <= 0 {
		return 0
	}
	return a.Total / a.Consumption
}
