package pricestore

import (
	"context"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/pkg/logger"
	"github.com/wonny/zscreen/pkg/redis"
)

// CachedStore serves series from Redis before falling back to the inner store.
// A series stays cached for ttl, so every date of a batch run sees the same
// snapshot even if the underlying files are refreshed mid-run.
type CachedStore struct {
	inner  contracts.PriceStore
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedStore wraps inner with cache
func NewCachedStore(inner contracts.PriceStore, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedStore{inner: inner, cache: cache, ttl: ttl, logger: log.WithField("module", "price_cache")}
}

// GetSeries returns the cached series or loads and caches it.
// Cache errors are logged and never fail the lookup.
func (s *CachedStore) GetSeries(ctx context.Context, symbol string) (*contracts.SymbolSeries, error) {
	key := redis.SeriesKey(symbol)

	var cached contracts.SymbolSeries
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithSymbol(symbol).Warn("Series cache read failed")
	}
	if hit {
		return &cached, nil
	}

	series, err := s.inner.GetSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, series, s.ttl); err != nil {
		s.logger.WithError(err).WithSymbol(symbol).Warn("Series cache write failed")
	}
	return series, nil
}

// GetUniverse is not cached
func (s *CachedStore) GetUniverse(ctx context.Context, asOf time.Time) ([]string, error) {
	return s.inner.GetUniverse(ctx, asOf)
}
