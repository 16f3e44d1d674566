package metrics

import (
	"context"
	"time"

	"github.com/go-authgate/agentgate/internal/cache"
)

// metricsStore defines the database operations needed by CacheWrapper.
// *store.Store satisfies it; tests use a small fake.
type metricsStore interface {
	CountClients(ctx context.Context) (int64, error)
	CountActiveAuthCodes(ctx context.Context) (int64, error)
	CountActiveRefreshTokens(ctx context.Context) (int64, error)
}

// CacheWrapper provides a read-through cache for gauge counts so that
// several replicas sharing a Redis cache do not all run the same COUNT
// queries every interval.
type CacheWrapper struct {
	store metricsStore
	cache cache.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store metricsStore, cache cache.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetClientsCount retrieves the number of registered clients.
func (m *CacheWrapper) GetClientsCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, "clients:total", ttl, m.store.CountClients)
}

// GetActiveAuthCodesCount retrieves the number of redeemable authorization codes.
func (m *CacheWrapper) GetActiveAuthCodesCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return m.getCountWithCache(ctx, "codes:active", ttl, m.store.CountActiveAuthCodes)
}

// GetActiveRefreshTokensCount retrieves the number of active refresh tokens.
func (m *CacheWrapper) GetActiveRefreshTokensCount(
	ctx context.Context,
	ttl time.Duration,
) (int64, error) {
	return m.getCountWithCache(ctx, "refresh_tokens:active", ttl, m.store.CountActiveRefreshTokens)
}

// getCountWithCache retrieves a count using the cache-aside pattern.
func (m *CacheWrapper) getCountWithCache(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(context.Context) (int64, error),
) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		key,
		ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return fetchFunc(ctx)
		},
	)
}

// UpdateGauges refreshes every gauge from the (cached) counts. Query
// failures are counted and leave the previous gauge value in place.
func UpdateGauges(ctx context.Context, r Recorder, w *CacheWrapper, ttl time.Duration) {
	if count, err := w.GetClientsCount(ctx, ttl); err != nil {
		r.RecordDatabaseQueryError("count_clients")
	} else {
		r.SetClientsCount(int(count))
	}

	if count, err := w.GetActiveAuthCodesCount(ctx, ttl); err != nil {
		r.RecordDatabaseQueryError("count_auth_codes")
	} else {
		r.SetActiveAuthCodesCount(int(count))
	}

	if count, err := w.GetActiveRefreshTokensCount(ctx, ttl); err != nil {
		r.RecordDatabaseQueryError("count_refresh_tokens")
	} else {
		r.SetActiveRefreshTokensCount(int(count))
	}
}
