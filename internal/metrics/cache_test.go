package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-authgate/agentgate/internal/cache"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCountStore struct {
	clients, codes, refreshTokens int64
	err                           error
	calls                         int
}

func (f *fakeCountStore) CountClients(context.Context) (int64, error) {
	f.calls++
	return f.clients, f.err
}

func (f *fakeCountStore) CountActiveAuthCodes(context.Context) (int64, error) {
	f.calls++
	return f.codes, f.err
}

func (f *fakeCountStore) CountActiveRefreshTokens(context.Context) (int64, error) {
	f.calls++
	return f.refreshTokens, f.err
}

func TestCacheWrapper_CacheHit(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	store := &fakeCountStore{clients: 100}

	require.NoError(t, memCache.Set(ctx, "clients:total", 42, time.Minute))

	count, err := NewCacheWrapper(store, memCache).GetClientsCount(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.Zero(t, store.calls, "a cache hit does not touch the database")
}

func TestCacheWrapper_CacheMiss(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	store := &fakeCountStore{codes: 3, refreshTokens: 9}
	wrapper := NewCacheWrapper(store, memCache)

	codes, err := wrapper.GetActiveAuthCodesCount(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), codes)

	tokens, err := wrapper.GetActiveRefreshTokensCount(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(9), tokens)

	cached, err := memCache.Get(ctx, "refresh_tokens:active")
	require.NoError(t, err)
	assert.Equal(t, int64(9), cached)

	_, err = wrapper.GetActiveAuthCodesCount(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestCacheWrapper_DBError(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	dbErr := errors.New("connection refused")

	_, err := NewCacheWrapper(&fakeCountStore{err: dbErr}, memCache).GetClientsCount(ctx, time.Minute)
	assert.ErrorIs(t, err, dbErr)

	_, err = memCache.Get(ctx, "clients:total")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestUpdateGauges(t *testing.T) {
	ctx := context.Background()
	m := Init(true).(*Metrics)

	wrapper := NewCacheWrapper(
		&fakeCountStore{clients: 5, codes: 2, refreshTokens: 8},
		cache.NewMemoryCache[int64](),
	)
	UpdateGauges(ctx, m, wrapper, time.Minute)

	assert.Equal(t, float64(5), testutil.ToFloat64(m.ClientsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AuthCodesActive))
	assert.Equal(t, float64(8), testutil.ToFloat64(m.RefreshTokensActive))

	errCounter := m.DatabaseQueryErrorsTotal.WithLabelValues("count_clients")
	before := testutil.ToFloat64(errCounter)

	failing := NewCacheWrapper(&fakeCountStore{err: errors.New("boom")}, cache.NewMemoryCache[int64]())
	UpdateGauges(ctx, m, failing, time.Minute)

	assert.Equal(t, before+1, testutil.ToFloat64(errCounter))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.ClientsActive), "failed queries keep the last value")
}
