package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(t *testing.T, cfg RateLimitConfig) *gin.Engine {
	t.Helper()
	limiter, err := NewRateLimiter(cfg)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/oauth/token", limiter, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func postFrom(router http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_MemoryStore(t *testing.T) {
	router := limitedRouter(t, RateLimitConfig{
		RequestsPerMinute: 3,
		Endpoint:          "token",
		StoreType:         RateLimitStoreMemory,
		CleanupInterval:   time.Minute,
	})

	for i := range 3 {
		w := postFrom(router, "192.0.2.10")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := postFrom(router, "192.0.2.10")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.NotEmpty(t, body["error_description"])

	// Another client has its own budget.
	assert.Equal(t, http.StatusOK, postFrom(router, "192.0.2.11").Code)
}

func TestRateLimiter_RedisStoreSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := RateLimitConfig{
		RequestsPerMinute: 2,
		Endpoint:          "token",
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
	}
	instanceA := limitedRouter(t, cfg)
	instanceB := limitedRouter(t, cfg)

	assert.Equal(t, http.StatusOK, postFrom(instanceA, "192.0.2.20").Code)
	assert.Equal(t, http.StatusOK, postFrom(instanceB, "192.0.2.20").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(instanceA, "192.0.2.20").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(instanceB, "192.0.2.20").Code)
}

func TestRateLimiter_EndpointsHaveSeparateCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	register := limitedRouter(t, RateLimitConfig{
		RequestsPerMinute: 1,
		Endpoint:          "register",
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
	})
	token := limitedRouter(t, RateLimitConfig{
		RequestsPerMinute: 1,
		Endpoint:          "token",
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
	})

	assert.Equal(t, http.StatusOK, postFrom(register, "192.0.2.30").Code)
	assert.Equal(t, http.StatusOK, postFrom(token, "192.0.2.30").Code)
	assert.Equal(t, http.StatusTooManyRequests, postFrom(register, "192.0.2.30").Code)
}

func TestNewRateLimiter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  RateLimitConfig
	}{
		{"zero limit", RateLimitConfig{RequestsPerMinute: 0}},
		{"redis without client", RateLimitConfig{RequestsPerMinute: 5, StoreType: RateLimitStoreRedis}},
		{"unknown store", RateLimitConfig{RequestsPerMinute: 5, StoreType: "etcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := NewRateLimiter(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, limiter)
		})
	}
}
