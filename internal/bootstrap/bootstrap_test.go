package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/identity"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/services"
	"github.com/go-authgate/agentgate/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServerAddr:               ":0",
		LogLevel:                 "info",
		Issuer:                   "https://auth.example.com",
		Audience:                 "family-todo-mcp",
		FrontendURL:              "https://app.example.com",
		DatabaseDriver:           "sqlite",
		DatabaseDSN:              filepath.Join(dir, "oauth.db"),
		DBInitTimeout:            5 * time.Second,
		KeyPath:                  filepath.Join(dir, "keys"),
		AuthCodeExpiration:       10 * time.Minute,
		AccessTokenExpiration:    time.Hour,
		RefreshTokenExpiration:   720 * time.Hour,
		CleanupInterval:          time.Hour,
		ClientInactiveDays:       30,
		IdentityTimeout:          time.Second,
		ImpersonateDuration:      time.Hour,
		CORSAllowedOrigins:       []string{"*"},
		EnableRateLimit:          true,
		RateLimitStore:           config.RateLimitStoreMemory,
		RateLimitCleanupInterval: time.Minute,
		RegisterRateLimit:        10,
		AuthorizeRateLimit:       30,
		TokenRateLimit:           30,
		MetricsCacheType:         config.MetricsCacheTypeMemory,
		CacheInitTimeout:         time.Second,
	}
}

func TestValidateConfiguration(t *testing.T) {
	assert.NoError(t, validateConfiguration(testConfig(t)))

	cfg := testConfig(t)
	cfg.TokenRateLimit = 0
	err := validateConfiguration(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_RATE_LIMIT")

	cfg.EnableRateLimit = false
	assert.NoError(t, validateConfiguration(cfg))

	cfg = testConfig(t)
	cfg.Issuer = "not-a-url"
	err = validateConfiguration(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OAUTH_ISSUER")
}

func TestSetupRateLimiting(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.EnableRateLimit = false
		limiters, err := setupRateLimiting(cfg, nil)
		require.NoError(t, err)
		assert.NotNil(t, limiters.register)
		assert.NotNil(t, limiters.authorize)
		assert.NotNil(t, limiters.token)
	})

	t.Run("memory", func(t *testing.T) {
		limiters, err := setupRateLimiting(testConfig(t), nil)
		require.NoError(t, err)
		assert.NotNil(t, limiters.token)
	})

	t.Run("redis without client", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RateLimitStore = config.RateLimitStoreRedis
		_, err := setupRateLimiting(cfg, nil)
		assert.Error(t, err)
	})
}

func TestInitializeRateLimitRedisClient(t *testing.T) {
	cfg := testConfig(t)
	client, err := initializeRateLimitRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, client, "memory store needs no client")

	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg.RateLimitStore = config.RateLimitStoreRedis
	cfg.RedisAddr = mr.Addr()
	client, err = initializeRateLimitRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())

	mr.Close()
	_, err = initializeRateLimitRedisClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInitializeMetricsCache(t *testing.T) {
	cfg := testConfig(t)
	c, closer, err := initializeMetricsCache(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, c, "no cache when metrics are disabled")
	assert.Nil(t, closer)

	cfg.MetricsEnabled = true
	cfg.MetricsGaugeUpdateEnabled = true
	c, closer, err = initializeMetricsCache(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NoError(t, closer())

	mr := miniredis.RunT(t)
	cfg.MetricsCacheType = config.MetricsCacheTypeRedis
	cfg.RedisAddr = mr.Addr()
	c, closer, err = initializeMetricsCache(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "clients:total", 3, time.Minute))
	assert.True(t, mr.Exists(metricsCachePrefix+"clients:total"))
	assert.NoError(t, closer())
}

func newTestApplication(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	ctx := context.Background()

	app := &Application{Config: cfg}
	var err error
	app.DB, err = initializeDatabase(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.DB.Close() })

	app.Keys, err = initializeKeys(cfg)
	require.NoError(t, err)
	app.MetricsRecorder = metrics.NewNoopMetrics()
	app.Identity = identity.NewStaticBridge(cfg.ImpersonateDuration)

	app.initializeBusinessLayer()
	require.NoError(t, app.initializeHTTPLayer())
	return app
}

func TestRouter(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApplication(t, cfg)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)
		return w
	}

	t.Run("health", func(t *testing.T) {
		w := serve(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("discovery", func(t *testing.T) {
		for _, path := range []string{
			"/.well-known/oauth-authorization-server",
			"/.well-known/oauth-protected-resource",
			"/.well-known/oauth-protected-resource/mcp",
			"/.well-known/jwks.json",
		} {
			w := serve(httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, w.Code, path)
		}
	})

	t.Run("mcp requires a bearer token", func(t *testing.T) {
		w := serve(httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}")))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t,
			`Bearer resource_metadata="https://auth.example.com/.well-known/oauth-protected-resource"`,
			w.Header().Get("WWW-Authenticate"))
	})

	t.Run("metrics disabled", func(t *testing.T) {
		w := serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/oauth/token", nil)
		req.Header.Set("Origin", "https://claude.ai")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := serve(req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("register rate limit", func(t *testing.T) {
		var last int
		for range cfg.RegisterRateLimit + 1 {
			req := httptest.NewRequest(http.MethodPost, "/oauth/register",
				strings.NewReader(`{"redirect_uris":["https://agent.example.com/cb"]}`))
			req.Header.Set("Content-Type", "application/json")
			req.RemoteAddr = "203.0.113.7:1234"
			last = serve(req).Code
		}
		assert.Equal(t, http.StatusTooManyRequests, last)
	})
}

func TestCorsMiddleware_AllowList(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORSAllowedOrigins = []string{"https://app.example.com"}

	r := gin.New()
	r.Use(corsMiddleware(cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCommands(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	require.NoError(t, err)
	client, err := services.NewClientService(db, metrics.NewNoopMetrics()).Register(ctx,
		services.RegisterClientRequest{RedirectURIs: []string{"https://agent.example.com/cb"}})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	result, err := RunCleanup(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, services.CleanupResult{}, result)

	revoked, err := RevokeTokens(ctx, cfg, client.ClientID)
	require.NoError(t, err)
	assert.Zero(t, revoked)

	require.NoError(t, DeleteClient(ctx, cfg, client.ClientID))

	err = DeleteClient(ctx, cfg, client.ClientID)
	assert.ErrorIs(t, err, services.ErrInvalidClient)

	_, err = RevokeTokens(ctx, cfg, client.ClientID)
	assert.ErrorIs(t, err, services.ErrInvalidClient)
}
