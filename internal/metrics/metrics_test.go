package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	m := Init(true)
	require.NotNil(t, m)

	metrics, ok := m.(*Metrics)
	require.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.ClientsRegisteredTotal)
	assert.NotNil(t, metrics.TokensIssuedTotal)
	assert.NotNil(t, metrics.HTTPRequestsTotal)

	assert.Same(t, metrics, Init(true), "metrics are registered once")
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")

	// Every method is callable.
	m.RecordClientRegistered(true)
	m.RecordAuthCodeIssued(true)
	m.RecordAuthCodeExchange("success")
	m.RecordTokenIssued("access", "authorization_code", time.Millisecond)
	m.RecordTokenRefresh(false)
	m.RecordTokenValidation("valid", time.Millisecond)
	m.RecordImpersonation(true, time.Millisecond)
	m.RecordCleanup("clients", 3)
	m.SetClientsCount(1)
	m.SetActiveAuthCodesCount(1)
	m.SetActiveRefreshTokensCount(1)
	m.RecordDatabaseQueryError("count_clients")
}

func TestRecordTokenIssued(t *testing.T) {
	m := Init(true).(*Metrics)

	access := m.TokensIssuedTotal.WithLabelValues("access", "authorization_code")
	before := testutil.ToFloat64(access)

	m.SetActiveRefreshTokensCount(10)
	m.RecordTokenIssued("access", "authorization_code", 2*time.Millisecond)
	m.RecordTokenIssued("refresh", "authorization_code", 3*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(access))
	assert.Equal(t, float64(11), testutil.ToFloat64(m.RefreshTokensActive))
}

func TestRecordTokenRefresh(t *testing.T) {
	m := Init(true).(*Metrics)

	m.SetActiveRefreshTokensCount(5)
	success := m.TokensRefreshedTotal.WithLabelValues("success")
	failed := m.TokensRefreshedTotal.WithLabelValues("error")
	beforeSuccess, beforeFailed := testutil.ToFloat64(success), testutil.ToFloat64(failed)

	m.RecordTokenRefresh(true)
	m.RecordTokenRefresh(false)

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(success))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.RefreshTokensActive), "rotation revokes the old token")
}

func TestRecordAuthCodes(t *testing.T) {
	m := Init(true).(*Metrics)

	m.SetActiveAuthCodesCount(0)
	m.RecordAuthCodeIssued(true)
	m.RecordAuthCodeIssued(true)
	m.RecordAuthCodeIssued(false)
	m.RecordAuthCodeExchange("success")
	m.RecordAuthCodeExchange("pkce_failed")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthCodesActive))
}

func TestRecordCleanup(t *testing.T) {
	m := Init(true).(*Metrics)

	counter := m.CleanupDeletedTotal.WithLabelValues("refresh_tokens")
	before := testutil.ToFloat64(counter)
	m.RecordCleanup("refresh_tokens", 4)
	m.RecordCleanup("refresh_tokens", 0)
	assert.Equal(t, before+4, testutil.ToFloat64(counter))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Init(true).(*Metrics)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/oauth/client/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	routed := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/oauth/client/:id", "200")
	unknown := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unknown", "404")
	self := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	beforeRouted, beforeUnknown, beforeSelf := testutil.ToFloat64(routed),
		testutil.ToFloat64(unknown), testutil.ToFloat64(self)

	for _, path := range []string{"/oauth/client/abc", "/oauth/client/def", "/nope", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, beforeRouted+2, testutil.ToFloat64(routed), "labels use the route pattern")
	assert.Equal(t, beforeUnknown+1, testutil.ToFloat64(unknown))
	assert.Equal(t, beforeSelf, testutil.ToFloat64(self), "/metrics is not recorded")
	assert.Equal(t, float64(0), testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestHTTPMetricsMiddleware_Noop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(NewNoopMetrics()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		fullPath string
		expected string
	}{
		{"empty path", "", "unknown"},
		{"root path", "/", "/"},
		{"health check", "/health", "/health"},
		{"token endpoint", "/oauth/token", "/oauth/token"},
		{"parameterized", "/oauth/client/:id", "/oauth/client/:id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePath(tt.fullPath))
		})
	}
}
