package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
	resultFailure = "failure"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	metrics, ok := m.(*Metrics)
	if !ok {
		// NoopMetrics or unknown implementation
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		path := normalizePath(c.FullPath()) // route pattern, not actual path
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// normalizePath returns the route pattern (e.g., "/oauth/client/:id"),
// or "unknown" for unmatched requests so raw paths never become labels.
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

func resultLabel(success bool, failure string) string {
	if success {
		return resultSuccess
	}
	return failure
}

// RecordClientRegistered records a dynamic client registration
func (m *Metrics) RecordClientRegistered(success bool) {
	m.ClientsRegisteredTotal.WithLabelValues(resultLabel(success, resultError)).Inc()
	if success {
		m.ClientsActive.Inc()
	}
}

// RecordAuthCodeIssued records authorization code issuance
func (m *Metrics) RecordAuthCodeIssued(success bool) {
	m.AuthCodesIssuedTotal.WithLabelValues(resultLabel(success, resultError)).Inc()
	if success {
		m.AuthCodesActive.Inc()
	}
}

// RecordAuthCodeExchange records the outcome of an authorization code exchange
func (m *Metrics) RecordAuthCodeExchange(result string) {
	m.AuthCodeExchangeTotal.WithLabelValues(result).Inc()
	if result == resultSuccess {
		m.AuthCodesActive.Dec()
	}
}

// RecordTokenIssued records token issuance
func (m *Metrics) RecordTokenIssued(tokenType, grantType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
	m.TokenGenerationDuration.WithLabelValues(grantType).Observe(generationTime.Seconds())
	if tokenType == "refresh" {
		m.RefreshTokensActive.Inc()
	}
}

// RecordTokenRefresh records a refresh token rotation attempt
func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(resultLabel(success, resultError)).Inc()
	if success {
		// the presented token was revoked by the rotation
		m.RefreshTokensActive.Dec()
	}
}

// RecordTokenValidation records a bearer token validation
func (m *Metrics) RecordTokenValidation(result string, duration time.Duration) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
	m.TokenValidationDuration.Observe(duration.Seconds())
}

// RecordImpersonation records an identity bridge call
func (m *Metrics) RecordImpersonation(success bool, duration time.Duration) {
	m.ImpersonationsTotal.WithLabelValues(resultLabel(success, resultFailure)).Inc()
	m.ImpersonationDuration.Observe(duration.Seconds())
}

// RecordCleanup records rows removed by one cleanup sweep
func (m *Metrics) RecordCleanup(kind string, deleted int64) {
	m.CleanupDeletedTotal.WithLabelValues(kind).Add(float64(deleted))
}

// SetClientsCount sets the current number of registered clients (for periodic updates)
func (m *Metrics) SetClientsCount(count int) {
	m.ClientsActive.Set(float64(count))
}

// SetActiveAuthCodesCount sets the current number of redeemable codes (for periodic updates)
func (m *Metrics) SetActiveAuthCodesCount(count int) {
	m.AuthCodesActive.Set(float64(count))
}

// SetActiveRefreshTokensCount sets the current number of active refresh tokens (for periodic updates)
func (m *Metrics) SetActiveRefreshTokensCount(count int) {
	m.RefreshTokensActive.Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
