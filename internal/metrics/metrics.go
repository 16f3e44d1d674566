package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder defines the interface for recording application metrics.
// Implementations are Metrics (Prometheus-based) and NoopMetrics.
type Recorder interface {
	// Client registry
	RecordClientRegistered(success bool)

	// Authorization codes
	RecordAuthCodeIssued(success bool)
	RecordAuthCodeExchange(result string)

	// Token operations
	RecordTokenIssued(tokenType, grantType string, generationTime time.Duration)
	RecordTokenRefresh(success bool)
	RecordTokenValidation(result string, duration time.Duration)

	// Identity bridge
	RecordImpersonation(success bool, duration time.Duration)

	// Cleanup
	RecordCleanup(kind string, deleted int64)

	// Gauge setters (for periodic updates)
	SetClientsCount(count int)
	SetActiveAuthCodesCount(count int)
	SetActiveRefreshTokensCount(count int)

	// Database operations
	RecordDatabaseQueryError(operation string)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Client Metrics
	ClientsRegisteredTotal *prometheus.CounterVec
	ClientsActive          prometheus.Gauge

	// Authorization Code Metrics
	AuthCodesIssuedTotal  *prometheus.CounterVec
	AuthCodeExchangeTotal *prometheus.CounterVec
	AuthCodesActive       prometheus.Gauge

	// Token Metrics
	TokensIssuedTotal       *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec
	RefreshTokensActive     prometheus.Gauge
	TokenGenerationDuration *prometheus.HistogramVec
	TokenValidationDuration prometheus.Histogram

	// Identity Bridge Metrics
	ImpersonationsTotal   *prometheus.CounterVec
	ImpersonationDuration prometheus.Histogram

	// Cleanup Metrics
	CleanupDeletedTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	m := &Metrics{
		// Client Metrics
		ClientsRegisteredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_clients_registered_total",
				Help: "Total number of dynamic client registrations",
			},
			[]string{"result"}, // success, error
		),
		ClientsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_clients_active",
				Help: "Current number of registered clients",
			},
		),

		// Authorization Code Metrics
		AuthCodesIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_codes_total",
				Help: "Total number of authorization codes issued",
			},
			[]string{"result"}, // success, error
		),
		AuthCodeExchangeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_code_exchange_total",
				Help: "Total number of authorization code exchanges",
			},
			[]string{"result"}, // success, invalid_code, client_mismatch, redirect_mismatch, pkce_failed
		),
		AuthCodesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_authorization_codes_active",
				Help: "Current number of unused, unexpired authorization codes",
			},
		),

		// Token Metrics
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{
				"token_type",
				"grant_type",
			}, // token_type: access, refresh; grant_type: authorization_code, refresh_token
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_refreshed_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"result"}, // success, error
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_validation_total",
				Help: "Total number of bearer token validations",
			},
			[]string{"result"}, // valid, missing, invalid, identity_failed
		),
		RefreshTokensActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "oauth_refresh_tokens_active",
				Help: "Current number of active refresh tokens",
			},
		),
		TokenGenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_token_generation_duration_seconds",
				Help:    "Time taken to generate tokens",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),
		TokenValidationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_token_validation_duration_seconds",
				Help:    "Time taken to validate bearer tokens",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Identity Bridge Metrics
		ImpersonationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_impersonations_total",
				Help: "Total number of identity bridge impersonations",
			},
			[]string{"result"}, // success, failure
		),
		ImpersonationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "identity_impersonation_duration_seconds",
				Help:    "Time taken to open an impersonated session",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Cleanup Metrics
		CleanupDeletedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_cleanup_deleted_total",
				Help: "Total number of rows removed by cleanup sweeps",
			},
			[]string{"kind"}, // authorization_codes, refresh_tokens, clients
		),

		// HTTP Request Metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		// Database Query Metrics
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"}, // count_clients, count_auth_codes, count_refresh_tokens
		),
	}

	return m
}
