package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

// Client registry - noop implementations
func (n *NoopMetrics) RecordClientRegistered(success bool) {}

// Authorization codes - noop implementations
func (n *NoopMetrics) RecordAuthCodeIssued(success bool)    {}
func (n *NoopMetrics) RecordAuthCodeExchange(result string) {}

// Token operations - noop implementations
func (n *NoopMetrics) RecordTokenIssued(
	tokenType, grantType string,
	generationTime time.Duration,
) {
}

func (n *NoopMetrics) RecordTokenRefresh(success bool) {}

func (n *NoopMetrics) RecordTokenValidation(result string, duration time.Duration) {}

// Identity bridge - noop implementation
func (n *NoopMetrics) RecordImpersonation(success bool, duration time.Duration) {}

// Cleanup - noop implementation
func (n *NoopMetrics) RecordCleanup(kind string, deleted int64) {}

// Gauge setters - noop implementations
func (n *NoopMetrics) SetClientsCount(count int)             {}
func (n *NoopMetrics) SetActiveAuthCodesCount(count int)     {}
func (n *NoopMetrics) SetActiveRefreshTokensCount(count int) {}

// Database operations - noop implementation
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
