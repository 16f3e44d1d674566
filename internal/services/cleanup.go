package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/store"

	log "github.com/sirupsen/logrus"
)

// CleanupResult counts the rows removed by one cleanup run.
type CleanupResult struct {
	Codes         int64 `json:"codes"`
	RefreshTokens int64 `json:"refresh_tokens"`
	Clients       int64 `json:"clients"`
}

// CleanupService removes expired codes, dead refresh tokens and inactive
// clients. Every sweep is idempotent.
type CleanupService struct {
	store   *store.Store
	config  *config.Config
	metrics metrics.Recorder
}

func NewCleanupService(s *store.Store, cfg *config.Config, m metrics.Recorder) *CleanupService {
	return &CleanupService{store: s, config: cfg, metrics: m}
}

// Run executes the three sweeps. A failing sweep does not stop the others;
// their errors are joined.
func (s *CleanupService) Run(ctx context.Context) (CleanupResult, error) {
	start := time.Now()
	var (
		result CleanupResult
		errs   []error
	)

	codes, err := s.store.CleanupExpiredCodes(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("authorization codes: %w", err))
	}
	result.Codes = codes

	tokens, err := s.store.CleanupExpiredRefreshTokens(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("refresh tokens: %w", err))
	}
	result.RefreshTokens = tokens

	clients, err := s.store.CleanupInactiveClients(ctx, s.config.ClientInactiveDays)
	if err != nil {
		errs = append(errs, fmt.Errorf("inactive clients: %w", err))
	}
	result.Clients = clients

	s.metrics.RecordCleanup("authorization_codes", result.Codes)
	s.metrics.RecordCleanup("refresh_tokens", result.RefreshTokens)
	s.metrics.RecordCleanup("clients", result.Clients)

	entry := log.WithFields(log.Fields{
		"codes":          result.Codes,
		"refresh_tokens": result.RefreshTokens,
		"clients":        result.Clients,
		"duration":       time.Since(start).String(),
	})
	if err := errors.Join(errs...); err != nil {
		entry.WithError(err).Error("OAuth cleanup finished with errors")
		return result, err
	}
	if result != (CleanupResult{}) {
		entry.Info("OAuth cleanup removed stale credentials")
	} else {
		entry.Debug("OAuth cleanup found nothing to remove")
	}
	return result, nil
}
