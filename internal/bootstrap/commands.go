package bootstrap

import (
	"context"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/services"
)

// RunCleanup performs a single cleanup sweep against the configured
// database and returns what it removed.
func RunCleanup(ctx context.Context, cfg *config.Config) (services.CleanupResult, error) {
	if err := validateConfiguration(cfg); err != nil {
		return services.CleanupResult{}, err
	}
	setupLogging(cfg)

	db, err := initializeDatabase(ctx, cfg)
	if err != nil {
		return services.CleanupResult{}, err
	}
	defer db.Close()

	return services.NewCleanupService(db, cfg, metrics.NewNoopMetrics()).Run(ctx)
}

// DeleteClient removes one client together with its codes and refresh tokens.
func DeleteClient(ctx context.Context, cfg *config.Config, clientID string) error {
	if err := validateConfiguration(cfg); err != nil {
		return err
	}
	setupLogging(cfg)

	db, err := initializeDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return services.NewClientService(db, metrics.NewNoopMetrics()).DeleteClient(ctx, clientID)
}

// RevokeTokens revokes every active refresh token of one client.
func RevokeTokens(ctx context.Context, cfg *config.Config, clientID string) (int64, error) {
	if err := validateConfiguration(cfg); err != nil {
		return 0, err
	}
	setupLogging(cfg)

	db, err := initializeDatabase(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return services.NewClientService(db, metrics.NewNoopMetrics()).RevokeTokens(ctx, clientID)
}
