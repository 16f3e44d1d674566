package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/store"
	"github.com/go-authgate/agentgate/internal/token"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	// Create timeout context for this specific operation
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// initializeKeys loads or generates the RS256 signing key pair
func initializeKeys(cfg *config.Config) (*token.KeyManager, error) {
	keys := token.NewKeyManager(token.KeyOptions{
		PrivateKeyPEM: cfg.PrivateKeyPEM,
		Path:          cfg.KeyPath,
	})
	if err := keys.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	return keys, nil
}
