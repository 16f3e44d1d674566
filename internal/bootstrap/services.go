package bootstrap

import (
	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/services"
	"github.com/go-authgate/agentgate/internal/store"
	"github.com/go-authgate/agentgate/internal/token"
)

// serviceSet holds the business services
type serviceSet struct {
	client        *services.ClientService
	authorization *services.AuthorizationService
	token         *services.TokenService
	cleanup       *services.CleanupService
}

// initializeServices creates all business logic services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	keys *token.KeyManager,
	recorder metrics.Recorder,
) serviceSet {
	return serviceSet{
		client:        services.NewClientService(db, recorder),
		authorization: services.NewAuthorizationService(db, cfg, recorder),
		token:         services.NewTokenService(db, keys, cfg, recorder),
		cleanup:       services.NewCleanupService(db, cfg, recorder),
	}
}
