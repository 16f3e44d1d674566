package bootstrap

import (
	"net/http"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/handlers"
	"github.com/go-authgate/agentgate/internal/store"
	"github.com/go-authgate/agentgate/internal/token"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	discovery *handlers.DiscoveryHandler
	client    *handlers.ClientHandler
	authorize *handlers.AuthorizeHandler
	token     *handlers.TokenHandler
	health    *handlers.HealthHandler
	mcp       http.Handler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	db *store.Store,
	keys *token.KeyManager,
	svc serviceSet,
) handlerSet {
	return handlerSet{
		discovery: handlers.NewDiscoveryHandler(cfg, keys),
		client:    handlers.NewClientHandler(svc.client),
		authorize: handlers.NewAuthorizeHandler(svc.authorization),
		token:     handlers.NewTokenHandler(svc.token),
		health:    handlers.NewHealthHandler(db),
		mcp:       handlers.NewMCPHandler(),
	}
}
