package bootstrap

import (
	"time"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/identity"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/middleware"
	"github.com/go-authgate/agentgate/internal/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const protectedResourcePath = "/.well-known/oauth-protected-resource"

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	h handlerSet,
	keys *token.KeyManager,
	bridge identity.Bridge,
	recorder metrics.Recorder,
	rateLimitRedisClient *redis.Client,
) (*gin.Engine, error) {
	setupGinMode(cfg)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(corsMiddleware(cfg))

	// Health check endpoint
	r.GET("/health", h.health.Health)

	setupMetricsEndpoint(r, cfg)

	rateLimiters, err := setupRateLimiting(cfg, rateLimitRedisClient)
	if err != nil {
		return nil, err
	}

	// Discovery
	wellKnown := r.Group("/.well-known")
	{
		wellKnown.GET("/oauth-authorization-server", h.discovery.Metadata)
		wellKnown.GET("/oauth-protected-resource", h.discovery.ProtectedResource)
		wellKnown.GET("/oauth-protected-resource/mcp", h.discovery.ProtectedResource)
		wellKnown.GET("/jwks.json", h.discovery.JWKS)
	}

	// OAuth API
	oauth := r.Group("/oauth")
	{
		oauth.POST("/register", rateLimiters.register, h.client.Register)
		oauth.GET("/client/:id", h.client.ClientInfo)
		oauth.POST("/authorize", rateLimiters.authorize, h.authorize.Authorize)
		oauth.POST("/token", rateLimiters.token, h.token.Token)
	}

	// Protected MCP resource
	bearer := middleware.BearerAuth(middleware.BearerConfig{
		Verifier:            keys,
		Bridge:              bridge,
		Issuer:              cfg.Issuer,
		Audience:            cfg.Audience,
		ResourceMetadataURL: cfg.Issuer + protectedResourcePath,
		Metrics:             recorder,
	})
	mcpHandler := gin.WrapH(h.mcp)
	r.GET("/mcp", bearer, mcpHandler)
	r.POST("/mcp", bearer, mcpHandler)
	r.DELETE("/mcp", bearer, mcpHandler)

	logServerStartup(cfg)

	return r, nil
}

// corsMiddleware lets browser-based MCP clients reach the OAuth and MCP
// endpoints and read the WWW-Authenticate challenge.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Authorization",
			"Content-Type",
			"Accept",
			"Mcp-Session-Id",
			"Mcp-Protocol-Version",
		},
		ExposeHeaders: []string{"WWW-Authenticate", "Mcp-Session-Id"},
		MaxAge:        12 * time.Hour,
	}

	if len(cfg.CORSAllowedOrigins) == 0 ||
		(len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	return cors.New(corsConfig)
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Info("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Info("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Warn("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
		return
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
	}
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.WithFields(log.Fields{
		"addr":     cfg.ServerAddr,
		"issuer":   cfg.Issuer,
		"audience": cfg.Audience,
		"resource": cfg.ResourceURL(),
	}).Info("AgentGate authorization server configured")
	log.Infof("Consent UI: %s/oauth/authorize", cfg.FrontendURL)
}
