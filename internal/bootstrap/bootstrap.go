package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/agentgate/internal/cache"
	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/identity"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/store"
	"github.com/go-authgate/agentgate/internal/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	Keys                 *token.KeyManager
	Identity             identity.Bridge
	MetricsRecorder      metrics.Recorder
	MetricsCache         cache.Cache[int64]
	MetricsCacheCloser   func() error
	RateLimitRedisClient *redis.Client

	// Business layer
	Services serviceSet

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	ctx := context.Background()

	// Phase 1: Validate configuration and logging
	if err := validateConfiguration(cfg); err != nil {
		return err
	}
	setupLogging(cfg)

	app := &Application{Config: cfg}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		app.closeInfrastructure()
		return err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		app.closeInfrastructure()
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up the database, keys, identity bridge,
// metrics, cache and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	// Signing keys
	app.Keys, err = initializeKeys(app.Config)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache, app.MetricsCacheCloser, err = initializeMetricsCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Identity bridge
	app.Identity, err = identity.New(app.Config, app.MetricsRecorder)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	app.Services = initializeServices(app.Config, app.DB, app.Keys, app.MetricsRecorder)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = initializeHandlers(app.Config, app.DB, app.Keys, app.Services)

	router, err := setupRouter(
		app.Config,
		app.HandlerSet,
		app.Keys,
		app.Identity,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)
	if err != nil {
		return err
	}
	app.Router = router
	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addCleanupJob(m, app.Config, app.Services.cleanup)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder, app.MetricsCache)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addCacheCleanupJob(m, app.MetricsCacheCloser)
	addDatabaseShutdownJob(m, app.DB)

	// Wait for graceful shutdown
	<-m.Done()
}

// closeInfrastructure releases whatever initializeInfrastructure managed to
// open before a startup failure.
func (app *Application) closeInfrastructure() {
	if app.RateLimitRedisClient != nil {
		_ = app.RateLimitRedisClient.Close()
	}
	if app.MetricsCacheCloser != nil {
		_ = app.MetricsCacheCloser()
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
}
