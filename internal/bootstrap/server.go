package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-authgate/agentgate/internal/cache"
	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"
	"github.com/go-authgate/agentgate/internal/services"
	"github.com/go-authgate/agentgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	serverShutdownTimeout = 5 * time.Second
	cleanupRunTimeout     = time.Minute
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			log.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Fatal("Failed to start server")
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Server forced to shutdown")
			return err
		}

		log.Info("Server exited")
		return nil
	})
}

// addCleanupJob sweeps expired codes, dead refresh tokens and inactive
// clients at startup and then every CLEANUP_INTERVAL
func addCleanupJob(m *graceful.Manager, cfg *config.Config, cleanup *services.CleanupService) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()

		runCleanup(ctx, cleanup)
		for {
			select {
			case <-ticker.C:
				runCleanup(ctx, cleanup)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// runCleanup runs one sweep; a failed sweep is retried on the next tick.
func runCleanup(ctx context.Context, cleanup *services.CleanupService) {
	ctx, cancel := context.WithTimeout(ctx, cleanupRunTimeout)
	defer cancel()

	if _, err := cleanup.Run(ctx); err != nil {
		log.WithError(err).Error("Cleanup run failed")
	}
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db *store.Store,
	recorder metrics.Recorder,
	metricsCache cache.Cache[int64],
) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled || metricsCache == nil {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		// The cache TTL matches the interval so replicas share one query per tick.
		wrapper := metrics.NewCacheWrapper(db, metricsCache)
		metrics.UpdateGauges(ctx, recorder, wrapper, cfg.MetricsGaugeUpdateInterval)

		for {
			select {
			case <-ticker.C:
				metrics.UpdateGauges(ctx, recorder, wrapper, cfg.MetricsGaugeUpdateInterval)
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Error("Error closing Redis client")
			return err
		}
		log.Info("Redis connection closed")
		return nil
	})
}

// addCacheCleanupJob adds cache cleanup on shutdown
func addCacheCleanupJob(m *graceful.Manager, metricsCacheCloser func() error) {
	if metricsCacheCloser == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := metricsCacheCloser(); err != nil {
			log.WithError(err).Error("Error closing metrics cache")
		} else {
			log.Info("Metrics cache closed")
		}
		return nil
	})
}

// addDatabaseShutdownJob closes the connection pool on shutdown
func addDatabaseShutdownJob(m *graceful.Manager, db *store.Store) {
	m.AddShutdownJob(func() error {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
			return err
		}
		log.Info("Database closed")
		return nil
	})
}
