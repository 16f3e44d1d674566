package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/agentgate/internal/cache"
	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/metrics"

	log "github.com/sirupsen/logrus"
)

const metricsCachePrefix = "agentgate:metrics:"

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Info("Prometheus metrics initialized")
	} else {
		log.Info("Metrics disabled (using noop implementation)")
	}
	return recorder
}

// initializeMetricsCache initializes the gauge count cache. It returns nil
// when gauges are not collected.
func initializeMetricsCache(
	ctx context.Context,
	cfg *config.Config,
) (cache.Cache[int64], func() error, error) {
	if !cfg.MetricsEnabled || !cfg.MetricsGaugeUpdateEnabled {
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CacheInitTimeout)
	defer cancel()

	var metricsCache cache.Cache[int64]

	switch cfg.MetricsCacheType {
	case config.MetricsCacheTypeRedisAside:
		c, err := cache.NewRueidisAsideCache[int64](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			metricsCachePrefix,
			cfg.MetricsCacheClientTTL,
			cfg.MetricsCacheSizePerConn,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis-aside metrics cache: %w", err)
		}
		log.WithFields(log.Fields{
			"addr":                cfg.RedisAddr,
			"db":                  cfg.RedisDB,
			"client_ttl":          cfg.MetricsCacheClientTTL,
			"cache_size_per_conn": cfg.MetricsCacheSizePerConn,
		}).Info("Metrics cache: redis-aside")
		metricsCache = c

	case config.MetricsCacheTypeRedis:
		c, err := cache.NewRueidisCache[int64](
			ctx,
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			metricsCachePrefix,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis metrics cache: %w", err)
		}
		log.WithFields(log.Fields{"addr": cfg.RedisAddr, "db": cfg.RedisDB}).Info("Metrics cache: redis")
		metricsCache = c

	default: // memory
		metricsCache = cache.NewMemoryCache[int64]()
		log.Info("Metrics cache: memory (single instance only)")
	}

	return metricsCache, metricsCache.Close, nil
}
