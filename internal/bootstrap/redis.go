package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/agentgate/internal/config"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisConnTimeout = 5 * time.Second

// initializeRateLimitRedisClient initializes the go-redis client for rate
// limiting. It returns nil when limiting is disabled or kept in memory.
// ulule/limiter's Redis store is built on go-redis, not rueidis.
func initializeRateLimitRedisClient(
	ctx context.Context,
	cfg *config.Config,
) (*redis.Client, error) {
	if !cfg.EnableRateLimit || cfg.RateLimitStore != config.RateLimitStoreRedis {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, redisConnTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	log.WithFields(log.Fields{
		"addr": cfg.RedisAddr,
		"db":   cfg.RedisDB,
	}).Info("Rate limiting Redis client initialized")
	return client, nil
}
