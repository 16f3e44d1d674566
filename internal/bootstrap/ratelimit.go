package bootstrap

import (
	"fmt"

	"github.com/go-authgate/agentgate/internal/config"
	"github.com/go-authgate/agentgate/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	register  gin.HandlerFunc
	authorize gin.HandlerFunc
	token     gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration.
// redisClient is nil unless RATE_LIMIT_STORE=redis.
func setupRateLimiting(
	cfg *config.Config,
	redisClient *redis.Client,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		log.Info("Rate limiting disabled")
		noOp := func(c *gin.Context) { c.Next() }
		return rateLimitMiddlewares{register: noOp, authorize: noOp, token: noOp}, nil
	}

	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	if storeType == middleware.RateLimitStoreRedis {
		log.Info("Rate limiting enabled (store: redis, shared across instances)")
	} else {
		log.Info("Rate limiting enabled (store: memory, single instance only)")
	}

	var firstErr error
	createLimiter := func(requestsPerMinute int, endpoint string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			Endpoint:          endpoint,
			StoreType:         storeType,
			RedisClient:       redisClient,
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to create rate limiter for %s: %w", endpoint, err)
		}
		return limiter
	}

	limiters := rateLimitMiddlewares{
		register:  createLimiter(cfg.RegisterRateLimit, "register"),
		authorize: createLimiter(cfg.AuthorizeRateLimit, "authorize"),
		token:     createLimiter(cfg.TokenRateLimit, "token"),
	}
	if firstErr != nil {
		return rateLimitMiddlewares{}, firstErr
	}
	return limiters, nil
}
