package bootstrap

import (
	"fmt"
	"os"

	"github.com/go-authgate/agentgate/internal/config"

	log "github.com/sirupsen/logrus"
)

// validateConfiguration validates all configuration settings
func validateConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateRateLimitConfig(cfg); err != nil {
		return fmt.Errorf("invalid rate limit configuration: %w", err)
	}
	return nil
}

// validateRateLimitConfig checks the per-endpoint budgets when limiting is on
func validateRateLimitConfig(cfg *config.Config) error {
	if !cfg.EnableRateLimit {
		return nil
	}
	limits := []struct {
		name  string
		value int
	}{
		{"REGISTER_RATE_LIMIT", cfg.RegisterRateLimit},
		{"AUTHORIZE_RATE_LIMIT", cfg.AuthorizeRateLimit},
		{"TOKEN_RATE_LIMIT", cfg.TokenRateLimit},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("%s must be positive when ENABLE_RATE_LIMIT=true, got %d", l.name, l.value)
		}
	}
	return nil
}

// setupLogging configures logrus: JSON in production, text otherwise
func setupLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)
	if cfg.IsProduction {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, falling back to info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
