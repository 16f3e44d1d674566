package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Metrics cache constants
const (
	MetricsCacheTypeMemory     = "memory"
	MetricsCacheTypeRedis      = "redis"
	MetricsCacheTypeRedisAside = "redis-aside"
)

// Scope is the only scope this server grants.
const Scope = "mcp:tools"

type Config struct {
	// Server settings
	ServerAddr   string
	IsProduction bool
	LogLevel     string

	// OAuth issuer settings
	Issuer      string // Public base URL of this server, used as "iss"
	Audience    string // "aud" of issued access tokens
	FrontendURL string // Hosts the consent UI (authorization_endpoint)

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)
	DBInitTimeout  time.Duration

	// Signing keys
	KeyPath       string // Directory holding private.pem / public.pem
	PrivateKeyPEM string // Overrides KeyPath when set

	// Credential lifetimes
	AuthCodeExpiration     time.Duration // default: 10m
	AccessTokenExpiration  time.Duration // default: 1h
	RefreshTokenExpiration time.Duration // default: 720h = 30 days

	// Cleanup
	CleanupInterval    time.Duration
	ClientInactiveDays int

	// Identity bridge (PocketBase)
	PocketBaseURL           string
	PocketBaseAdminEmail    string
	PocketBaseAdminPassword string
	IdentityTimeout         time.Duration
	IdentityMaxRetries      int
	IdentityRetryDelay      time.Duration
	ImpersonateDuration     time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	RateLimitCleanupInterval time.Duration
	RegisterRateLimit        int // requests per minute
	AuthorizeRateLimit       int
	TokenRateLimit           int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration
	MetricsCacheType           string // "memory", "redis" or "redis-aside"
	MetricsCacheClientTTL      time.Duration
	MetricsCacheSizePerConn    int // MB, redis-aside only
	CacheInitTimeout           time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("OAUTH_DB_PATH", "./data/oauth.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":3001"),
		IsProduction: getEnv("ENVIRONMENT", "development") == "production",
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		Issuer:      strings.TrimRight(getEnv("OAUTH_ISSUER", "http://localhost:3001"), "/"),
		Audience:    getEnv("OAUTH_AUDIENCE", "family-todo-mcp"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:4321"), "/"),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),

		KeyPath:       getEnv("OAUTH_KEY_PATH", "./data/oauth-keys"),
		PrivateKeyPEM: os.Getenv("OAUTH_RSA_PRIVATE_KEY"),

		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 10*time.Minute),
		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour),

		CleanupInterval:    getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		ClientInactiveDays: getEnvInt("CLIENT_INACTIVE_DAYS", 30),

		PocketBaseURL:           strings.TrimRight(getEnv("POCKETBASE_URL", ""), "/"),
		PocketBaseAdminEmail:    getEnv("POCKETBASE_ADMIN_EMAIL", ""),
		PocketBaseAdminPassword: getEnv("POCKETBASE_ADMIN_PASSWORD", ""),
		IdentityTimeout:         getEnvDuration("IDENTITY_TIMEOUT", 5*time.Second),
		IdentityMaxRetries:      getEnvInt("IDENTITY_MAX_RETRIES", 2),
		IdentityRetryDelay:      getEnvDuration("IDENTITY_RETRY_DELAY", 200*time.Millisecond),
		ImpersonateDuration:     getEnvDuration("IMPERSONATE_DURATION", time.Hour),

		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		RegisterRateLimit:        getEnvInt("REGISTER_RATE_LIMIT", 10),
		AuthorizeRateLimit:       getEnvInt("AUTHORIZE_RATE_LIMIT", 30),
		TokenRateLimit:           getEnvInt("TOKEN_RATE_LIMIT", 30),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),
		MetricsCacheType:           getEnv("METRICS_CACHE_TYPE", MetricsCacheTypeMemory),
		MetricsCacheClientTTL:      getEnvDuration("METRICS_CACHE_CLIENT_TTL", 30*time.Second),
		MetricsCacheSizePerConn:    getEnvInt("METRICS_CACHE_SIZE_PER_CONN", 32),
		CacheInitTimeout:           getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
	}
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be: sqlite, postgres)", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}

	if err := validateAbsoluteURL("OAUTH_ISSUER", c.Issuer); err != nil {
		return err
	}
	if err := validateAbsoluteURL("FRONTEND_URL", c.FrontendURL); err != nil {
		return err
	}
	if c.Audience == "" {
		return errors.New("OAUTH_AUDIENCE must not be empty")
	}

	if c.AuthCodeExpiration <= 0 || c.AccessTokenExpiration <= 0 || c.RefreshTokenExpiration <= 0 {
		return errors.New("credential expirations must be positive durations")
	}
	if c.ClientInactiveDays <= 0 {
		return fmt.Errorf("CLIENT_INACTIVE_DAYS must be positive, got %d", c.ClientInactiveDays)
	}
	if c.CleanupInterval <= 0 {
		return errors.New("CLEANUP_INTERVAL must be a positive duration")
	}

	if c.PocketBaseURL != "" {
		if err := validateAbsoluteURL("POCKETBASE_URL", c.PocketBaseURL); err != nil {
			return err
		}
		if c.PocketBaseAdminEmail == "" || c.PocketBaseAdminPassword == "" {
			return errors.New(
				"POCKETBASE_ADMIN_EMAIL and POCKETBASE_ADMIN_PASSWORD are required when POCKETBASE_URL is set",
			)
		}
	} else if c.IsProduction {
		return errors.New("POCKETBASE_URL is required in production")
	}
	if c.IdentityTimeout <= 0 {
		return errors.New("IDENTITY_TIMEOUT must be a positive duration")
	}
	if c.IdentityMaxRetries < 0 {
		return fmt.Errorf("IDENTITY_MAX_RETRIES must not be negative, got %d", c.IdentityMaxRetries)
	}

	switch c.RateLimitStore {
	case RateLimitStoreMemory, RateLimitStoreRedis:
	default:
		return fmt.Errorf("invalid RATE_LIMIT_STORE: %s (must be: memory, redis)", c.RateLimitStore)
	}
	switch c.MetricsCacheType {
	case MetricsCacheTypeMemory:
	case MetricsCacheTypeRedis, MetricsCacheTypeRedisAside:
		if c.RedisAddr == "" {
			return fmt.Errorf("METRICS_CACHE_TYPE=%q requires REDIS_ADDR", c.MetricsCacheType)
		}
	default:
		return fmt.Errorf(
			"invalid METRICS_CACHE_TYPE: %s (must be: memory, redis, redis-aside)",
			c.MetricsCacheType,
		)
	}
	if c.RateLimitStore == RateLimitStoreRedis && c.RedisAddr == "" {
		return errors.New("RATE_LIMIT_STORE=redis requires REDIS_ADDR")
	}

	return nil
}

// ResourceURL is the protected resource served by this process.
func (c *Config) ResourceURL() string {
	return c.Issuer + "/mcp"
}

func validateAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
