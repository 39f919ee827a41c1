package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Tokens   TokenConfig
	Internal InternalAuthConfig
	Session  SessionConfig
}

// DevInternalJWTSecret is the internal assertion key used when none is configured. It is
// only accepted when APP_ENV is development.
const DevInternalJWTSecret = "dev-secret"

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// Token store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// TokenConfig defines token issuance and storage parameters.
type TokenConfig struct {
	Store                  string
	StoreTimeoutMillis     int
	SessionTokenTTLMinutes int
	APITokenTTLDays        int // zero issues api tokens that never expire
	JanitorIntervalSeconds int
}

// InternalAuthConfig verifies service-to-service callers of the internal endpoints.
type InternalAuthConfig struct {
	JWTSecret string
	Audience  string
}

// SessionConfig describes the browser session cookie cleared on logout.
type SessionConfig struct {
	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sso-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Tokens: TokenConfig{
			Store:                  strings.ToLower(getEnv("TOKEN_STORE", StoreMemory)),
			StoreTimeoutMillis:     getEnvAsInt("STORE_TIMEOUT_MS", 2000),
			SessionTokenTTLMinutes: getEnvAsInt("SESSION_TOKEN_TTL_MINUTES", 720),
			APITokenTTLDays:        getEnvAsInt("API_TOKEN_TTL_DAYS", 0),
			JanitorIntervalSeconds: getEnvAsInt("JANITOR_INTERVAL_SECONDS", 0),
		},
		Internal: InternalAuthConfig{
			JWTSecret: getEnv("INTERNAL_JWT_SECRET", DevInternalJWTSecret),
			Audience:  getEnv("INTERNAL_JWT_AUDIENCE", "sso-internal"),
		},
		Session: SessionConfig{
			CookieName:   getEnv("SESSION_COOKIE_NAME", "sso_session"),
			CookiePath:   getEnv("SESSION_COOKIE_PATH", "/"),
			CookieDomain: os.Getenv("SESSION_COOKIE_DOMAIN"),
			CookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Tokens.Store {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("TOKEN_STORE=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("invalid TOKEN_STORE %q", c.Tokens.Store)
	}
	if c.Tokens.SessionTokenTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TOKEN_TTL_MINUTES must be positive")
	}
	if c.Tokens.APITokenTTLDays < 0 {
		return fmt.Errorf("API_TOKEN_TTL_DAYS must not be negative")
	}
	if c.Internal.JWTSecret == "" {
		return fmt.Errorf("INTERNAL_JWT_SECRET must not be empty")
	}
	if c.Internal.JWTSecret == DevInternalJWTSecret && c.App.Env != "development" {
		return fmt.Errorf("INTERNAL_JWT_SECRET must be set when APP_ENV is %q", c.App.Env)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// StoreTimeout bounds every token store call.
func (t TokenConfig) StoreTimeout() time.Duration {
	if t.StoreTimeoutMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(t.StoreTimeoutMillis) * time.Millisecond
}

// SessionTokenTTL is the fixed lifetime of interactive session tokens.
func (t TokenConfig) SessionTokenTTL() time.Duration {
	return time.Duration(t.SessionTokenTTLMinutes) * time.Minute
}

// APITokenTTL is the lifetime of api tokens; zero means they never expire.
func (t TokenConfig) APITokenTTL() time.Duration {
	return time.Duration(t.APITokenTTLDays) * 24 * time.Hour
}

// JanitorInterval is the expiry sweep period; zero disables the sweep.
func (t TokenConfig) JanitorInterval() time.Duration {
	if t.JanitorIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(t.JanitorIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
