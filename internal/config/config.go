package config

import (
	"errors"
	"fmt"
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

// Cache type constants, shared by every cache the server builds
const (
	CacheTypeMemory     = "memory"
	CacheTypeRedis      = "redis"
	CacheTypeRedisAside = "redis-aside"
)

// Database driver constants
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

const defaultTailscaleAPIURL = "https://api.tailscale.com"

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	Environment  string
	IsProduction bool
	LogLevel     string

	// Serve the Swagger UI at /swagger/index.html
	EnableSwagger bool

	// JWT settings (bearer tokens for the API)
	JWTSecret     string
	JWTExpiration time.Duration

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// Enrollment
	EnrollmentTokenTTL     time.Duration
	EnrollmentTokenPepper  string
	PendingDeviceRetention time.Duration

	// Tailscale directory
	TailscaleAPIURL             string
	TailscaleClientID           string
	TailscaleClientSecret       string
	TailscaleTailnet            string // optional override of network name discovery
	TailscaleAuthKey            string // operator provisioned default pre-auth key
	TailscaleDefaultTags        []string
	TailscaleIssueKeys          bool
	TailscaleTimeout            time.Duration
	TailscaleInsecureSkipVerify bool

	// Connection status monitor
	StatusFreshnessWindow time.Duration
	StatusPollInterval    time.Duration

	// Background jobs
	ReconcileInterval time.Duration
	SyncSchedule      string // cron spec for syncAll
	CleanupInterval   time.Duration

	// Audit logging
	EnableAuditLogging bool
	AuditLogBufferSize int
	AuditLogRetention  time.Duration

	// Prometheus metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration

	// Caches
	CacheType           string
	CacheClientTTL      time.Duration
	NetworkNameCacheTTL time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string
	RateLimitCleanupInterval time.Duration
	VerifyRateLimit          int // requests per minute per IP
	GenerateRateLimit        int

	// Timeouts
	DBInitTimeout         time.Duration
	RedisConnTimeout      time.Duration
	CacheInitTimeout      time.Duration
	ServerShutdownTimeout time.Duration
	AuditShutdownTimeout  time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", DatabaseDriverSQLite)
	var dsn string
	if driver == DatabaseDriverSQLite {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "meshgate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		Environment:  environment,
		IsProduction: environment == "production",
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		EnableSwagger: getEnvBool("ENABLE_SWAGGER", environment != "production"),

		JWTSecret:     getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production"),
		JWTExpiration: getEnvDuration("JWT_EXPIRATION", time.Hour),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		EnrollmentTokenTTL:     getEnvDuration("ENROLLMENT_TOKEN_TTL", 24*time.Hour),
		EnrollmentTokenPepper:  getEnv("ENROLLMENT_TOKEN_PEPPER", "enrollment-pepper-change-in-production"),
		PendingDeviceRetention: getEnvDuration("PENDING_DEVICE_RETENTION", 7*24*time.Hour),

		TailscaleAPIURL:             strings.TrimRight(getEnv("TAILSCALE_API_URL", defaultTailscaleAPIURL), "/"),
		TailscaleClientID:           getEnv("TAILSCALE_CLIENT_ID", ""),
		TailscaleClientSecret:       getEnv("TAILSCALE_CLIENT_SECRET", ""),
		TailscaleTailnet:            getEnv("TAILSCALE_TAILNET", ""),
		TailscaleAuthKey:            getEnv("TAILSCALE_AUTH_KEY", ""),
		TailscaleDefaultTags:        getEnvSlice("TAILSCALE_DEFAULT_TAGS", []string{"tag:employee"}),
		TailscaleIssueKeys:          getEnvBool("TAILSCALE_ISSUE_KEYS", false),
		TailscaleTimeout:            getEnvDuration("TAILSCALE_TIMEOUT", 10*time.Second),
		TailscaleInsecureSkipVerify: getEnvBool("TAILSCALE_INSECURE_SKIP_VERIFY", false),

		StatusFreshnessWindow: getEnvDuration("STATUS_FRESHNESS_WINDOW", 5*time.Minute),
		StatusPollInterval:    getEnvDuration("STATUS_POLL_INTERVAL", 30*time.Second),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", time.Minute),
		SyncSchedule:      getEnv("SYNC_SCHEDULE", "@every 5m"),
		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", time.Hour),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", false),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 5*time.Minute),

		CacheType:           getEnv("CACHE_TYPE", CacheTypeMemory),
		CacheClientTTL:      getEnvDuration("CACHE_CLIENT_TTL", 30*time.Second),
		NetworkNameCacheTTL: getEnvDuration("NETWORK_NAME_CACHE_TTL", 10*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		VerifyRateLimit:          getEnvInt("VERIFY_RATE_LIMIT", 10),
		GenerateRateLimit:        getEnvInt("GENERATE_RATE_LIMIT", 30),

		DBInitTimeout:         getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		RedisConnTimeout:      getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),
		CacheInitTimeout:      getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		AuditShutdownTimeout:  getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate checks the configuration for values that would make the server
// misbehave at runtime rather than fail fast at boot.
func (c *Config) Validate() error {
	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}

	switch c.CacheType {
	case CacheTypeMemory, CacheTypeRedis, CacheTypeRedisAside:
	default:
		return fmt.Errorf(
			"invalid CACHE_TYPE value: %q (must be %q, %q or %q)",
			c.CacheType, CacheTypeMemory, CacheTypeRedis, CacheTypeRedisAside,
		)
	}

	if c.DatabaseDriver != DatabaseDriverSQLite && c.DatabaseDriver != DatabaseDriverPostgres {
		return fmt.Errorf("invalid DATABASE_DRIVER value: %q", c.DatabaseDriver)
	}

	if c.EnrollmentTokenTTL <= 0 {
		return errors.New("ENROLLMENT_TOKEN_TTL must be positive")
	}

	// A directory call without a deadline can hang verify and reconcile forever.
	if c.TailscaleTimeout <= 0 {
		return errors.New("TAILSCALE_TIMEOUT must be positive")
	}

	if (c.TailscaleClientID == "") != (c.TailscaleClientSecret == "") {
		return errors.New("TAILSCALE_CLIENT_ID and TAILSCALE_CLIENT_SECRET must be set together")
	}

	if c.StatusFreshnessWindow <= 0 || c.StatusPollInterval <= 0 {
		return errors.New("STATUS_FRESHNESS_WINDOW and STATUS_POLL_INTERVAL must be positive")
	}

	if c.IsProduction {
		if strings.Contains(c.JWTSecret, "change-in-production") {
			return errors.New("JWT_SECRET must be set in production")
		}
		if strings.Contains(c.EnrollmentTokenPepper, "change-in-production") {
			return errors.New("ENROLLMENT_TOKEN_PEPPER must be set in production")
		}
	}

	return nil
}

// DirectoryConfigured reports whether OAuth client credentials for the
// Tailscale API are present.
func (c *Config) DirectoryConfigured() bool {
	return c.TailscaleClientID != "" && c.TailscaleClientSecret != ""
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
