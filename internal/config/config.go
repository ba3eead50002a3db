package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Auth       AuthConfig
	Identity   IdentityConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
	SMTP       SMTPConfig
	Worker     WorkerConfig
	Storage    StorageConfig
	Invitation InvitationConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
	// BaseDomain is the apex domain tenant subdomains hang off,
	// e.g. "buildledger.io" for acme.buildledger.io.
	BaseDomain string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TLSEnabled    bool
	TLSSkipVerify bool
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string

	// SkipHealthLogs suppresses request logs for health endpoints.
	SkipHealthLogs     bool
	SlowRequestSeconds int
}

// AuthConfig holds the first-party session token configuration.
type AuthConfig struct {
	JWTSecret            string
	JWTIssuer            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration

	PasswordMinLength     int
	PasswordRequireUpper  bool
	PasswordRequireLower  bool
	PasswordRequireNumber bool
}

// IdentityConfig holds identity provider configuration: token
// validation via JWKS plus the admin API used during invitation
// acceptance.
type IdentityConfig struct {
	BaseURL             string
	Realm               string
	ClientID            string
	AdminClientID       string
	AdminClientSecret   string
	JWKSRefreshInterval time.Duration
	HTTPTimeout         time.Duration
}

// JWKSURL returns the JWKS endpoint URL.
func (c *IdentityConfig) JWKSURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", c.BaseURL, c.Realm)
}

// IssuerURL returns the expected token issuer URL.
func (c *IdentityConfig) IssuerURL() string {
	return fmt.Sprintf("%s/realms/%s", c.BaseURL, c.Realm)
}

// TokenURL returns the client-credentials token endpoint.
func (c *IdentityConfig) TokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.BaseURL, c.Realm)
}

// AdminURL returns the admin API base URL.
func (c *IdentityConfig) AdminURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.BaseURL, c.Realm)
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// SMTPConfig holds SMTP configuration for sending emails.
type SMTPConfig struct {
	Enabled    bool
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	FromName   string
	TLS        bool
	SkipVerify bool
	// BaseURL is the frontend base URL used in email links.
	BaseURL string
	Timeout time.Duration
}

// IsConfigured returns true if SMTP is properly configured.
func (c *SMTPConfig) IsConfigured() bool {
	return c.Enabled && c.Host != "" && c.Port > 0 && c.From != ""
}

// WorkerConfig holds background worker configuration.
type WorkerConfig struct {
	Enabled     bool
	Concurrency int
	// CleanupSchedule is the cron expression for the expired
	// invitation sweep.
	CleanupSchedule string
	// OverdueSchedule is the cron expression for the overdue
	// invoice sweep.
	OverdueSchedule string
}

// StorageConfig holds object storage configuration for attachments.
type StorageConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	PresignExpiry  time.Duration
}

// InvitationConfig holds invitation lifecycle configuration.
type InvitationConfig struct {
	// Expiry is how long invitations remain acceptable.
	Expiry time.Duration
	// Retention is how long expired invitations are kept before the
	// cleanup sweep removes them.
	Retention time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:       getEnv("APP_NAME", "buildledger"),
			Env:        getEnv("APP_ENV", "development"),
			Debug:      getEnvBool("APP_DEBUG", false),
			BaseDomain: getEnv("APP_BASE_DOMAIN", "buildledger.local"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "buildledger"),
			Password:        getEnv("DB_PASSWORD", "secret"),
			Name:            getEnv("DB_NAME", "buildledger"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
			TLSSkipVerify: getEnvBool("REDIS_TLS_SKIP_VERIFY", false),
		},
		Log: LogConfig{
			Level:              getEnv("LOG_LEVEL", "info"),
			Format:             getEnv("LOG_FORMAT", "json"),
			SkipHealthLogs:     getEnvBool("LOG_SKIP_HEALTH", true),
			SlowRequestSeconds: getEnvInt("LOG_SLOW_REQUEST_SECONDS", 5),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer:             getEnv("AUTH_JWT_ISSUER", "buildledger"),
			AccessTokenDuration:   getEnvDuration("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration:  getEnvDuration("AUTH_REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			PasswordMinLength:     getEnvInt("AUTH_PASSWORD_MIN_LENGTH", 8),
			PasswordRequireUpper:  getEnvBool("AUTH_PASSWORD_REQUIRE_UPPERCASE", true),
			PasswordRequireLower:  getEnvBool("AUTH_PASSWORD_REQUIRE_LOWERCASE", true),
			PasswordRequireNumber: getEnvBool("AUTH_PASSWORD_REQUIRE_NUMBER", true),
		},
		Identity: IdentityConfig{
			BaseURL:             getEnv("IDENTITY_BASE_URL", "http://localhost:8180"),
			Realm:               getEnv("IDENTITY_REALM", "buildledger"),
			ClientID:            getEnv("IDENTITY_CLIENT_ID", ""),
			AdminClientID:       getEnv("IDENTITY_ADMIN_CLIENT_ID", ""),
			AdminClientSecret:   getEnv("IDENTITY_ADMIN_CLIENT_SECRET", ""),
			JWKSRefreshInterval: getEnvDuration("IDENTITY_JWKS_REFRESH_INTERVAL", time.Hour),
			HTTPTimeout:         getEnvDuration("IDENTITY_HTTP_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Tenant-Subdomain"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 86400),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_RPS", 100),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 200),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP", time.Minute),
		},
		SMTP: SMTPConfig{
			Enabled:    getEnvBool("SMTP_ENABLED", false),
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvInt("SMTP_PORT", 587),
			User:       getEnv("SMTP_USER", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", ""),
			FromName:   getEnv("SMTP_FROM_NAME", "BuildLedger"),
			TLS:        getEnvBool("SMTP_TLS", true),
			SkipVerify: getEnvBool("SMTP_SKIP_VERIFY", false),
			BaseURL:    getEnv("SMTP_BASE_URL", "http://localhost:3000"),
			Timeout:    getEnvDuration("SMTP_TIMEOUT", 30*time.Second),
		},
		Worker: WorkerConfig{
			Enabled:         getEnvBool("WORKER_ENABLED", true),
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 10),
			CleanupSchedule: getEnv("WORKER_CLEANUP_SCHEDULE", "0 3 * * *"),
			OverdueSchedule: getEnv("WORKER_OVERDUE_SCHEDULE", "0 4 * * *"),
		},
		Storage: StorageConfig{
			Bucket:         getEnv("STORAGE_BUCKET", "buildledger-attachments"),
			Region:         getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:       getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:      getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:      getEnv("STORAGE_SECRET_KEY", ""),
			ForcePathStyle: getEnvBool("STORAGE_FORCE_PATH_STYLE", false),
			PresignExpiry:  getEnvDuration("STORAGE_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Invitation: InvitationConfig{
			Expiry:    getEnvDuration("INVITATION_EXPIRY", 7*24*time.Hour),
			Retention: getEnvDuration("INVITATION_RETENTION", 30*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateBasic(); err != nil {
		return err
	}
	if c.App.Env == EnvProduction {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateBasic() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.PasswordMinLength < 6 {
		return fmt.Errorf("AUTH_PASSWORD_MIN_LENGTH must be at least 6")
	}
	if c.Invitation.Expiry < time.Hour {
		return fmt.Errorf("INVITATION_EXPIRY too short: %v (min 1h)", c.Invitation.Expiry)
	}
	return c.validateLog()
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s (must be json or text)", c.Log.Format)
	}
	return nil
}

func (c *Config) validateProduction() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}
	if len(c.Auth.JWTSecret) < 64 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 64 characters in production")
	}
	if c.Identity.BaseURL == "" || strings.Contains(c.Identity.BaseURL, "localhost") {
		return fmt.Errorf("IDENTITY_BASE_URL must be set in production")
	}
	if !strings.HasPrefix(c.Identity.BaseURL, "https://") {
		return fmt.Errorf("IDENTITY_BASE_URL must use HTTPS in production")
	}
	if slices.Contains(c.CORS.AllowedOrigins, "*") {
		return fmt.Errorf("CORS wildcard origin not allowed in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database SSL must be enabled in production (use 'require' or 'verify-full')")
	}
	if !c.RateLimit.Enabled {
		return fmt.Errorf("rate limiting must be enabled in production")
	}
	if c.App.Debug {
		return fmt.Errorf("debug mode must be disabled in production")
	}
	if c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	if !c.Redis.TLSEnabled {
		return fmt.Errorf("redis TLS must be enabled in production")
	}
	return nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
