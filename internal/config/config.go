package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Auth           AuthConfig
	CORS           CORSConfig
	RateLimit      RateLimitConfig
	CSRF           CSRFConfig
	Email          EmailConfig
	Jobs           JobsConfig
	Backup         BackupConfig
	Logging        LoggingConfig
	Tracing        TracingConfig
	AdminBootstrap AdminBootstrapConfig
	Environment    string
}

type ServerConfig struct {
	Host            string
	Port            int
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	RequireHTTPS    bool
}

type DatabaseConfig struct {
	URL             string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret    string
	JWTExpiry    time.Duration
	CookieSecure bool
}

type CORSConfig struct {
	AllowAllOrigins bool
	AllowedOrigins  []string
}

// RateLimitConfig sets per-client request budgets for each tier over a
// shared window. A zero budget disables limiting for that tier.
type RateLimitConfig struct {
	PublicPerWindow   int
	AuthPerWindow     int
	AdminPerWindow    int
	Window            time.Duration
	TrustedProxyCIDRs []string
	RedisURL          string
}

type CSRFConfig struct {
	Key string
}

type EmailConfig struct {
	Enabled bool
	APIKey  string
	From    string
	BaseURL string
}

type JobsConfig struct {
	OutboxInterval     time.Duration
	OutboxBatchSize    int
	CompletionInterval time.Duration
	OutboxRetention    time.Duration
	MaxWorkers         int
}

type BackupConfig struct {
	Dir string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

type AdminBootstrapConfig struct {
	Username string
	Password string
	Email    string
	Name     string
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile applies the YAML file at path, if any, and then reads the
// environment. The file is a flat map of environment variable names to
// values; variables already set in the environment take precedence.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if err := applyFile(path); err != nil {
			return Config{}, err
		}
	}

	env := getEnv("ENVIRONMENT", "development")
	cfg := Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("PORT", getEnvInt("SERVER_PORT", 5000)),
			BaseURL:         getEnv("SERVER_BASE_URL", "http://localhost:5000"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 20*time.Second),
			MaxBodyBytes:    int64(getEnvInt("SERVER_MAX_BODY_BYTES", 10<<20)),
			RequireHTTPS:    getEnvBool("SERVER_REQUIRE_HTTPS", env == "production"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConnections:  getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvInt("DATABASE_MIN_CONNECTIONS", 2),
			MaxConnLifetime: getEnvDuration("DATABASE_MAX_CONN_LIFETIME", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			JWTExpiry:    getEnvDuration("JWT_EXPIRE", 7*24*time.Hour),
			CookieSecure: getEnvBool("COOKIE_SECURE", env == "production"),
		},
		CORS: CORSConfig{
			AllowAllOrigins: env == "development" || env == "test",
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		},
		RateLimit: RateLimitConfig{
			PublicPerWindow:   getEnvInt("RATE_LIMIT_PUBLIC", 100),
			AuthPerWindow:     getEnvInt("RATE_LIMIT_AUTH", 20),
			AdminPerWindow:    getEnvInt("RATE_LIMIT_ADMIN", 300),
			Window:            getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			TrustedProxyCIDRs: getEnvList("TRUSTED_PROXY_CIDRS"),
			RedisURL:          getEnv("REDIS_URL", ""),
		},
		CSRF: CSRFConfig{
			Key: getEnv("CSRF_KEY", ""),
		},
		Email: EmailConfig{
			Enabled: getEnvBool("EMAIL_ENABLED", false),
			APIKey:  getEnv("RESEND_API_KEY", ""),
			From:    getEnv("EMAIL_FROM", "Event Planning App <no-reply@localhost>"),
			BaseURL: getEnv("EMAIL_BASE_URL", getEnv("SERVER_BASE_URL", "http://localhost:5000")),
		},
		Jobs: JobsConfig{
			OutboxInterval:     getEnvDuration("JOB_OUTBOX_INTERVAL", 30*time.Second),
			OutboxBatchSize:    getEnvInt("JOB_OUTBOX_BATCH_SIZE", 50),
			CompletionInterval: getEnvDuration("JOB_COMPLETION_INTERVAL", 15*time.Minute),
			OutboxRetention:    getEnvDuration("JOB_OUTBOX_RETENTION", 30*24*time.Hour),
			MaxWorkers:         getEnvInt("JOB_MAX_WORKERS", 10),
		},
		Backup: BackupConfig{
			Dir: getEnv("BACKUP_DIR", "backups"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "eventplanner"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Name:     getEnv("ADMIN_NAME", "Owner"),
		},
		Environment: env,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects missing and insecure settings.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0 and 1")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Email.Enabled && c.Email.APIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is required when EMAIL_ENABLED is set")
	}
	if c.CSRF.Key != "" && len(c.CSRF.Key) != 32 {
		return fmt.Errorf("CSRF_KEY must be exactly 32 bytes")
	}

	if c.Environment != "production" {
		return nil
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must be set in production")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS cannot contain * in production")
		}
	}
	return nil
}

// IsDevelopment reports whether error details may be shown to clients.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

func applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	for key, value := range values {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		var s string
		switch v := value.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			s = strings.Join(parts, ",")
		default:
			s = fmt.Sprint(v)
		}
		if err := os.Setenv(key, s); err != nil {
			return fmt.Errorf("apply %s: %w", key, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") and, for compatibility with
// JWT_EXPIRE style values, a day suffix ("7d").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
