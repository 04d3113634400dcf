package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port     string
		GRPCPort string
		Env      string
		Timeout  time.Duration
	}

	// Database configuration, only needed by the escalation outbox
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Retries  int
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Chat engine settings
	Chat struct {
		DefaultLanguage  string
		MaxContentLength int
		ExcerptLength    int
	}

	// Escalation and notification hand-off
	Escalation struct {
		HighForcesEmergency bool
		NotifyTimeout       time.Duration
		Workers             int
		QueueSize           int
		Sinks               []string
		WebhookURL          string
	}

	// Redis connection used by the stream notifier
	Redis struct {
		Addr     string
		Password string
		DB       int
		Stream   string
		MaxLen   int64
	}

	// Observability
	Observability struct {
		ServiceName    string
		TracingEnabled bool
	}

	// OpenAPI request validation
	OpenAPI struct {
		SchemaPath string
	}

	// Vault holds the JWT secret and webhook token when enabled
	Vault struct {
		Enabled   bool
		Addr      string
		Token     string
		Namespace string
		Mount     string
		Path      string
		CacheTTL  time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates the Config singleton from environment variables.
// A .env file in the working directory is loaded first if present.
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

func load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9094")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "crisis-chat")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.Retries = getEnvInt("DB_RETRIES", 5)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Chat.DefaultLanguage = getEnvString("CHAT_DEFAULT_LANGUAGE", "en")
	cfg.Chat.MaxContentLength = getEnvInt("CHAT_MAX_CONTENT_LENGTH", 4000)
	cfg.Chat.ExcerptLength = getEnvInt("CHAT_EXCERPT_LENGTH", 80)

	cfg.Escalation.HighForcesEmergency = getEnvBool("ESCALATION_HIGH_FORCES_EMERGENCY", false)
	cfg.Escalation.NotifyTimeout = getEnvDuration("ESCALATION_NOTIFY_TIMEOUT", 5*time.Second)
	cfg.Escalation.Workers = getEnvInt("ESCALATION_WORKERS", 4)
	cfg.Escalation.QueueSize = getEnvInt("ESCALATION_QUEUE_SIZE", 256)
	cfg.Escalation.Sinks = getEnvStringSlice("NOTIFY_SINKS", []string{"log"})
	cfg.Escalation.WebhookURL = getEnvString("NOTIFY_WEBHOOK_URL", "")

	cfg.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.Stream = getEnvString("REDIS_ESCALATION_STREAM", "crisis:escalations")
	cfg.Redis.MaxLen = getEnvInt64("REDIS_STREAM_MAXLEN", 10000)

	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "crisis-chat")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)

	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Addr = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.Path = getEnvString("VAULT_SECRETS_PATH", "crisis-chat")
	cfg.Vault.CacheTTL = getEnvDuration("VAULT_CACHE_TTL", 5*time.Minute)

	return cfg
}

// SinkEnabled reports whether the named notification sink is configured
func (c *Config) SinkEnabled(name string) bool {
	for _, s := range c.Escalation.Sinks {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
