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
		Host            string
		Port            string
		Env             string
		ShutdownTimeout time.Duration
	}

	// Database configuration. URL wins over the individual fields when set.
	Database struct {
		URL        string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		SSLMode    string
		MaxConns   int
		MaxRetries int
		RetryDelay time.Duration
	}

	// Broadcast channel configuration
	Redis struct {
		// Backend selects the broadcaster: "redis" or "memory"
		Backend string
		URL     string
	}

	// Relay configuration
	Relay struct {
		Topic              string
		WriteWait          time.Duration
		PongWait           time.Duration
		PingPeriod         time.Duration
		MaxMessageSize     int64
		SubscriptionBuffer int
		IngestTimeout      time.Duration
	}

	// Health probe configuration
	Health struct {
		ProbeTimeout time.Duration
	}

	// Message history endpoints
	History struct {
		DefaultLimit int
		MaxLimit     int
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

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}

	// Circuit breaker around publish
	Breaker struct {
		Enabled          bool
		FailureThreshold uint
		SuccessThreshold uint
		RetryTimeout     time.Duration
	}

	// Observability
	Observability struct {
		ServiceName     string
		TracingEnabled  bool
		MetricsEnabled  bool
		OpenAPIValidate bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates the process-wide Config from environment variables.
// The .env file, if present, is loaded first.
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
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

// Load reads a fresh Config from the environment without touching the singleton.
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Host = getEnvString("SERVER_HOST", "0.0.0.0")
	cfg.Server.Port = getEnvString("SERVER_PORT", getEnvString("PORT", "8080"))
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.Database.URL = getEnvString("DATABASE_URL", "")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "chat_relay")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 5)
	cfg.Database.MaxRetries = getEnvInt("DB_MAX_RETRIES", 5)
	cfg.Database.RetryDelay = getEnvDuration("DB_RETRY_DELAY", 2*time.Second)

	cfg.Redis.Backend = strings.ToLower(getEnvString("PUBSUB_BACKEND", "redis"))
	cfg.Redis.URL = getEnvString("REDIS_URL", "redis://localhost:6379")

	cfg.Relay.Topic = getEnvString("RELAY_TOPIC", "messages")
	cfg.Relay.WriteWait = getEnvDuration("RELAY_WRITE_WAIT", 10*time.Second)
	cfg.Relay.PongWait = getEnvDuration("RELAY_PONG_WAIT", 60*time.Second)
	cfg.Relay.PingPeriod = getEnvDuration("RELAY_PING_PERIOD", (cfg.Relay.PongWait*9)/10)
	cfg.Relay.MaxMessageSize = getEnvInt64("RELAY_MAX_MESSAGE_SIZE", 64*1024)
	cfg.Relay.SubscriptionBuffer = getEnvInt("RELAY_SUBSCRIPTION_BUFFER", 256)
	cfg.Relay.IngestTimeout = getEnvDuration("RELAY_INGEST_TIMEOUT", 5*time.Second)

	cfg.Health.ProbeTimeout = getEnvDuration("HEALTH_PROBE_TIMEOUT", 2*time.Second)

	cfg.History.DefaultLimit = getEnvInt("HISTORY_DEFAULT_LIMIT", 50)
	cfg.History.MaxLimit = getEnvInt("HISTORY_MAX_LIMIT", 200)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	cfg.Breaker.Enabled = getEnvBool("PUBLISH_BREAKER_ENABLED", true)
	cfg.Breaker.FailureThreshold = uint(getEnvInt("PUBLISH_BREAKER_FAILURES", 5))
	cfg.Breaker.SuccessThreshold = uint(getEnvInt("PUBLISH_BREAKER_SUCCESSES", 2))
	cfg.Breaker.RetryTimeout = getEnvDuration("PUBLISH_BREAKER_RETRY", 30*time.Second)

	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "chat-relay")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
	cfg.Observability.OpenAPIValidate = getEnvBool("OPENAPI_VALIDATE", true)

	return cfg
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
