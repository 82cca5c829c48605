// Package config loads runtime configuration from the environment so main
// stays lean. A .env file is honored when present, real environment variables
// win.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Redis captures connection settings for the code-binding store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AMQP captures the audit sink broker topology.
type AMQP struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
}

// Config is the full runtime configuration.
type Config struct {
	Server      Server
	Redis       Redis
	AMQP        AMQP
	PostgresDSN string
	CodeTTL     time.Duration
	AuditBuffer int
}

// Load reads configuration, consulting a local .env file first.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Server: Server{
			Addr:          envOr("SECUREID_ADDR", ":8080"),
			JWTSigningKey: envOr("SECUREID_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Redis: Redis{
			URL:          os.Getenv("SECUREID_REDIS_URL"),
			PoolSize:     envInt("SECUREID_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SECUREID_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("SECUREID_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SECUREID_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SECUREID_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		AMQP: AMQP{
			URL:        os.Getenv("SECUREID_AMQP_URL"),
			Exchange:   envOr("SECUREID_AMQP_EXCHANGE", "secureid.audit"),
			Queue:      envOr("SECUREID_AMQP_QUEUE", "secureid.audit.records"),
			RoutingKey: envOr("SECUREID_AMQP_ROUTING_KEY", "audit"),
		},
		PostgresDSN: os.Getenv("SECUREID_POSTGRES_DSN"),
		CodeTTL:     envDuration("SECUREID_CODE_TTL", 5*time.Minute),
		AuditBuffer: envInt("SECUREID_AUDIT_BUFFER", 256),
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
