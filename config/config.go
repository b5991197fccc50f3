// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration values for the registry services.
type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	DatabaseURL string
	DBMaxConns  int32

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL            string
	AMQPExchange       string
	OutboxPollInterval time.Duration

	CORSAllowedOrigins []string
	LoginRateLimit     int
}

// Load reads a .env file when present and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv as the variable source.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		Env:                e.str("APP_ENV", "development"),
		HTTPAddr:           e.str("HTTP_ADDR", ":8080"),
		LogLevel:           e.str("LOG_LEVEL", "info"),
		DatabaseURL:        e.str("DATABASE_URL", ""),
		DBMaxConns:         int32(e.int("DB_MAX_CONNS", 10)),
		JWTSecret:          e.str("JWT_SECRET", ""),
		AccessTokenTTL:     e.duration("ACCESS_TOKEN_TTL", 5*time.Minute),
		RefreshTokenTTL:    e.duration("REFRESH_TOKEN_TTL", 24*time.Hour),
		RedisAddr:          e.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      e.str("REDIS_PASSWORD", ""),
		RedisDB:            e.int("REDIS_DB", 0),
		AMQPURL:            e.str("AMQP_URL", ""),
		AMQPExchange:       e.str("AMQP_EXCHANGE", "careregistry.events"),
		OutboxPollInterval: e.duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		CORSAllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LoginRateLimit:     e.int("LOGIN_RATE_LIMIT", 10),
	}
	if e.err != nil {
		return nil, e.err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}

	return cfg, nil
}

type env struct {
	getenv func(string) string
	err    error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return v
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return v
}

func (e *env) list(key string, def []string) []string {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
