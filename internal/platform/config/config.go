package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	// LockRoles names the actor roles allowed to lock an active ruleset.
	LockRoles []string

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Impact   ImpactConfig
}

// PostgresConfig holds database settings. An empty DSN selects the in-memory
// stores (dev mode).
type PostgresConfig struct {
	DSN string
}

// RedisConfig holds cache settings. An empty URL disables the active-ruleset
// cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds audit sink settings. Empty brokers disable forwarding;
// records are still stored durably either way.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ImpactConfig bounds impact preview work.
type ImpactConfig struct {
	SampleLimit int
	Concurrency int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("DOCGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	adminToken := os.Getenv("DOCGATE_ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "dev-admin-token"
	}

	lockRoles := splitCSV(os.Getenv("DOCGATE_LOCK_ROLES"))
	if len(lockRoles) == 0 {
		lockRoles = []string{"registrar_head", "principal"}
	}

	return Config{
		Addr:          addr,
		AdminToken:    adminToken,
		JWTSigningKey: jwtSigningKey,
		LockRoles:     lockRoles,
		Postgres: PostgresConfig{
			DSN: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:   envString("KAFKA_AUDIT_TOPIC", "docgate.audit"),
		},
		Impact: ImpactConfig{
			SampleLimit: envInt("IMPACT_SAMPLE_LIMIT", 1000),
			Concurrency: envInt("IMPACT_CONCURRENCY", 8),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
