package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. FromEnv keeps main lean.
type Config struct {
	Addr           string
	DatabaseURL    string
	Redis          RedisConfig
	KafkaBrokers   string
	AuditTopic     string
	CommandCost    int
	MatchBudget    time.Duration
	DefaultCredits int
	SeedAdminKey   string
}

// RedisConfig holds connection settings for the notification publisher.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults. An empty DATABASE_URL selects the in-memory stores.
func FromEnv() Config {
	return Config{
		Addr:        envOr("CMDGATE_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		AuditTopic:     envOr("AUDIT_TOPIC", "cmdgate.audit"),
		CommandCost:    envInt("COMMAND_COST", 1),
		MatchBudget:    envDuration("MATCH_TIMEOUT", 5*time.Second),
		DefaultCredits: envInt("DEFAULT_CREDITS", 100),
		SeedAdminKey:   os.Getenv("SEED_ADMIN_KEY"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
