// Package config loads runtime settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration.
type Config struct {
	HTTPAddr string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// RedisAddr selects the cache backend; empty means in-process cache.
	RedisAddr string
	CacheTTL  time.Duration

	// CheckSchedule is the cron spec for the periodic re-check sweep.
	CheckSchedule   string
	CheckWorkers    int
	ChecksPerMinute int
	// RetentionDays bounds how long history samples are kept.
	RetentionDays int

	ScrapeTimeout time.Duration
	Debug         bool
}

// Load reads the .env file and returns a populated Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using system env vars")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "markethub"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "markethub123"),
		PostgresDB:       getEnv("POSTGRES_DB", "markethub"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getEnvDuration("CACHE_TTL", 300*time.Second),

		CheckSchedule:   getEnv("CHECK_SCHEDULE", "@every 6h"),
		CheckWorkers:    getEnvInt("CHECK_WORKERS", 3),
		ChecksPerMinute: getEnvInt("CHECKS_PER_MINUTE", 30),
		RetentionDays:   getEnvInt("RETENTION_DAYS", 90),

		ScrapeTimeout: getEnvDuration("SCRAPE_TIMEOUT", 10*time.Second),
		Debug:         getEnv("DEBUG", "") != "",
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
