package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort  string
	Environment string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Collaborators
	RabbitURL string
	RedisURL  string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Ticket lifecycle
	TicketExpiration time.Duration
	SweepInterval    time.Duration
	SweepBatchSize   int

	// One-shot expiration scheduling. The sweep alone keeps the system
	// correct when this is off.
	SchedulerEnabled   bool
	ExpireMaxRetries   int
	ExpireRetryBackoff time.Duration

	// Rate limiting on the reserve endpoint (requests per window per caller).
	RateLimit       int
	RateLimitWindow time.Duration

	// Recommendations
	DefaultSearchRadiusKM float64
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "nearbytix"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RabbitURL: getEnv("RABBITMQ_URL", ""),
		RedisURL:  getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		TokenTTL:  getEnvAsDuration("TOKEN_TTL", "24h"),

		TicketExpiration: time.Duration(getEnvAsInt("TICKET_EXPIRATION_TIME", 120)) * time.Second,
		SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", "60s"),
		SweepBatchSize:   getEnvAsInt("SWEEP_BATCH_SIZE", 100),

		SchedulerEnabled:   getEnvAsBool("SCHEDULER_ENABLED", true),
		ExpireMaxRetries:   getEnvAsInt("EXPIRE_MAX_RETRIES", 3),
		ExpireRetryBackoff: getEnvAsDuration("EXPIRE_RETRY_BACKOFF", "60s"),

		RateLimit:       getEnvAsInt("RATE_LIMIT", 30),
		RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		DefaultSearchRadiusKM: getEnvAsFloat("DEFAULT_SEARCH_RADIUS_KM", 50),
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key, fallback string) time.Duration {
	v := getEnv(key, fallback)
	d, err := time.ParseDuration(v)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
