package config

import (
	"os"
	"strconv"
	"time"

	"healink-eventcore/pkg/database"
)

// Config holds all configuration for the event delivery core.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	ServiceName string
	Environment string

	Database database.Config
	Redis    RedisConfig

	// EventBus selects the transport: "redis" or "nats".
	EventBus string
	NATSURL  string

	Outbox       OutboxConfig
	Notification NotificationConfig
	Payment      PaymentConfig

	MetricsPort string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	// PublishTimeout bounds a single bus publish.
	PublishTimeout time.Duration
	// ClaimLease is how long a claimed outbox row stays invisible to other
	// relay instances before it counts as abandoned.
	ClaimLease time.Duration
}

type NotificationConfig struct {
	// MulticastConcurrency bounds parallel per-recipient sends.
	MulticastConcurrency int
	// SendTimeout bounds a single provider call.
	SendTimeout time.Duration
	// DedupTTL is how long consumed event ids are remembered.
	DedupTTL time.Duration

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

type PaymentConfig struct {
	Port string
	// GatewayName identifies the configured provider.
	GatewayName string
	// GatewaySecret signs and verifies callback payloads.
	GatewaySecret  string
	GatewayTimeout time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "healink"),
		Environment: getEnv("APP_ENV", "development"),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "healink"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		EventBus: getEnv("EVENT_BUS", "redis"),
		NATSURL:  getEnv("NATS_URL", "nats://localhost:4222"),
		Outbox: OutboxConfig{
			BatchSize:      getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			PollInterval:   getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			MaxRetries:     getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
			PublishTimeout: getEnvAsDuration("OUTBOX_PUBLISH_TIMEOUT", 5*time.Second),
			ClaimLease:     getEnvAsDuration("OUTBOX_CLAIM_LEASE", 5*time.Minute),
		},
		Notification: NotificationConfig{
			MulticastConcurrency: getEnvAsInt("MULTICAST_CONCURRENCY", 8),
			SendTimeout:          getEnvAsDuration("SEND_TIMEOUT", 10*time.Second),
			DedupTTL:             getEnvAsDuration("DEDUP_TTL", 24*time.Hour),
			SMTPHost:             getEnv("SMTP_HOST", ""),
			SMTPPort:             getEnv("SMTP_PORT", "587"),
			SMTPUser:             getEnv("SMTP_USER", ""),
			SMTPPass:             getEnv("SMTP_PASS", ""),
			SMTPFrom:             getEnv("SMTP_FROM", ""),
		},
		Payment: PaymentConfig{
			Port:           getEnv("PAYMENT_PORT", "8083"),
			GatewayName:    getEnv("GATEWAY_NAME", "momo"),
			GatewaySecret:  getEnv("GATEWAY_SECRET", ""),
			GatewayTimeout: getEnvAsDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		MetricsPort: getEnv("METRICS_PORT", "9190"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
