package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	Transport    string
	WebhookURL   string
	KafkaBrokers []string
	KafkaTopic   string

	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
	ClaimBackoff   time.Duration
	PublishTimeout time.Duration
	RetentionDays  int

	RollupEnabled  bool
	CleanupEnabled bool

	OTLPEndpoint string
}

const (
	TransportWebhook = "webhook"
	TransportKafka   = "kafka"
)

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "herald"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	transport := strings.TrimSpace(strings.ToLower(os.Getenv("OUTBOX_TRANSPORT")))
	if transport == "" {
		transport = TransportWebhook
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "herald.outbox"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		Transport:    transport,
		WebhookURL:   os.Getenv("WEBHOOK_URL"),
		KafkaBrokers: brokers,
		KafkaTopic:   topic,

		BatchSize:      envInt("OUTBOX_BATCH_SIZE", 50),
		PollInterval:   envDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
		MaxAttempts:    envInt("OUTBOX_MAX_ATTEMPTS", 5),
		RetryBackoff:   envDuration("OUTBOX_RETRY_BACKOFF", 30*time.Second),
		ClaimBackoff:   envDuration("OUTBOX_CLAIM_BACKOFF", 30*time.Second),
		PublishTimeout: envDuration("OUTBOX_PUBLISH_TIMEOUT", 10*time.Second),
		RetentionDays:  envInt("OUTBOX_RETENTION_DAYS", 30),

		RollupEnabled:  envBool("ENABLE_USAGE_ROLLUP", true),
		CleanupEnabled: envBool("ENABLE_RETENTION_CLEANUP", true),

		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
