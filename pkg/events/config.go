package events

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvKafkaBrokers         = "KAFKA_BROKERS"
	EnvKafkaTopic           = "KAFKA_TOPIC"
	EnvKafkaRequireAcks     = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaBatchTimeout    = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaMaxAttempts     = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaConsumerGroup   = "KAFKA_CONSUMER_GROUP"
	EnvKafkaConsumerMinB    = "KAFKA_CONSUMER_MIN_BYTES"
	EnvKafkaConsumerMaxB    = "KAFKA_CONSUMER_MAX_BYTES"
	EnvKafkaConsumerMaxWait = "KAFKA_CONSUMER_MAX_WAIT"
)

const (
	DefaultTopic           = "slot-events"
	DefaultRequireAcks     = -1 // all replicas
	DefaultBatchTimeout    = 10 * time.Millisecond
	DefaultMaxAttempts     = 3
	DefaultConsumerGroup   = "campusbook-notifier"
	DefaultConsumerMinB    = 1
	DefaultConsumerMaxB    = 10 * 1024 * 1024 // 10MB
	DefaultConsumerMaxWait = 500 * time.Millisecond
)

// Config holds the Kafka settings shared by the publisher and the
// notifier consumer. An empty broker list means event publishing is
// disabled; services treat that as a valid configuration.
type Config struct {
	Brokers []string
	Topic   string

	RequireAcks  int // -1 = all, 0 = none, 1 = leader only
	BatchTimeout time.Duration
	MaxAttempts  int

	ConsumerGroup   string
	ConsumerMinByte int
	ConsumerMaxByte int
	ConsumerMaxWait time.Duration
}

func LoadConfig() *Config {
	var brokers []string
	if raw := os.Getenv(EnvKafkaBrokers); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return &Config{
		Brokers: brokers,
		Topic:   getEnvStr(EnvKafkaTopic, DefaultTopic),

		RequireAcks:  getEnvInt(EnvKafkaRequireAcks, DefaultRequireAcks),
		BatchTimeout: getEnvDuration(EnvKafkaBatchTimeout, DefaultBatchTimeout),
		MaxAttempts:  getEnvInt(EnvKafkaMaxAttempts, DefaultMaxAttempts),

		ConsumerGroup:   getEnvStr(EnvKafkaConsumerGroup, DefaultConsumerGroup),
		ConsumerMinByte: getEnvInt(EnvKafkaConsumerMinB, DefaultConsumerMinB),
		ConsumerMaxByte: getEnvInt(EnvKafkaConsumerMaxB, DefaultConsumerMaxB),
		ConsumerMaxWait: getEnvDuration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
	}
}

func (cfg *Config) Enabled() bool {
	return len(cfg.Brokers) > 0
}

func (cfg *Config) Validate() error {
	var errors []string

	if cfg.Topic == "" {
		errors = append(errors, "Topic cannot be empty")
	}
	if cfg.RequireAcks != -1 && cfg.RequireAcks != 0 && cfg.RequireAcks != 1 {
		errors = append(errors, fmt.Sprintf("RequireAcks must be -1, 0, or 1, got: %d", cfg.RequireAcks))
	}
	if cfg.BatchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("BatchTimeout must be positive, got: %s", cfg.BatchTimeout))
	}
	if cfg.MaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("MaxAttempts must be positive, got: %d", cfg.MaxAttempts))
	}
	if cfg.ConsumerMinByte <= 0 {
		errors = append(errors, fmt.Sprintf("ConsumerMinByte must be positive, got: %d", cfg.ConsumerMinByte))
	}
	if cfg.ConsumerMaxByte <= 0 {
		errors = append(errors, fmt.Sprintf("ConsumerMaxByte must be positive, got: %d", cfg.ConsumerMaxByte))
	}
	if cfg.ConsumerMaxWait <= 0 {
		errors = append(errors, fmt.Sprintf("ConsumerMaxWait must be positive, got: %s", cfg.ConsumerMaxWait))
	}

	if len(errors) > 0 {
		errMsg := "Kafka configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
