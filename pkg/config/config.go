// Package config loads service configuration from the environment. A .env
// file in the working directory is read first when present; variables already
// set in the environment win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// Storage drivers
const (
	StorageMongoDB = "mongodb"
	StorageMemory  = "memory"
)

// Config holds application configuration
type Config struct {
	ServiceName string
	ServerAddr  string
	Environment string
	LogLevel    string

	StorageDriver string
	MongoDB       *mongodb.Config

	KafkaEnabled bool
	Kafka        *kafka.Config

	Tracing *tracing.Config

	OrderServiceURL     string
	OrderServiceTimeout time.Duration
	CatalogFile         string
	RedisAddr           string

	IdempotencyRetention time.Duration
	RouteLockTTL         time.Duration
	OutboxPollInterval   time.Duration
}

// Load reads configuration for serviceName
func Load(serviceName string, envFiles ...string) (*Config, error) {
	// a missing .env file is normal outside local development
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		ServiceName: serviceName,
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageMongoDB)),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "fulfillment_db"),
			ConnectTimeout: getDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:    uint64(getInt("MONGODB_MAX_POOL_SIZE", 100)),
			MinPoolSize:    uint64(getInt("MONGODB_MIN_POOL_SIZE", 5)),
			ReplicaSet:     getEnv("MONGODB_REPLICA_SET", ""),
		},

		KafkaEnabled: getBool("KAFKA_ENABLED", false),
		Kafka:        kafka.DefaultConfig(),

		Tracing: tracing.DefaultConfig(serviceName),

		OrderServiceURL:     getEnv("ORDER_SERVICE_URL", "http://localhost:8001"),
		OrderServiceTimeout: getDuration("ORDER_SERVICE_TIMEOUT", 5*time.Second),
		CatalogFile:         getEnv("CATALOG_FILE", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),

		IdempotencyRetention: getDuration("IDEMPOTENCY_RETENTION", 24*time.Hour),
		RouteLockTTL:         getDuration("ROUTE_LOCK_TTL", 10*time.Second),
		OutboxPollInterval:   getDuration("OUTBOX_POLL_INTERVAL", time.Second),
	}

	cfg.Kafka.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	cfg.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", serviceName)
	cfg.Kafka.ClientID = serviceName

	cfg.Tracing.Enabled = getBool("TRACING_ENABLED", false)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.Environment = cfg.Environment

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageMongoDB, StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("SERVER_ADDR must not be empty")
	}
	if c.IdempotencyRetention <= 0 {
		return fmt.Errorf("IDEMPOTENCY_RETENTION must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil {
		return defaultValue
	}
	return v
}
