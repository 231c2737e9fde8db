package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load("fulfillment-service", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StorageMongoDB, cfg.StorageDriver)
	assert.Equal(t, "fulfillment_db", cfg.MongoDB.Database)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "fulfillment-service", cfg.Kafka.ClientID)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyRetention)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("IDEMPOTENCY_RETENTION", "2h")
	t.Setenv("TRACING_ENABLED", "not-a-bool")

	cfg, err := Load("fulfillment-service", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.IdempotencyRetention)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CATALOG_FILE=/etc/wms/catalog.yaml\n"), 0o600))
	// t.Setenv restores the original value; godotenv never overrides a set variable
	t.Setenv("CATALOG_FILE", "")
	require.NoError(t, os.Unsetenv("CATALOG_FILE"))

	cfg, err := Load("fulfillment-service", path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/wms/catalog.yaml", cfg.CatalogFile)
}

func TestLoad_RejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")

	_, err := Load("fulfillment-service", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
