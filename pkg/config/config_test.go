package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
minio:
  connection:
    endpoint: minio:9000
    access_key_id: minio
    secret_access_key: minio-secret
pipeline:
  upload_bucket: uploads
  processed_bucket: processed
  default_top_k: 8
qdrant:
  endpoint: qdrant
  vector_size: 512
embedding:
  endpoint: http://embedder:8080
rabbit:
  channel:
    queue_name: from-yaml
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screensim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLayersDefaultsFileAndEnvironment(t *testing.T) {
	path := writeFile(t, sampleYAML)
	t.Setenv("QDRANT_VECTOR_SIZE", "1024")
	t.Setenv("MINIO_PRESIGN_EXPIRY", "15m")
	t.Setenv("RABBIT_HOST", "rabbit.internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	// file
	assert.Equal(t, "minio:9000", cfg.Minio.Connection.Endpoint)
	assert.Equal(t, "uploads", cfg.Pipeline.UploadBucket)
	assert.Equal(t, 8, cfg.Pipeline.DefaultTopK)
	assert.Equal(t, "from-yaml", cfg.Rabbit.Channel.QueueName)

	// environment wins over the file
	assert.Equal(t, uint64(1024), cfg.Qdrant.VectorSize)
	assert.Equal(t, 15*time.Minute, cfg.Minio.PresignedConfig.ExpiryDuration)
	assert.Equal(t, "rabbit.internal", cfg.Rabbit.Connection.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	// defaults survive when neither sets a value
	assert.Equal(t, "screenshots-query", cfg.Pipeline.QueryBucket)
	assert.Equal(t, 2.0, cfg.Pipeline.PrefetchMultiplier)
	assert.Equal(t, "screenshots", cfg.Qdrant.Collection)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, 585, cfg.Preprocess.TargetWidth)

	require.NoError(t, cfg.Validate())
}

func TestLoadUsesPathFromEnvironment(t *testing.T) {
	t.Setenv(PathEnv, writeFile(t, sampleYAML))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "uploads", cfg.Pipeline.UploadBucket)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "pipeline: [not, a, map"))
	assert.ErrorContains(t, err, "failed to parse config file")

	t.Setenv("QDRANT_VECTOR_SIZE", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "failed to read environment")
}

func TestValidateListsEverythingMissing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.PrefetchMultiplier = 1
	cfg.Notification.KafkaEnabled = true
	cfg.Kafka.Brokers = nil

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"missing EMBEDDING_SERVICE_URL",
		"missing KAFKA_BROKERS",
		"missing MINIO_ACCESS_KEY",
		"missing MINIO_ENDPOINT",
		"missing MINIO_SECRET_KEY",
		"missing QDRANT_VECTOR_SIZE",
		"missing MINIO_USER_BUCKET",
		"SIMILAR_PREFETCH_MULTIPLIER must be greater than 1",
		"missing NOTIFY_INGEST_BUCKET",
	} {
		assert.Contains(t, msg, want)
	}
	assert.NotContains(t, msg, "QDRANT_ENDPOINT")
	assert.NotContains(t, msg, "RABBIT_HOST")
}
