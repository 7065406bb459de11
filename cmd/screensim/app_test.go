package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/config"
	"github.com/Aleph-Alpha/screensim/pkg/minio"
	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
)

func TestServeGraphIsComplete(t *testing.T) {
	c := config.DefaultConfig()
	require.NoError(t, fx.ValidateApp(serveOptions(c)...))

	c.Postgres.Connection.Host = "db"
	c.Postgres.Connection.DbName = "screensim"
	c.Notification.Bucket = "uploads"
	c.Notification.AMQPEnabled = true
	c.Notification.KafkaEnabled = true
	require.True(t, c.Postgres.Configured())
	assert.NoError(t, fx.ValidateApp(serveOptions(c)...))
}

func TestMinioCheckFailsUntilConnectionValidated(t *testing.T) {
	check := minioCheck(&minio.Minio{})
	assert.Equal(t, "minio", check.Name)
	err := check.Run(context.Background())
	assert.ErrorIs(t, err, apperr.ErrDependencyUnavailable)
}

func TestBatchGraphIsComplete(t *testing.T) {
	var (
		store    *minio.Minio
		index    *qdrant.QdrantClient
		ingestor *pipeline.Ingestor
	)
	opts := append(coreOptions(batchConfig(config.DefaultConfig())), fx.NopLogger, fx.Populate(&store, &index, &ingestor))
	assert.NoError(t, fx.ValidateApp(opts...))
}

func TestBatchConfigDisablesMetricsServer(t *testing.T) {
	c := config.DefaultConfig()
	require.True(t, c.Metrics.Enabled)
	assert.False(t, batchConfig(c).Metrics.Enabled)
	assert.True(t, c.Metrics.Enabled, "input is not modified")
}
