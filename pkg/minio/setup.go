package minio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

// Logger defines the interface for logging operations within the MinIO client.
//
//go:generate mockgen -source=setup.go -destination=mock_logger.go -package=minio
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Debug(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
	Fatal(msg string, err error, fields ...map[string]interface{})

	// ErrorWithContext logs with the correlation fields found in ctx.
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Minio represents a MinIO client with additional functionality.
type Minio struct {
	// Client is the standard MinIO client for high-level operations
	Client *minio.Client

	cfg    Config
	logger Logger

	// healthy is flipped by the connection monitor
	healthy atomic.Bool

	shutdownSignal chan struct{}

	// bufferPool manages reusable byte buffers to reduce memory allocations
	bufferPool *BufferPool
}

// BufferPool implements a pool of bytes.Buffers to reduce memory allocations.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new BufferPool instance.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Get returns a buffer from the pool.
// The caller should Reset the buffer before use if its previous contents are not needed.
func (bp *BufferPool) Get() *bytes.Buffer {
	return bp.pool.Get().(*bytes.Buffer)
}

// Put returns a buffer to the pool for future reuse.
func (bp *BufferPool) Put(b *bytes.Buffer) {
	bp.pool.Put(b)
}

// NewClient creates and validates a new MinIO client.
//
// Example:
//
//	client, err := minio.NewClient(config, myLogger)
//	if err != nil {
//	    return fmt.Errorf("failed to initialize MinIO client: %w", err)
//	}
func NewClient(cfg Config, logger Logger) (*Minio, error) {
	cfg = cfg.withDefaults()

	client, err := connectToMinio(cfg, logger)
	if err != nil {
		logger.Error("failed to connect to minio", err, map[string]interface{}{
			"endpoint": cfg.Connection.Endpoint,
			"region":   cfg.Connection.Region,
			"secure":   cfg.Connection.UseSSL,
		})
		return nil, err
	}

	minioClient := &Minio{
		Client:         client,
		cfg:            cfg,
		logger:         logger,
		shutdownSignal: make(chan struct{}),
		bufferPool:     NewBufferPool(),
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := minioClient.validateConnection(timeoutCtx); err != nil {
		logger.Error("failed to validate minio connection", err, map[string]interface{}{
			"endpoint": cfg.Connection.Endpoint,
			"region":   cfg.Connection.Region,
			"secure":   cfg.Connection.UseSSL,
		})
		return nil, err
	}
	minioClient.healthy.Store(true)

	return minioClient, nil
}

// Healthy reports the outcome of the most recent connection check.
func (m *Minio) Healthy() bool {
	return m.healthy.Load()
}

// Ping fails when the most recent connection check did not succeed.
func (m *Minio) Ping(ctx context.Context) error {
	if !m.Healthy() {
		return apperr.Dependency("minio connection is unhealthy", nil)
	}
	return nil
}

// monitorConnection periodically checks the MinIO connection and records
// state transitions. minio-go reconnects per request, so there is nothing
// to rebuild; the monitor only feeds Healthy and the logs.
func (m *Minio) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(connectionHealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := m.validateConnection(checkCtx)
			cancel()

			wasHealthy := m.healthy.Swap(err == nil)
			switch {
			case err != nil && wasHealthy:
				m.logger.Error("MinIO connection health check failed", err, map[string]interface{}{
					"endpoint": m.cfg.Connection.Endpoint,
				})
			case err == nil && !wasHealthy:
				m.logger.Info("MinIO connection recovered", nil, map[string]interface{}{
					"endpoint": m.cfg.Connection.Endpoint,
				})
			}

		case <-m.shutdownSignal:
			return

		case <-ctx.Done():
			return
		}
	}
}

// connectToMinio creates a new standard MinIO client.
func connectToMinio(cfg Config, logger Logger) (*minio.Client, error) {
	if cfg.Connection.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint cannot be empty")
	}

	logger.Info("Connecting to MinIO", nil, map[string]interface{}{
		"endpoint": cfg.Connection.Endpoint,
		"region":   cfg.Connection.Region,
		"secure":   cfg.Connection.UseSSL,
	})

	client, err := minio.New(cfg.Connection.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Connection.AccessKeyID, cfg.Connection.SecretAccessKey, ""),
		Secure: cfg.Connection.UseSSL,
		Region: cfg.Connection.Region,
	})

	if err != nil {
		return nil, err
	}
	return client, nil
}

// validateConnection lists buckets to ensure the connection and credentials are valid.
func (m *Minio) validateConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.Client.ListBuckets(ctx)
	return err
}
