package qdrant

import (
	"context"
	"fmt"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
)

// ──────────────────────────────────────────────────────────────
//   QDRANT CLIENT WRAPPER
// ──────────────────────────────────────────────────────────────
// Thin wrapper around the official Qdrant Go client exposing the
// vector index operations screensim needs: collection bootstrap with
// strict parameter validation, point upsert, nearest-neighbour search
// with vectors, and payload scrolling/patching for batch tooling.
// Every error is annotated with the collection name.

// Logger defines the logging surface used by the client.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// QdrantClient wraps the official Qdrant Go client.
type QdrantClient struct {
	api     *qdrant.Client
	cfg     *Config
	logger  Logger
	started bool
}

// NewQdrantClient ──────────────────────────────────────────────────────────────
// NewQdrantClient constructs a new instance of QdrantClient and validates
// connectivity via a health check. The SDK connects lazily, so the health
// check makes an unreachable server fail at startup rather than on the
// first request.
func NewQdrantClient(p QdrantParams) (*QdrantClient, error) {
	cfg := *p.Config
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	p.Logger.Info("[Qdrant] Connecting", nil, map[string]interface{}{
		"endpoint":   cfg.Endpoint,
		"port":       cfg.Port,
		"collection": cfg.Collection,
	})

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Endpoint,
		Port:                   cfg.Port,
		APIKey:                 cfg.ApiKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: !cfg.CheckCompatibility,
	})
	if err != nil {
		return nil, fmt.Errorf("[Qdrant] failed to initialize client: %w", err)
	}

	qc := &QdrantClient{
		api:     client,
		cfg:     &cfg,
		logger:  p.Logger,
		started: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := qc.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return qc, nil
}

// Ping ──────────────────────────────────────────────────────────────
// Ping verifies the availability of the Qdrant service. It is used at
// startup and by the readiness check.
func (c *QdrantClient) Ping(ctx context.Context) error {
	if !c.started || c.api == nil {
		return fmt.Errorf("[Qdrant] client not initialized")
	}

	resp, err := c.api.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("[Qdrant] health check failed: %w", err)
	}

	c.logger.Info("[Qdrant] Health check passed", nil, map[string]interface{}{
		"title":    resp.GetTitle(),
		"version":  resp.GetVersion(),
		"endpoint": c.cfg.Endpoint,
	})
	return nil
}

// Collection returns the name of the collection this client operates on.
func (c *QdrantClient) Collection() string {
	return c.cfg.Collection
}

// Close releases the gRPC connections held by the SDK client.
func (c *QdrantClient) Close() error {
	if !c.started {
		return nil
	}
	c.started = false
	return c.api.Close()
}

// withTimeout bounds a single call by the configured timeout.
func (c *QdrantClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.Timeout)
}
