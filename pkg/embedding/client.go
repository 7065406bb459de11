package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

// Client calls the external embedding service for images already stored in
// object storage. It is safe for concurrent use.
type Client struct {
	endpoint     string
	serviceToken string
	httpClient   *http.Client
	propagator   Propagator
	logger       Logger
}

// NewClient builds a Client from cfg. propagator may be nil.
func NewClient(cfg Config, logger Logger, propagator Propagator) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		serviceToken: cfg.ServiceToken,
		httpClient:   &http.Client{Timeout: cfg.timeout()},
		propagator:   propagator,
		logger:       logger,
	}, nil
}

// Embed asks the provider for the embedding of bucket/key. Transport
// failures, non-2xx answers and undecodable bodies are reported as
// apperr.ErrDependencyUnavailable, as are bodies missing the model or vector.
func (c *Client) Embed(ctx context.Context, bucket, key string) (Embedding, error) {
	url := c.endpoint + "/embed"
	fields := map[string]interface{}{
		"url":        url,
		"bucket":     bucket,
		"object_key": key,
	}

	var out Embedding
	err := c.postJSON(ctx, url, embedRequest{Source: objectReference{Bucket: bucket, ObjectKey: key}}, &out)
	if err == nil {
		if out.Model == "" || len(out.Vector) == 0 {
			err = errors.New("response is missing model or vector")
			c.logger.ErrorWithContext(ctx, "invalid embedding service response", err, fields)
			return Embedding{}, apperr.Dependency("invalid embedding service response", err)
		}
		return out, nil
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		fields["status_code"] = statusErr.Code
		c.logger.WarnWithContext(ctx, "embedding service returned error", err, fields)
		return Embedding{}, apperr.Dependency("embedding service error", err)
	}

	c.logger.ErrorWithContext(ctx, "failed to call embedding service", err, fields)
	return Embedding{}, apperr.Dependency("failed to reach embedding service", err)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
