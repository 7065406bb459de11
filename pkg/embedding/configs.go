package embedding

import (
	"fmt"
	"time"
)

const defaultHTTPTimeoutSeconds = 30

type Config struct {
	// Base URL of the embedding service; requests go to {Endpoint}/embed.
	Endpoint string `yaml:"endpoint" envconfig:"EMBEDDING_SERVICE_URL"`

	// Optional bearer token sent as Authorization header.
	ServiceToken string `yaml:"service_token" envconfig:"EMBEDDING_SERVICE_TOKEN"`

	HTTPTimeoutS int `yaml:"http_timeout_seconds" envconfig:"EMBEDDING_HTTP_TIMEOUT_SECONDS"` // http timeout seconds (default 30)
}

// DefaultConfig returns a Config with the default timeout and no endpoint.
func DefaultConfig() Config {
	return Config{HTTPTimeoutS: defaultHTTPTimeoutSeconds}
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("embedding client requires EMBEDDING_SERVICE_URL")
	}
	return nil
}

func (c Config) timeout() time.Duration {
	if c.HTTPTimeoutS <= 0 {
		return defaultHTTPTimeoutSeconds * time.Second
	}
	return time.Duration(c.HTTPTimeoutS) * time.Second
}
