package qdrant

import (
	"time"
)

// Config holds connection and collection settings for the Qdrant client.
//
// Example:
//
//	cfg := qdrant.DefaultConfig()
//	cfg.Endpoint = "qdrant.internal"
//	cfg.Collection = "screenshots"
//	cfg.VectorSize = 1024
type Config struct {
	// Hostname of the Qdrant server, e.g. "localhost".
	Endpoint string `yaml:"endpoint" envconfig:"QDRANT_ENDPOINT"`

	// gRPC port of the Qdrant server. Defaults to 6334.
	Port int `yaml:"port" envconfig:"QDRANT_PORT"`

	// Optional authentication token for secured deployments.
	ApiKey string `yaml:"api_key" envconfig:"QDRANT_API_KEY"`

	// Use TLS for the gRPC connection.
	UseTLS bool `yaml:"use_tls" envconfig:"QDRANT_USE_TLS"`

	// Collection this client operates on.
	Collection string `yaml:"collection" envconfig:"QDRANT_COLLECTION"`

	// Dimension of the stored vectors. An existing collection must match exactly.
	VectorSize uint64 `yaml:"vector_size" envconfig:"QDRANT_VECTOR_SIZE"`

	// Distance metric name: cosine, euclid, dot or manhattan.
	Distance string `yaml:"distance" envconfig:"QDRANT_DISTANCE"`

	// Maximum request duration before timing out.
	Timeout time.Duration `yaml:"timeout" envconfig:"QDRANT_TIMEOUT"`

	// Whether to perform version compatibility checks between client and server.
	CheckCompatibility bool `yaml:"check_compatibility" envconfig:"QDRANT_CHECK_COMPATIBILITY"`
}

// DefaultConfig provides sensible defaults for most use cases.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:           "localhost",
		Port:               6334,
		Collection:         "screenshots",
		Distance:           "cosine",
		Timeout:            10 * time.Second,
		CheckCompatibility: false,
	}
}

// CollectionConfig returns the collection parameters the client enforces.
func (c *Config) CollectionConfig() CollectionConfig {
	return CollectionConfig{
		Name:       c.Collection,
		VectorSize: c.VectorSize,
		Distance:   c.Distance,
	}
}
