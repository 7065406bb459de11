package server

import "time"

// Config configures the HTTP transport.
type Config struct {
	Address      string        `yaml:"address" envconfig:"SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	// BodyLimit caps request bodies in bytes.
	BodyLimit int `yaml:"body_limit" envconfig:"SERVER_BODY_LIMIT"`
	// ReadinessTimeout bounds the one-time readiness checks.
	ReadinessTimeout time.Duration `yaml:"readiness_timeout" envconfig:"SERVER_READINESS_TIMEOUT"`
}

func DefaultConfig() Config {
	return Config{
		Address:          ":8000",
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     2 * time.Minute,
		BodyLimit:        64 * 1024,
		ReadinessTimeout: 10 * time.Second,
	}
}
