package minio

import "time"

const (
	connectionHealthCheckInterval       = 15 * time.Second
	defaultSmallFileThreshold     int64 = 4 * 1024 * 1024
	defaultInitialBufferSize            = 8 * 1024 * 1024
	defaultPresignExpiry                = time.Hour
	defaultOperationTimeout             = 30 * time.Second
)

// Config defines the top-level configuration for MinIO.
type Config struct {
	Connection      ConnectionConfig `yaml:"connection"`
	DownloadConfig  DownloadConfig   `yaml:"download"`
	PresignedConfig PresignedConfig  `yaml:"presigned"`
}

// ConnectionConfig contains MinIO server connection details.
type ConnectionConfig struct {
	Endpoint        string        `yaml:"endpoint" envconfig:"MINIO_ENDPOINT"`            // e.g. "localhost:9000"
	AccessKeyID     string        `yaml:"access_key_id" envconfig:"MINIO_ACCESS_KEY"`     // MinIO access key
	SecretAccessKey string        `yaml:"secret_access_key" envconfig:"MINIO_SECRET_KEY"` // MinIO secret key
	UseSSL          bool          `yaml:"use_ssl" envconfig:"MINIO_SECURE"`               // "https" when true
	Region          string        `yaml:"region" envconfig:"MINIO_REGION"`                // e.g. "us-east-1"
	Timeout         time.Duration `yaml:"timeout" envconfig:"MINIO_OPERATION_TIMEOUT"`    // per-call bound
}

// DownloadConfig tunes how fetched objects are buffered.
type DownloadConfig struct {
	SmallFileThreshold int64 `yaml:"small_file_threshold" envconfig:"MINIO_SMALL_FILE_THRESHOLD"` // below this, read into an exact-size slice
	InitialBufferSize  int   `yaml:"initial_buffer_size" envconfig:"MINIO_INITIAL_BUFFER_SIZE"`   // pooled buffer size for larger objects
}

// PresignedConfig contains configuration options for presigned URLs.
type PresignedConfig struct {
	ExpiryDuration time.Duration `yaml:"expiry" envconfig:"MINIO_PRESIGN_EXPIRY"`     // defaults to one hour
	BaseURL        string        `yaml:"base_url" envconfig:"MINIO_PRESIGN_BASE_URL"` // e.g. "https://files.example.com"
}

func (c Config) withDefaults() Config {
	if c.DownloadConfig.SmallFileThreshold <= 0 {
		c.DownloadConfig.SmallFileThreshold = defaultSmallFileThreshold
	}
	if c.DownloadConfig.InitialBufferSize <= 0 {
		c.DownloadConfig.InitialBufferSize = defaultInitialBufferSize
	}
	if c.PresignedConfig.ExpiryDuration <= 0 {
		c.PresignedConfig.ExpiryDuration = defaultPresignExpiry
	}
	if c.Connection.Timeout <= 0 {
		c.Connection.Timeout = defaultOperationTimeout
	}
	return c
}
