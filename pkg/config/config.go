// Package config assembles the screensim configuration from defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Aleph-Alpha/screensim/pkg/embedding"
	"github.com/Aleph-Alpha/screensim/pkg/imageproc"
	"github.com/Aleph-Alpha/screensim/pkg/kafka"
	"github.com/Aleph-Alpha/screensim/pkg/logger"
	"github.com/Aleph-Alpha/screensim/pkg/metrics"
	"github.com/Aleph-Alpha/screensim/pkg/minio"
	"github.com/Aleph-Alpha/screensim/pkg/notification"
	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
	"github.com/Aleph-Alpha/screensim/pkg/postgres"
	"github.com/Aleph-Alpha/screensim/pkg/qdrant"
	"github.com/Aleph-Alpha/screensim/pkg/rabbit"
	"github.com/Aleph-Alpha/screensim/pkg/server"
	"github.com/Aleph-Alpha/screensim/pkg/tracer"
)

// PathEnv names the environment variable consulted when no config file
// path is given explicitly.
const PathEnv = "SCREENSIM_CONFIG"

type Config struct {
	Logger       logger.Config       `yaml:"logger"`
	Server       server.Config       `yaml:"server"`
	Minio        minio.Config        `yaml:"minio"`
	Qdrant       qdrant.Config       `yaml:"qdrant"`
	Embedding    embedding.Config    `yaml:"embedding"`
	Preprocess   imageproc.Config    `yaml:"preprocess"`
	Pipeline     pipeline.Config     `yaml:"pipeline"`
	Metrics      metrics.Config      `yaml:"metrics"`
	Tracer       tracer.Config       `yaml:"tracer"`
	Postgres     postgres.Config     `yaml:"postgres"`
	Notification notification.Config `yaml:"notification"`
	Rabbit       rabbit.Config       `yaml:"rabbit"`
	Kafka        kafka.Config        `yaml:"kafka"`
}

func DefaultConfig() Config {
	return Config{
		Logger:     logger.Config{Level: logger.Info, ServiceName: "screensim"},
		Server:     server.DefaultConfig(),
		Qdrant:     *qdrant.DefaultConfig(),
		Embedding:  embedding.DefaultConfig(),
		Preprocess: imageproc.Config{TargetWidth: imageproc.DefaultTargetWidth, JPEGQuality: imageproc.DefaultJPEGQuality},
		Pipeline:   pipeline.DefaultConfig(),
		Metrics:    metrics.DefaultConfig(),
		Tracer:     tracer.Config{ServiceName: "screensim"},
		Postgres:   postgres.DefaultConfig(),
		Rabbit:     rabbit.DefaultConfig(),
		Kafka:      kafka.DefaultConfig(),
	}
}

// Load starts from DefaultConfig, overlays the YAML file at path (or at
// $SCREENSIM_CONFIG when path is empty) and then the environment. The
// result is not validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	for _, section := range cfg.sections() {
		if err := envconfig.Process("", section); err != nil {
			return Config{}, fmt.Errorf("failed to read environment: %w", err)
		}
	}
	return cfg, nil
}

func (c *Config) sections() []any {
	return []any{
		&c.Logger, &c.Server, &c.Minio, &c.Qdrant, &c.Embedding, &c.Preprocess,
		&c.Pipeline, &c.Metrics, &c.Tracer, &c.Postgres, &c.Notification,
		&c.Rabbit, &c.Kafka,
	}
}

// Validate reports every missing required setting and every invalid value
// in a single error.
func (c Config) Validate() error {
	required := map[string]bool{
		"MINIO_ENDPOINT":        c.Minio.Connection.Endpoint != "",
		"MINIO_ACCESS_KEY":      c.Minio.Connection.AccessKeyID != "",
		"MINIO_SECRET_KEY":      c.Minio.Connection.SecretAccessKey != "",
		"QDRANT_ENDPOINT":       c.Qdrant.Endpoint != "",
		"QDRANT_COLLECTION":     c.Qdrant.Collection != "",
		"QDRANT_VECTOR_SIZE":    c.Qdrant.VectorSize > 0,
		"EMBEDDING_SERVICE_URL": c.Embedding.Endpoint != "",
	}
	if c.Notification.AMQPEnabled {
		required["RABBIT_HOST"] = c.Rabbit.Connection.Host != ""
		required["RABBIT_QUEUE"] = c.Rabbit.Channel.QueueName != ""
	}
	if c.Notification.KafkaEnabled {
		required["KAFKA_BROKERS"] = len(c.Kafka.Brokers) > 0
		required["KAFKA_TOPIC"] = c.Kafka.Topic != ""
	}

	var problems []string
	for key, ok := range required {
		if !ok {
			problems = append(problems, "missing "+key)
		}
	}
	sort.Strings(problems)

	for _, err := range []error{c.Pipeline.Validate(), c.Notification.Validate()} {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
