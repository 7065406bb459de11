package notification

import "errors"

// Config selects which bucket-notification transports run and which bucket
// their events are accepted for.
type Config struct {
	// Bucket is the ingest bucket. Events for other buckets are acknowledged
	// and ignored.
	Bucket string `yaml:"bucket" envconfig:"NOTIFY_INGEST_BUCKET"`

	// AMQPEnabled starts the RabbitMQ consumer.
	AMQPEnabled bool `yaml:"amqp_enabled" envconfig:"NOTIFY_AMQP_ENABLED"`

	// KafkaEnabled starts the Kafka consumer.
	KafkaEnabled bool `yaml:"kafka_enabled" envconfig:"NOTIFY_KAFKA_ENABLED"`
}

// Enabled reports whether any transport is switched on.
func (c Config) Enabled() bool {
	return c.AMQPEnabled || c.KafkaEnabled
}

// Validate requires a bucket once a transport is enabled.
func (c Config) Validate() error {
	if c.Enabled() && c.Bucket == "" {
		return errors.New("missing NOTIFY_INGEST_BUCKET")
	}
	return nil
}
