package rabbit

// Config configures the RabbitMQ consumer that receives MinIO bucket
// notifications.
type Config struct {
	Connection Connection `yaml:"connection"`
	Channel    Channel    `yaml:"channel"`
	DeadLetter DeadLetter `yaml:"dead_letter"`
}

type Connection struct {
	Host           string `yaml:"host" envconfig:"RABBIT_HOST"`
	Port           uint   `yaml:"port" envconfig:"RABBIT_PORT"`
	User           string `yaml:"user" envconfig:"RABBIT_USER"`
	Password       string `yaml:"password" envconfig:"RABBIT_PASSWORD"`
	IsSSLEnabled   bool   `yaml:"ssl_enabled" envconfig:"RABBIT_SSL_ENABLED"`
	UseCert        bool   `yaml:"use_cert" envconfig:"RABBIT_USE_CERT"`
	CACertPath     string `yaml:"ca_cert_path" envconfig:"RABBIT_CA_CERT_PATH"`
	ClientCertPath string `yaml:"client_cert_path" envconfig:"RABBIT_CLIENT_CERT_PATH"`
	ClientKeyPath  string `yaml:"client_key_path" envconfig:"RABBIT_CLIENT_KEY_PATH"`
	ServerName     string `yaml:"server_name" envconfig:"RABBIT_SERVER_NAME"`
}

type Channel struct {
	// ExchangeName is the exchange the MinIO AMQP target publishes to.
	ExchangeName string `yaml:"exchange_name" envconfig:"RABBIT_EXCHANGE"`
	ExchangeType string `yaml:"exchange_type" envconfig:"RABBIT_EXCHANGE_TYPE"`
	RoutingKey   string `yaml:"routing_key" envconfig:"RABBIT_ROUTING_KEY"`
	QueueName    string `yaml:"queue_name" envconfig:"RABBIT_QUEUE"`
	// DelayToReconnect is the pause between reconnection attempts, in
	// milliseconds.
	DelayToReconnect int `yaml:"delay_to_reconnect" envconfig:"RABBIT_RECONNECT_DELAY_MS"`
	PrefetchCount    int `yaml:"prefetch_count" envconfig:"RABBIT_PREFETCH_COUNT"`
}

// DeadLetter routes rejected notifications to a separate queue. It is only
// declared when ExchangeName is set.
type DeadLetter struct {
	ExchangeName string `yaml:"exchange_name" envconfig:"RABBIT_DLX_EXCHANGE"`
	QueueName    string `yaml:"queue_name" envconfig:"RABBIT_DLX_QUEUE"`
	RoutingKey   string `yaml:"routing_key" envconfig:"RABBIT_DLX_ROUTING_KEY"`
	// Ttl is the per-message time to live in the main queue, in seconds.
	// Zero disables expiry.
	Ttl int `yaml:"ttl" envconfig:"RABBIT_DLX_TTL_SECONDS"`
}

func DefaultConfig() Config {
	return Config{
		Connection: Connection{
			Host: "localhost",
			Port: 5672,
			User: "guest",
		},
		Channel: Channel{
			ExchangeName:     "minio-events",
			ExchangeType:     "fanout",
			QueueName:        "screensim-ingest",
			DelayToReconnect: 1000,
			PrefetchCount:    4,
		},
	}
}
