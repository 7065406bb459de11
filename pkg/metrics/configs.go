package metrics

// Default port for metrics server if none is specified.
const DefaultMetricsAddress = ":9090"

const (
	defaultNamespace = "screensim"
	defaultPath      = "/metrics"
)

// Buckets for pipeline stage durations, from fast index calls up to slow
// decodes of very large screenshots.
var stageBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Config defines the configuration structure for the Prometheus metrics server.
type Config struct {
	// Address determines the network address where the Prometheus
	// metrics HTTP server listens, e.g. ":9090" or "127.0.0.1:9100".
	//
	// Default: ":9090"
	Address string `yaml:"address" envconfig:"METRICS_ADDRESS"`

	// Path the registry is served on. Default: "/metrics".
	Path string `yaml:"path" envconfig:"METRICS_PATH"`

	// EnableDefaultCollectors controls whether the built-in Go runtime
	// and process metrics are automatically registered.
	EnableDefaultCollectors bool `yaml:"enable_default_collectors" envconfig:"METRICS_ENABLE_DEFAULT_COLLECTORS"`

	// Namespace prefixes every pipeline metric.
	//
	// Example:
	//   Namespace: "screensim"
	//   → metric name becomes "screensim_pipeline_requests_total"
	//
	// Default: "screensim"
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`

	// ServiceName is attached as a constant "service" label to every metric.
	ServiceName string `yaml:"service_name" envconfig:"METRICS_SERVICE_NAME"`

	// Enabled starts the HTTP server. Collectors are recorded either way.
	Enabled bool `yaml:"enabled" envconfig:"METRICS_ENABLED"`
}

// DefaultConfig returns an enabled configuration listening on :9090.
func DefaultConfig() Config {
	return Config{
		Address:                 DefaultMetricsAddress,
		Path:                    defaultPath,
		EnableDefaultCollectors: true,
		Namespace:               defaultNamespace,
		ServiceName:             "screensim",
		Enabled:                 true,
	}
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultMetricsAddress
	}
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}
	return c
}
