package tracer

// Config controls span export for the tracer.
type Config struct {
	// ServiceName is attached to every exported span as service.name.
	ServiceName string `yaml:"service_name" envconfig:"TRACER_SERVICE_NAME"`

	// AppEnv is attached as deployment.environment, e.g. "production".
	AppEnv string `yaml:"app_env" envconfig:"APP_ENV"`

	// EnableExport turns on the OTLP HTTP exporter. Spans are still created
	// (and propagated) when export is off.
	EnableExport bool `yaml:"enable_export" envconfig:"TRACER_ENABLE_EXPORT"`

	// Endpoint is the full OTLP traces URL, e.g.
	// "http://otel-collector:4318/v1/traces". When empty the exporter falls
	// back to the OTEL_EXPORTER_OTLP_* environment variables.
	Endpoint string `yaml:"endpoint" envconfig:"TRACER_OTLP_ENDPOINT"`
}
