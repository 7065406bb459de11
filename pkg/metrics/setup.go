package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry, the /metrics HTTP server and the
// pipeline collectors.
type Metrics struct {
	Server      *http.Server
	Registry    *prometheus.Registry
	serviceName string

	pipelineRequests *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	dedupDropped     *prometheus.CounterVec
}

func NewMetrics(cfg Config) *Metrics {
	cfg = cfg.withDefaults()
	registry := prometheus.NewRegistry()

	wrappedRegistry := prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)

	if cfg.EnableDefaultCollectors {
		wrappedRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m := &Metrics{
		Registry:    registry,
		serviceName: cfg.ServiceName,
		pipelineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Completed ingest and query runs by outcome.",
		}, []string{"flow", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages.",
			Buckets:   stageBuckets,
		}, []string{"flow", "stage"}),
		dedupDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "dedup",
			Name:      "dropped_total",
			Help:      "Search candidates dropped as near duplicates.",
		}, nil),
	}
	wrappedRegistry.MustRegister(m.pipelineRequests, m.stageDuration, m.dedupDropped)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.Server = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return m
}

// ObserveRequest counts one finished run of flow ("ingest" or "query").
func (m *Metrics) ObserveRequest(flow, outcome string) {
	m.pipelineRequests.WithLabelValues(flow, outcome).Inc()
}

// ObserveStage records how long stage took within flow.
func (m *Metrics) ObserveStage(flow, stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(flow, stage).Observe(d.Seconds())
}

// AddDedupDropped counts candidates removed by the near-duplicate filter.
func (m *Metrics) AddDedupDropped(n int) {
	if n <= 0 {
		return
	}
	m.dedupDropped.WithLabelValues().Add(float64(n))
}
