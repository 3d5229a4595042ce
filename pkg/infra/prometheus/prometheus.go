package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		5, 10, 25,
		50, 100, 250,
		500, 1000, 2500,
		5000, 10000, 30000,
	}

	EdgeRequestTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"route", "method", "status"},
	)

	EdgeRequestLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_latency_ms",
			Help:    "Request latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"type"}, // "total" or "upstream"
	)

	EdgeUpstreamLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_upstream_latency_ms",
			Help:    "Upstream latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"upstream"},
	)

	EdgeUpstreamErrors = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_upstream_errors_total",
			Help: "Failed upstream exchanges by kind",
		},
		[]string{"upstream", "kind"},
	)

	EdgeConnections = promauto.With(registerer).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edge_connections",
			Help: "Number of in-flight requests",
		},
		[]string{"state"},
	)

	ResolverRefreshTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_resolver_refresh_total",
			Help: "Upstream address lookups by result",
		},
		[]string{"upstream", "result"},
	)
)

type MetricsConfig struct {
	EnableLatency         bool // Basic latency metrics
	EnableUpstreamLatency bool // Per-upstream latency
	EnableConnections     bool // In-flight request tracking
	EnablePerRoute        bool // Route label on request totals
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		EnableLatency:         true,
		EnableUpstreamLatency: true,
		EnableConnections:     false,
		EnablePerRoute:        true,
	}
}

var Config = DefaultMetricsConfig()

func Initialize(cfg MetricsConfig) {
	Config = cfg
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

func Registry() *prometheus.Registry {
	return registry
}
