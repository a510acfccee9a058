package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the gateway's core metrics.
type Metrics struct {
	// Socket server metrics
	ConnectionsActive *prometheus.GaugeVec
	ConnectionsTotal  *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	MessagesProcessed *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	DecodeErrors      prometheus.Counter

	// HTTP bridge metrics
	BridgeRequests *prometheus.CounterVec
	BridgeDuration prometheus.Histogram

	// Store metrics
	StoreUp      prometheus.Gauge
	StoreQueries *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all gateway metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "socket",
				Name:      "connections_active",
				Help:      "Number of open client connections",
			},
			[]string{"transport"},
		),

		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "socket",
				Name:      "connections_total",
				Help:      "Total number of accepted client connections",
			},
			[]string{"transport"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of messages decoded from clients",
			},
			[]string{"transport"},
		),

		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "messages",
				Name:      "processed_total",
				Help:      "Total number of messages answered, by outcome status",
			},
			[]string{"status"},
		),

		PipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "duration_seconds",
				Help:      "Per-message pipeline duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		DecodeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "messages",
				Name:      "decode_errors_total",
				Help:      "Total number of malformed or oversized frames",
			},
		),

		BridgeRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "bridge",
				Name:      "requests_total",
				Help:      "Total number of HTTP bridge requests, by relayed status",
			},
			[]string{"status"},
		),

		BridgeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "bridge",
				Name:      "duration_seconds",
				Help:      "HTTP bridge request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		StoreUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gateway",
				Subsystem: "store",
				Name:      "up",
				Help:      "Whether the credential store answered its last ping (0=down, 1=up)",
			},
		),

		StoreQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "store",
				Name:      "queries_total",
				Help:      "Total number of store lookups, by kind",
			},
			[]string{"kind"},
		),
	}
}

// ObservePipeline records one pipeline stage duration.
func (m *Metrics) ObservePipeline(stage string, d time.Duration) {
	m.PipelineDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// collectors returns every core metric for bulk registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ConnectionsActive,
		m.ConnectionsTotal,
		m.MessagesReceived,
		m.MessagesProcessed,
		m.PipelineDuration,
		m.DecodeErrors,
		m.BridgeRequests,
		m.BridgeDuration,
		m.StoreUp,
		m.StoreQueries,
	}
}
