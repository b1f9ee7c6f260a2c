package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus collectors the server updates. Everything is
// registered on the server's own registry so multiple servers can coexist in
// one process.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	queriesTotal    *prometheus.CounterVec
	queryLatency    prometheus.Histogram
	docsIndexed     prometheus.Counter
	docsDeleted     prometheus.Counter
	flushes         prometheus.Counter
	segmentCount    prometheus.Gauge
	docCount        prometheus.Gauge
	pendingDocs     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total number of search queries by outcome.",
			},
			[]string{"outcome"},
		),
		queryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_query_duration_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		docsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_documents_indexed_total",
			Help: "Total number of documents accepted for indexing.",
		}),
		docsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_documents_deleted_total",
			Help: "Total number of document deletions accepted.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "index_flushes_total",
			Help: "Total number of explicit flush requests.",
		}),
		segmentCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_segments",
			Help: "Number of sealed segments in the index.",
		}),
		docCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_documents",
			Help: "Number of documents stored in sealed segments.",
		}),
		pendingDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_pending_documents",
			Help: "Number of buffered documents not yet flushed.",
		}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.queriesTotal,
		m.queryLatency,
		m.docsIndexed,
		m.docsDeleted,
		m.flushes,
		m.segmentCount,
		m.docCount,
		m.pendingDocs,
	)
	return m
}
