// Package server exposes an index over an HTTP JSON API with Prometheus
// instrumentation.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sift/internal/config"
	"sift/internal/fieldcache"
	"sift/internal/index"
)

// defaultQueryLimit caps query responses when the request leaves the limit
// unset.
const defaultQueryLimit = 10

// Server serves index operations and search queries over HTTP.
type Server struct {
	idx        *index.Index
	cache      *fieldcache.Cache
	registry   *prometheus.Registry
	metrics    *metrics
	metricsCfg config.MetricsConfig
	logger     *slog.Logger
}

// New wraps an open index in an HTTP server. The caller keeps ownership of
// the index and closes it after the server stops.
func New(idx *index.Index, metricsCfg config.MetricsConfig) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		idx:        idx,
		cache:      fieldcache.New(),
		registry:   registry,
		metrics:    newMetrics(registry),
		metricsCfg: metricsCfg,
		logger:     slog.Default().With("component", "server"),
	}
	s.updateIndexGauges()
	return s
}

// Handler returns the routed HTTP handler, instrumentation included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /docs/{id}", s.handleGetDoc)
	mux.HandleFunc("DELETE /docs/{id}", s.handleDeleteDoc)
	mux.HandleFunc("POST /flush", s.handleFlush)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metricsCfg.Enabled {
		mux.Handle("GET "+s.metricsCfg.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return s.instrument(mux)
}

func (s *Server) updateIndexGauges() {
	var docs uint64
	for _, info := range s.idx.Segments() {
		docs += info.NumDocs
	}
	s.metrics.segmentCount.Set(float64(s.idx.NumSegments()))
	s.metrics.docCount.Set(float64(docs))
	s.metrics.pendingDocs.Set(float64(s.idx.PendingDocs()))
}
