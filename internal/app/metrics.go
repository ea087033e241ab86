package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corey/erpkb/internal/domain/cache"
)

// Metrics owns the daemon's Prometheus registry and the cache counter
// families shared by all backends, labeled per backend.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
}

// NewMetrics creates a private registry with Go runtime and process
// collectors plus the cache counter families.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpkb_cache_hits_total",
			Help: "Cache hits, by backend.",
		}, []string{"backend"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpkb_cache_misses_total",
			Help: "Cache misses, by backend.",
		}, []string{"backend"}),
		cacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "erpkb_cache_evictions_total",
			Help: "Cache entries evicted, by backend.",
		}, []string{"backend"}),
	}
}

// Registry returns the underlying registry, e.g. for the socket server's
// request counters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ForBackend returns the cache.Metrics view for one backend.
func (m *Metrics) ForBackend(backend string) cache.Metrics {
	return backendCacheMetrics{m: m, backend: backend}
}

type backendCacheMetrics struct {
	m       *Metrics
	backend string
}

func (b backendCacheMetrics) Hit()        { b.m.cacheHits.WithLabelValues(b.backend).Inc() }
func (b backendCacheMetrics) Miss()       { b.m.cacheMisses.WithLabelValues(b.backend).Inc() }
func (b backendCacheMetrics) Evict(n int) { b.m.cacheEvictions.WithLabelValues(b.backend).Add(float64(n)) }
