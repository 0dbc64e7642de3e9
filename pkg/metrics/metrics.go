package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus instruments on a private
// registry, so the /metrics endpoint exposes only what the engine
// itself records plus the standard Go runtime collectors.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	discoveries   prometheus.Counter
}

// New creates and registers the engine's instruments.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nlq",
				Name:      "queries_total",
				Help:      "Natural-language queries served, by classified type and outcome",
			},
			[]string{"type", "outcome"},
		),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "nlq",
				Name:      "query_duration_seconds",
				Help:      "End-to-end query handling latency",
				Buckets:   prometheus.DefBuckets,
			},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nlq",
			Name:      "cache_hits_total",
			Help:      "Result cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nlq",
			Name:      "cache_misses_total",
			Help:      "Result cache misses",
		}),
		discoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nlq",
			Name:      "schema_discoveries_total",
			Help:      "Successful schema discovery runs",
		}),
	}

	m.registry.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.cacheHits,
		m.cacheMisses,
		m.discoveries,
	)
	return m
}

// ObserveQuery records one served query.
func (m *Metrics) ObserveQuery(queryType, outcome string, seconds float64) {
	m.queriesTotal.WithLabelValues(queryType, outcome).Inc()
	m.queryDuration.Observe(seconds)
}

// ObserveCache records a cache lookup result.
func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveDiscovery records a successful schema discovery.
func (m *Metrics) ObserveDiscovery() {
	m.discoveries.Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
