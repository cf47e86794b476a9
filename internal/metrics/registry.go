// Package metrics exposes marketcache's Prometheus registry, grounded on
// the teacher's internal/interfaces/http/metrics.go MetricsRegistry: one
// struct holding every vector, registered eagerly via MustRegister, plus a
// promhttp.Handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds every metric marketcache exports.
type Registry struct {
	CacheLookups   *prometheus.CounterVec
	CacheHitRatio  prometheus.Gauge
	UpstreamCalls  *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec
	WSClients      prometheus.Gauge
	ArtifactUsage  prometheus.Gauge
}

// NewRegistry builds and registers every metric against a fresh
// prometheus.Registry.
func NewRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	r := &Registry{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketcache_cache_lookups_total",
			Help: "Cache lookups by outcome (hit, l2-hit, miss, unavailable).",
		}, []string{"outcome"}),
		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketcache_cache_hit_ratio",
			Help: "Cache hit ratio since startup: hit plus l2-hit lookups over hit, l2-hit and miss lookups.",
		}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketcache_upstream_calls_total",
			Help: "Upstream provider calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketcache_upstream_latency_seconds",
			Help:    "Upstream provider call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketcache_circuit_breaker_state",
			Help: "Circuit breaker state per endpoint (0=closed, 1=half-open, 2=open).",
		}, []string{"endpoint"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketcache_websocket_clients",
			Help: "Currently connected WebSocket clients.",
		}),
		ArtifactUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketcache_artifact_cache_usage_percent",
			Help: "Artifact cache usage as a percentage of its aggregate byte cap.",
		}),
	}

	reg.MustRegister(
		r.CacheLookups,
		r.CacheHitRatio,
		r.UpstreamCalls,
		r.UpstreamLatency,
		r.BreakerState,
		r.WSClients,
		r.ArtifactUsage,
	)
	return r, reg
}

// Handler returns the HTTP handler Prometheus should scrape.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RefreshCacheHitRatio recomputes the cumulative hit-ratio gauge from the
// raw lookup counters. Reading a counter's current value back out requires
// writing it into a client_model Metric first, the same round trip the
// teacher's updateCacheHitRatio uses in
// internal/interfaces/http/metrics.go.
func (r *Registry) RefreshCacheHitRatio() {
	hits := readCounter(r.CacheLookups, "hit") + readCounter(r.CacheLookups, "l2-hit")
	misses := readCounter(r.CacheLookups, "miss")
	total := hits + misses
	if total == 0 {
		return
	}
	r.CacheHitRatio.Set(hits / total)
}

func readCounter(vec *prometheus.CounterVec, label string) float64 {
	counter, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
