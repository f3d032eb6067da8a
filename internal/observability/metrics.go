// Package observability provides metrics and tracing for the live document
// subsystem.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the subsystem's Prometheus instruments. A nil *Metrics is
// valid everywhere and records nothing, so tests and tools can skip the
// registry entirely.
type Metrics struct {
	resolutions    *prometheus.CounterVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	dedupeJoins    prometheus.Counter
	cacheEvictions prometheus.Counter
	elaborations   *prometheus.CounterVec
	elabDuration   prometheus.Histogram
	migrations     *prometheus.CounterVec
	liveDocs       prometheus.Gauge
}

// NewMetrics registers the subsystem's instruments with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chalkboard",
			Name:      "ref_resolutions_total",
			Help:      "Reference resolutions by outcome.",
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chalkboard",
			Name:      "livedoc_cache_hits_total",
			Help:      "Live document cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chalkboard",
			Name:      "livedoc_cache_misses_total",
			Help:      "Live document cache misses.",
		}),
		dedupeJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chalkboard",
			Name:      "livedoc_dedupe_joins_total",
			Help:      "Callers that joined an in-flight resolution instead of starting one.",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chalkboard",
			Name:      "livedoc_cache_evictions_total",
			Help:      "Explicit live document cache evictions.",
		}),
		elaborations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chalkboard",
			Name:      "elaborations_total",
			Help:      "Elaboration pipeline runs by validated-model tag.",
		}, []string{"tag"}),
		elabDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chalkboard",
			Name:      "elaboration_duration_seconds",
			Help:      "Elaboration and validation duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chalkboard",
			Name:      "theory_migrations_total",
			Help:      "Theory migrations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		liveDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chalkboard",
			Name:      "live_documents",
			Help:      "Live documents currently cached.",
		}),
	}
	reg.MustRegister(
		m.resolutions, m.cacheHits, m.cacheMisses, m.dedupeJoins,
		m.cacheEvictions, m.elaborations, m.elabDuration, m.migrations,
		m.liveDocs,
	)
	return m
}

// ObserveResolution records a resolution outcome ("ok", "not_found",
// "permission", "error").
func (m *Metrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

// ObserveCacheHit records a cache hit.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// ObserveCacheMiss records a cache miss.
func (m *Metrics) ObserveCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// ObserveDedupeJoin records a caller piggybacking on an in-flight fetch.
func (m *Metrics) ObserveDedupeJoin() {
	if m == nil {
		return
	}
	m.dedupeJoins.Inc()
}

// ObserveEviction records an explicit cache eviction.
func (m *Metrics) ObserveEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// ObserveElaboration records one pipeline run.
func (m *Metrics) ObserveElaboration(tag string, d time.Duration) {
	if m == nil {
		return
	}
	m.elaborations.WithLabelValues(tag).Inc()
	m.elabDuration.Observe(d.Seconds())
}

// ObserveMigration records a migration attempt.
func (m *Metrics) ObserveMigration(kind, outcome string) {
	if m == nil {
		return
	}
	m.migrations.WithLabelValues(kind, outcome).Inc()
}

// SetLiveDocuments records the current cached live document count.
func (m *Metrics) SetLiveDocuments(n int) {
	if m == nil {
		return
	}
	m.liveDocs.Set(float64(n))
}
