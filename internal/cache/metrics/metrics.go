package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheHits          *prometheus.CounterVec
	CacheMisses        prometheus.Counter
	CacheLoads         prometheus.Counter
	CacheFarErrors     prometheus.Counter
	CacheInvalidations prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_cache_hits_total",
			Help: "Cache hits by tier",
		}, []string{"tier"}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_cache_misses_total",
			Help: "Full cache misses that invoked the loader",
		}),
		CacheLoads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_cache_loads_total",
			Help: "Loader invocations (durable store reads on cache miss)",
		}),
		CacheFarErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_cache_far_errors_total",
			Help: "Errors from the shared cache tier, swallowed per the degradation policy",
		}),
		CacheInvalidations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_cache_invalidations_total",
			Help: "Explicit invalidations on mutation paths",
		}),
	}
}

func (m *Metrics) RecordHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) RecordMiss() {
	m.CacheMisses.Inc()
}

func (m *Metrics) RecordLoad() {
	m.CacheLoads.Inc()
}

func (m *Metrics) RecordFarError() {
	m.CacheFarErrors.Inc()
}

func (m *Metrics) RecordInvalidation() {
	m.CacheInvalidations.Inc()
}
