package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitChecks      *prometheus.CounterVec
	RateLimitRejections  *prometheus.CounterVec
	RateLimitStoreErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		RateLimitChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_ratelimit_checks_total",
			Help: "Rate limit checks by scope",
		}, []string{"scope"}),
		RateLimitRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_ratelimit_rejections_total",
			Help: "Rate limit rejections by scope",
		}, []string{"scope"}),
		RateLimitStoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_ratelimit_store_errors_total",
			Help: "Store failures during rate limit checks (requests failed open)",
		}),
	}
}

func (m *Metrics) RecordCheck(scope string) {
	m.RateLimitChecks.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordRejection(scope string) {
	m.RateLimitRejections.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordStoreError() {
	m.RateLimitStoreErrors.Inc()
}
