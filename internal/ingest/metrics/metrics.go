package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Outcomes *prometheus.CounterVec
	Duration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_ingest_outcomes_total",
			Help: "Webhook pipeline terminal states (delivered, duplicate, rate_limited, unauthenticated, invalid, not_found, not_configured, delivery_failed, internal)",
		}, []string{"outcome"}),
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockalert_ingest_duration_seconds",
			Help:    "End-to-end webhook handling duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordOutcome(outcome string) {
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDuration(elapsed time.Duration) {
	m.Duration.Observe(elapsed.Seconds())
}
