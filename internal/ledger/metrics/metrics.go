package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsRecorded  prometheus.Counter
	EventsDuplicate prometheus.Counter
	PurgedEvents    prometheus.Counter
	PurgeDuration   prometheus.Histogram
	PurgeErrors     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_ledger_events_recorded_total",
			Help: "Inbound events recorded for the first time",
		}),
		EventsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_ledger_events_duplicate_total",
			Help: "Inbound events rejected as already recorded",
		}),
		PurgedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_ledger_purged_events_total",
			Help: "Processed events removed by the retention worker",
		}),
		PurgeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockalert_ledger_purge_duration_seconds",
			Help:    "Duration of retention purge runs",
			Buckets: prometheus.DefBuckets,
		}),
		PurgeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_ledger_purge_errors_total",
			Help: "Failed retention purge runs",
		}),
	}
}

func (m *Metrics) RecordNew() {
	m.EventsRecorded.Inc()
}

func (m *Metrics) RecordDuplicate() {
	m.EventsDuplicate.Inc()
}

func (m *Metrics) RecordPurge(deleted int, elapsed time.Duration) {
	m.PurgedEvents.Add(float64(deleted))
	m.PurgeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordPurgeError() {
	m.PurgeErrors.Inc()
}
