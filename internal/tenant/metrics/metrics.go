package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Resolutions    *prometheus.CounterVec
	ResolutionMiss *prometheus.CounterVec
	Writes         *prometheus.CounterVec
	Disconnects    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_tenant_resolutions_total",
			Help: "Tenant resolutions by kind (installation, channel)",
		}, []string{"kind"}),
		ResolutionMiss: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_tenant_resolution_misses_total",
			Help: "Tenant resolutions that found no record, by kind",
		}, []string{"kind"}),
		Writes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stockalert_tenant_writes_total",
			Help: "Tenant write operations by kind (installation, channel_default)",
		}, []string{"kind"}),
		Disconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stockalert_tenant_disconnects_total",
			Help: "Installations disconnected from the integration",
		}),
	}
}

func (m *Metrics) RecordResolution(kind string) {
	m.Resolutions.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordResolutionMiss(kind string) {
	m.ResolutionMiss.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordWrite(kind string) {
	m.Writes.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordDisconnect() {
	m.Disconnects.Inc()
}
