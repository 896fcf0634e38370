package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts publishes and handler invocations.
type Metrics struct {
	Published *prometheus.CounterVec
	Delivered *prometheus.CounterVec
}

// NewMetrics registers bus metrics on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_events_published_total",
			Help: "Publish calls by event and outcome",
		}, []string{"event", "outcome"}),
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_events_delivered_total",
			Help: "Handler invocations by event and outcome",
		}, []string{"event", "outcome"}),
	}
}
