package isolation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts scoped and bypassed operations per collection.
type Metrics struct {
	Bypassed *prometheus.CounterVec
	Scoped   *prometheus.CounterVec
}

// NewMetrics registers the isolation counters on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Bypassed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_isolation_bypass_total",
			Help: "Operations on isolation-aware collections that ran outside the tenant boundary",
		}, []string{"collection"}),
		Scoped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_isolation_scoped_total",
			Help: "Operations on isolation-aware collections that were narrowed to the ambient tenant",
		}, []string{"collection", "operation"}),
	}
}
