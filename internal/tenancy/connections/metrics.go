package connections

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks connection cache activity.
type Metrics struct {
	Open        prometheus.Gauge
	Dials       *prometheus.CounterVec
	SharedDials prometheus.Counter
}

// NewMetrics registers cache metrics on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Open: f.NewGauge(prometheus.GaugeOpts{
			Name: "tenantplane_tenant_connections",
			Help: "Tenant data-store connections currently cached",
		}),
		Dials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_tenant_connection_dials_total",
			Help: "Tenant connection attempts by outcome",
		}, []string{"outcome"}),
		SharedDials: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantplane_tenant_connection_shared_dials_total",
			Help: "Get calls that waited on another caller's in-flight dial",
		}),
	}
}
