package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes.
const (
	outcomeResolved  = "resolved"
	outcomeAnonymous = "anonymous"
	outcomeNotFound  = "not_found"
	outcomeForbidden = "forbidden"
	outcomeError     = "error"
)

type Metrics struct {
	Resolutions *prometheus.CounterVec
}

// NewMetrics registers the resolver counters on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Resolutions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_tenant_resolutions_total",
			Help: "Tenant context resolutions by deployment mode and outcome",
		}, []string{"mode", "outcome"}),
	}
}

func (m *Metrics) observe(mode, outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(mode, outcome).Inc()
}
