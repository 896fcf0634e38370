package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Subscription actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

type Metrics struct {
	TenantsRegistered   prometheus.Counter
	ModuleSubscriptions *prometheus.CounterVec
	HookFailures        *prometheus.CounterVec
}

// New registers the tenant counters on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TenantsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantplane_tenants_registered_total",
			Help: "Total number of tenants registered",
		}),
		ModuleSubscriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_module_subscriptions_total",
			Help: "Module subscription changes by module and action",
		}, []string{"module", "action"}),
		HookFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_module_hook_failures_total",
			Help: "Lifecycle hooks that returned an error or panicked",
		}, []string{"module", "hook"}),
	}
}

func (m *Metrics) IncrementTenantRegistered() {
	if m == nil {
		return
	}
	m.TenantsRegistered.Inc()
}

func (m *Metrics) IncrementSubscription(module, action string) {
	if m == nil {
		return
	}
	m.ModuleSubscriptions.WithLabelValues(module, action).Inc()
}

func (m *Metrics) IncrementHookFailure(module, hook string) {
	if m == nil {
		return
	}
	m.HookFailures.WithLabelValues(module, hook).Inc()
}
