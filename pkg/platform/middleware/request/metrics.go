package request

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are labelled by chi route pattern, never by raw path, so tenant
// IDs and document IDs stay out of label values.
type Metrics struct {
	Latency  *prometheus.HistogramVec
	Requests *prometheus.CounterVec
}

// NewMetrics registers the HTTP collectors with reg. A nil reg yields
// unregistered collectors, which keeps tests independent of the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenantplane_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "tenantplane_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) observe(route, method string, status int, seconds float64) {
	m.Latency.WithLabelValues(route, method).Observe(seconds)
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
