package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by use cases, outbound clients and the
// HTTP layer. A nil *Metrics records nothing.
type Metrics struct {
	usecaseRequests  *prometheus.CounterVec
	usecaseDuration  *prometheus.HistogramVec
	externalRequests *prometheus.CounterVec
	externalDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		usecaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usecase_requests_total",
			Help: "Total number of use case invocations.",
		}, []string{"use_case", "outcome"}),
		usecaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usecase_duration_seconds",
			Help:    "Duration of use case execution in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		externalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "external_requests_total",
			Help: "Outbound calls to collaborators by outcome.",
		}, []string{"peer", "endpoint", "outcome"}),
		externalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "external_request_duration_seconds",
			Help:    "Duration of outbound calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"peer", "endpoint"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.usecaseRequests, m.usecaseDuration,
			m.externalRequests, m.externalDuration,
			m.httpRequests, m.httpDuration,
		)
	}
	return m
}

func (m *Metrics) ObserveUseCase(useCase, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.usecaseRequests.WithLabelValues(useCase, outcome).Inc()
	m.usecaseDuration.WithLabelValues(useCase).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveExternal(peer, endpoint, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.externalRequests.WithLabelValues(peer, endpoint, outcome).Inc()
	m.externalDuration.WithLabelValues(peer, endpoint).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
