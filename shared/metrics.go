package shared

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ServiceMetrics groups the Prometheus collectors the service exports
type ServiceMetrics struct {
	Registry *prometheus.Registry

	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	registrations        prometheus.Counter
	logins               *prometheus.CounterVec
	applicationsSubmit   *prometheus.CounterVec
	applicationDecisions *prometheus.CounterVec
	paymentUpdates       *prometheus.CounterVec
	notifications        *prometheus.CounterVec
	notificationQueue    prometheus.Gauge
	cacheLookups         *prometheus.CounterVec
}

// NewServiceMetrics registers all collectors on a fresh registry
func NewServiceMetrics(namespace string) *ServiceMetrics {
	registry := prometheus.NewRegistry()
	m := &ServiceMetrics{
		Registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_registrations_total",
			Help:      "Successful user registrations.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		applicationsSubmit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_submitted_total",
			Help:      "Application submissions by category and result.",
		}, []string{"category", "result"}),
		applicationDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "application_decisions_total",
			Help:      "Recorded application status decisions.",
		}, []string{"status"}),
		paymentUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_updates_total",
			Help:      "Payment status changes by target status.",
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and result.",
		}, []string{"kind", "result"}),
		notificationQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_queue_depth",
			Help:      "Notification tasks waiting for a worker.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.registrations,
		m.logins,
		m.applicationsSubmit,
		m.applicationDecisions,
		m.paymentUpdates,
		m.notifications,
		m.notificationQueue,
		m.cacheLookups,
	)

	return m
}

// The recorders below are nil-safe so components can run without metrics.

func (m *ServiceMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *ServiceMetrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *ServiceMetrics) RecordLogin(success bool) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(resultLabel(success)).Inc()
}

func (m *ServiceMetrics) RecordApplication(category string, success bool) {
	if m == nil {
		return
	}
	m.applicationsSubmit.WithLabelValues(category, resultLabel(success)).Inc()
}

func (m *ServiceMetrics) RecordDecision(status string) {
	if m == nil {
		return
	}
	m.applicationDecisions.WithLabelValues(status).Inc()
}

func (m *ServiceMetrics) RecordPaymentUpdate(status string) {
	if m == nil {
		return
	}
	m.paymentUpdates.WithLabelValues(status).Inc()
}

func (m *ServiceMetrics) RecordNotification(kind string, success bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, resultLabel(success)).Inc()
}

func (m *ServiceMetrics) SetNotificationQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.notificationQueue.Set(float64(depth))
}

func (m *ServiceMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
