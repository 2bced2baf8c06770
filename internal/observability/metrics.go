package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/services/alerting"
)

const namespace = "hms"

// Metrics holds the process's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	eventsCaptured    *prometheus.CounterVec
	cycles            *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
	alertsInserted    prometheus.Counter
	candidatesDropped prometheus.Counter
	deliveries        *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsCaptured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_captured_total",
			Help:      "Audit events appended, by table and action.",
		}, []string{"table", "action"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_cycles_total",
			Help:      "Alert evaluation cycles attempted, by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_cycle_duration_seconds",
			Help:      "Duration of alert cycles that ran.",
			Buckets:   prometheus.DefBuckets,
		}),
		alertsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_inserted_total",
			Help:      "Alerts stored by completed cycles.",
		}),
		candidatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_candidates_dropped_total",
			Help:      "Alert candidates rejected by the store.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Presented notifications, by how their display ended.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsCaptured,
		m.cycles,
		m.cycleDuration,
		m.alertsInserted,
		m.candidatesDropped,
		m.deliveries,
		m.requests,
		m.requestDuration,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCapture counts one captured audit event
func (m *Metrics) ObserveCapture(table string, action models.AuditAction) {
	m.eventsCaptured.WithLabelValues(table, string(action)).Inc()
}

// ObserveCycle records one attempted alert cycle
func (m *Metrics) ObserveCycle(report alerting.CycleReport) {
	m.cycles.WithLabelValues(string(report.Outcome)).Inc()
	if report.Outcome == alerting.OutcomeSkipped {
		return
	}
	m.cycleDuration.Observe(report.Duration.Seconds())
	if report.Outcome == alerting.OutcomeCompleted {
		m.alertsInserted.Add(float64(report.Result.Inserted))
		m.candidatesDropped.Add(float64(report.Result.Dropped))
	}
}

// ObserveDelivery counts one ended notification display
func (m *Metrics) ObserveDelivery(outcome string) {
	m.deliveries.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
