package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edushare"

// Исходы разрешения ссылки
const (
	OutcomeOK              = "ok"
	OutcomeNotFound        = "not_found"
	OutcomeRevoked         = "revoked"
	OutcomeExpired         = "expired"
	OutcomeBadPassword     = "bad_password"
	OutcomeLocked          = "locked"
	OutcomeResourceMissing = "resource_missing"
)

// Metrics метрики сервиса. Методы безопасны для nil-получателя,
// чтобы тесты могли не поднимать реестр.
type Metrics struct {
	registry *prometheus.Registry

	linksIssued         *prometheus.CounterVec
	resolutions         *prometheus.CounterVec
	locatorCollisions   prometheus.Counter
	locatorExhausted    prometheus.Counter
	submissionsRecorded prometheus.Counter
	submissionsDropped  prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}

	m.linksIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "share",
			Name:      "links_issued_total",
			Help:      "Total number of issued share links",
		},
		[]string{"resource_type"},
	)

	m.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "share",
			Name:      "resolutions_total",
			Help:      "Share link resolutions by outcome",
		},
		[]string{"outcome"},
	)

	m.locatorCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "share",
		Name:      "locator_collisions_total",
		Help:      "Locator collisions detected at insert time",
	})

	// Должна оставаться нулём; любое значение > 0 повод для алерта
	m.locatorExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "share",
		Name:      "locator_exhausted_total",
		Help:      "Issuance failures after all locator attempts collided",
	})

	m.submissionsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "submissions",
		Name:      "recorded_total",
		Help:      "Quiz submissions persisted",
	})

	m.submissionsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "submissions",
		Name:      "dropped_total",
		Help:      "Quiz submissions lost because of a full buffer or write failures",
	})

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		m.linksIssued,
		m.resolutions,
		m.locatorCollisions,
		m.locatorExhausted,
		m.submissionsRecorded,
		m.submissionsDropped,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// Handler отдаёт метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) LinkIssued(resourceType string) {
	if m == nil {
		return
	}
	m.linksIssued.WithLabelValues(resourceType).Inc()
}

func (m *Metrics) Resolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LocatorCollision() {
	if m == nil {
		return
	}
	m.locatorCollisions.Inc()
}

func (m *Metrics) LocatorExhausted() {
	if m == nil {
		return
	}
	m.locatorExhausted.Inc()
}

func (m *Metrics) SubmissionRecorded() {
	if m == nil {
		return
	}
	m.submissionsRecorded.Inc()
}

func (m *Metrics) SubmissionDropped() {
	if m == nil {
		return
	}
	m.submissionsDropped.Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
