// Package metrics содержит Prometheus-метрики процесса кодов подтверждения и HTTP.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics группирует все счетчики приложения
type Metrics struct {
	registry *prometheus.Registry

	codesIssued      *prometheus.CounterVec
	issuanceRefused  *prometheus.CounterVec
	validations      *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New регистрирует метрики в отдельном реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homepage",
			Name:      "verification_codes_issued_total",
			Help:      "Issued verification codes by purpose.",
		}, []string{"purpose"}),
		issuanceRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homepage",
			Name:      "verification_issuance_refused_total",
			Help:      "Refused code issuance by purpose and reason.",
		}, []string{"purpose", "reason"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homepage",
			Name:      "verification_validations_total",
			Help:      "Code validations by purpose and result.",
		}, []string{"purpose", "result"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homepage",
			Name:      "mail_dispatch_failures_total",
			Help:      "Mail dispatch failures by category.",
		}, []string{"category"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "homepage",
			Name:      "verification_store_errors_total",
			Help:      "Verification store failures by operation.",
		}, []string{"op"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "homepage",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.codesIssued,
		m.issuanceRefused,
		m.validations,
		m.dispatchFailures,
		m.storeErrors,
		m.httpDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler отдает метрики в текстовом формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry нужен тестам для чтения значений
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CodeIssued(purpose string) {
	m.codesIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IssuanceRefused(purpose, reason string) {
	m.issuanceRefused.WithLabelValues(purpose, reason).Inc()
}

func (m *Metrics) Validation(purpose, result string) {
	m.validations.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) DispatchFailed(category string) {
	m.dispatchFailures.WithLabelValues(category).Inc()
}

func (m *Metrics) StoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

// ObserveHTTP записывает длительность обработанного запроса
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
