package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

type Metrics struct {
	// Latency: время отправки запроса оператора, включая бэкенд
	QueryDuration *prometheus.HistogramVec

	// Traffic: число отправок по режимам и исходам
	TotalQueries *prometheus.CounterVec

	// Errors: классификация отказов (validation, network, service, internal)
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - закрыт, 1 - открыт, 0.5 - полуоткрыт)
	CircuitBreakerState *prometheus.GaugeVec

	// Доступность сервисов по HealthGate (1 - online, 0 - offline, -1 - checking)
	ServiceHealth *prometheus.GaugeVec

	// Исходы обращений к кэшу агрегатов
	CacheLookups *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		QueryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ricemarket_query_duration_seconds",
			Help:    "Histogram of query submission latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"mode", "status"}),

		TotalQueries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ricemarket_queries_total",
			Help: "Total number of submitted queries.",
		}, []string{"mode", "status"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ricemarket_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "ricemarket_circuit_breaker_state",
			Help: "Current state of the backend circuit breaker (0=closed, 0.5=half-open, 1=open).",
		}, []string{"service"}),

		ServiceHealth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "ricemarket_service_health",
			Help: "Backend health as seen by the console (1=online, 0=offline, -1=checking).",
		}, []string{"service"}),

		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ricemarket_cache_lookups_total",
			Help: "Freshness cache lookups by outcome.",
		}, []string{"key", "outcome"}),
	}
}

// ObserveQuery фиксирует одну отправку. status: ok, warning или тип ошибки.
func (m *Metrics) ObserveQuery(mode domain.QueryMode, status string, took time.Duration) {
	m.TotalQueries.WithLabelValues(string(mode), status).Inc()
	m.QueryDuration.WithLabelValues(string(mode), status).Observe(took.Seconds())
}

func (m *Metrics) ObserveError(err error) {
	if kind := domain.ErrorKind(err); kind != "" {
		m.ErrorTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveCache реализует cache.Observer.
func (m *Metrics) ObserveCache(key, outcome string) {
	m.CacheLookups.WithLabelValues(key, outcome).Inc()
}

// ObserveBreaker подходит для connectors.Options.OnBreakerChange.
func (m *Metrics) ObserveBreaker(service string, _, to gobreaker.State) {
	v := 0.0
	switch to {
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 0.5
	}
	m.CircuitBreakerState.WithLabelValues(service).Set(v)
}

func (m *Metrics) ObserveHealth(service string, state domain.HealthState) {
	v := -1.0
	switch state {
	case domain.HealthOnline:
		v = 1
	case domain.HealthOffline:
		v = 0
	}
	m.ServiceHealth.WithLabelValues(service).Set(v)
}
