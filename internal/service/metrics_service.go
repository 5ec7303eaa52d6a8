package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsService registers and records the service's Prometheus metrics.
// A nil *MetricsService is valid and records nothing, so callers never
// need to guard their instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	authEvents      *prometheus.CounterVec
	prunedTokens    prometheus.Counter
}

func NewMetricsService(poolCount func() int) *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests served.",
		}, []string{"method", "path", "status"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication events by kind.",
		}, []string{"event"}),
		prunedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "token_store_pruned_total",
			Help: "Expired tokens removed by the background pruner.",
		}),
	}

	registry.MustRegister(m.requestDuration, m.requestTotal, m.authEvents, m.prunedTokens)
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tenant_db_pools",
		Help: "Number of open per-tenant connection pools.",
	}, func() float64 { return float64(poolCount()) }))

	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsService) RecordRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

func (m *MetricsService) RecordAuthEvent(event string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event).Inc()
}

func (m *MetricsService) RecordPrunedTokens(n int64) {
	if m == nil {
		return
	}
	m.prunedTokens.Add(float64(n))
}
