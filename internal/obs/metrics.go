// Package obs はprometheusのメトリクス。
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	rateLimitRejections *prometheus.CounterVec
	rateLimitBypass     *prometheus.CounterVec
	cacheAvailable      prometheus.Gauge
	requestLogDropped   prometheus.Counter
}

// NewMetricsは専用のregistryに登録する（テストで何度作っても衝突しない）
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		rateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter.",
			},
			[]string{"prefix"},
		),
		rateLimitBypass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_bypass_total",
				Help: "Requests let through without rate limiting.",
			},
			[]string{"reason"},
		),
		cacheAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_cache_available",
			Help: "1 when the session cache is reachable.",
		}),
		requestLogDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "request_log_dropped_total",
			Help: "Request log entries dropped because the writer queue was full.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.rateLimitRejections,
		m.rateLimitBypass,
		m.cacheAvailable,
		m.requestLogDropped,
	)
	return m
}

// Handlerは/metrics用
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// pathはルートのパターン（/api/v1/files/:folder/:fileName）を渡す
func (m *Metrics) ObserveRequest(method, path, status string, seconds float64) {
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func (m *Metrics) InFlightInc() { m.httpInFlight.Inc() }
func (m *Metrics) InFlightDec() { m.httpInFlight.Dec() }

func (m *Metrics) RateLimitRejected(prefix string) {
	m.rateLimitRejections.WithLabelValues(prefix).Inc()
}

func (m *Metrics) RateLimitBypassed(reason string) {
	m.rateLimitBypass.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetCacheAvailable(ok bool) {
	if ok {
		m.cacheAvailable.Set(1)
		return
	}
	m.cacheAvailable.Set(0)
}

func (m *Metrics) RequestLogDropped() {
	m.requestLogDropped.Inc()
}
