package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ingestTotal     *prometheus.CounterVec
	ingestRows      prometheus.Gauge
	ingestDuration  prometheus.Histogram
	ingestNotices   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP, ingestion and cache metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "costlens_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "costlens_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	ingests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "costlens_ingest_total",
		Help: "Source ingestions by outcome.",
	}, []string{"outcome"})
	rows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "costlens_dataset_records",
		Help: "Records retained by the last successful ingestion.",
	})
	ingestDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "costlens_ingest_duration_seconds",
		Help:    "Duration of source ingestion.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	notices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "costlens_ingest_notices_total",
		Help: "Data quality notices raised during ingestion by kind.",
	}, []string{"kind"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "costlens_view_cache_lookups_total",
		Help: "View cache lookups by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, ingests, rows, ingestDuration, notices, cache)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ingestTotal:     ingests,
		ingestRows:      rows,
		ingestDuration:  ingestDuration,
		ingestNotices:   notices,
		cacheLookups:    cache,
	}
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveIngest records one ingestion attempt.
func (m *Metrics) ObserveIngest(outcome string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome).Inc()
	m.ingestDuration.Observe(elapsed.Seconds())
	if outcome == "success" {
		m.ingestRows.Set(float64(rows))
	}
}

// AddNotices adds count data quality notices of the given kind.
func (m *Metrics) AddNotices(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ingestNotices.WithLabelValues(kind).Add(float64(count))
}

// ObserveCache counts one view cache lookup.
func (m *Metrics) ObserveCache(outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
