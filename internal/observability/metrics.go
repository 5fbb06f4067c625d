package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	planningRuns    prometheus.Counter
	suggestions     *prometheus.CounterVec
	stockAlerts     *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foundry_http_requests_total",
		Help: "HTTP request count by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foundry_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	planningRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "foundry_planning_runs_total",
		Help: "Completed requirements planning runs.",
	})
	suggestions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foundry_suggestions_total",
		Help: "Suggestions emitted by action and priority.",
	}, []string{"action", "priority"})
	stockAlerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foundry_stock_alerts_total",
		Help: "Stock status alerts emitted by resulting status.",
	}, []string{"status"})
	registry.MustRegister(requests, duration, planningRuns, suggestions, stockAlerts)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		planningRuns:    planningRuns,
		suggestions:     suggestions,
		stockAlerts:     stockAlerts,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
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

// RecordPlanningRun counts one completed planning run.
func (m *Metrics) RecordPlanningRun() {
	if m == nil {
		return
	}
	m.planningRuns.Inc()
}

// RecordSuggestions counts emitted suggestions by action and priority.
func (m *Metrics) RecordSuggestions(action, priority string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.suggestions.WithLabelValues(action, priority).Add(float64(n))
}

// RecordStockAlert counts an emitted stock status alert.
func (m *Metrics) RecordStockAlert(status string) {
	if m == nil {
		return
	}
	m.stockAlerts.WithLabelValues(status).Inc()
}

// Registerer exposes the registry for custom metric registration.
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
