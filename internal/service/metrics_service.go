package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkawase/classtask-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the lifecycle engine, the retention sweep, and the listing cache.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	sweepTasks      prometheus.Counter
	sweepRoster     prometheus.Counter
	sweepFailures   prometheus.Counter
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_lifecycle_transitions_total",
		Help: "Total lifecycle transition attempts by action and outcome",
	}, []string{"action", "outcome"})

	sweepTasks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_tasks_deleted_total",
		Help: "Tasks permanently deleted by the retention sweep",
	})

	sweepRoster := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_roster_entries_deleted_total",
		Help: "Roster entries permanently deleted by the retention sweep",
	})

	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_sweep_failures_total",
		Help: "Per-record failures encountered during retention sweeps",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, sweepTasks, sweepRoster, sweepFailures, cacheLatency, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		sweepTasks:      sweepTasks,
		sweepRoster:     sweepRoster,
		sweepFailures:   sweepFailures,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordTransition counts one lifecycle transition attempt.
func (m *MetricsService) RecordTransition(action models.LifecycleAction, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.transitions.WithLabelValues(string(action), outcome).Inc()
}

// RecordSweep counts one retention sweep's results.
func (m *MetricsService) RecordSweep(tasksDeleted, rosterDeleted, failures int) {
	if m == nil {
		return
	}
	m.sweepTasks.Add(float64(tasksDeleted))
	m.sweepRoster.Add(float64(rosterDeleted))
	m.sweepFailures.Add(float64(failures))
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
