// Package metrics provides Prometheus metrics for the piste rating and bracket service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Rating engine
	fits               prometheus.Counter
	fitsNotConverged   prometheus.Counter
	fitIterations      prometheus.Histogram
	fitLatency         prometheus.Histogram
	boutsIngested      *prometheus.CounterVec
	poolsIngested      prometheus.Counter
	poolsDuplicate     prometheus.Counter
	trajectorySnapshot prometheus.Counter

	// Bracket engine
	bracketsCreated   prometheus.Counter
	bracketsCompleted prometheus.Counter
	bracketsDeleted   prometheus.Counter
	boutsReported     prometheus.Counter
	reportsRejected   *prometheus.CounterVec

	// Simulation
	simulations       prometheus.Counter
	simulationLatency prometheus.Histogram

	// Tournaments
	tournaments prometheus.Gauge

	// Notifications
	notifyQueueSize prometheus.Gauge
	notifyPublished *prometheus.CounterVec
	notifyDropped   prometheus.Counter
	notifyErrors    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	httpRateLimited     prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "piste",
		subsystem:      "engine",
		latencyBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.fits = m.counter("fits_total", "Total number of Bradley-Terry refits")
	m.fitsNotConverged = m.counter("fits_not_converged_total", "Refits that hit the iteration cap before converging")
	m.fitIterations = m.histogram("fit_iterations", "MM iterations per refit",
		[]float64{1, 5, 10, 20, 50, 100, 150, 200})
	m.fitLatency = m.histogram("fit_latency_milliseconds", "Refit latency in milliseconds", m.latencyBuckets)
	m.boutsIngested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "bouts_ingested_total", Help: "Bouts appended to the rating log by source kind",
	}, []string{"source"})
	m.poolsIngested = m.counter("pools_ingested_total", "Round-robin pools decomposed into bouts")
	m.poolsDuplicate = m.counter("pools_duplicate_total", "Pool submissions ignored as already ingested")
	m.trajectorySnapshot = m.counter("trajectory_snapshots_total", "Trajectory snapshots recorded")

	m.bracketsCreated = m.counter("brackets_created_total", "Brackets built")
	m.bracketsCompleted = m.counter("brackets_completed_total", "Brackets whose final has been reported")
	m.bracketsDeleted = m.counter("brackets_deleted_total", "Brackets deleted before any result")
	m.boutsReported = m.counter("bracket_bouts_reported_total", "Bracket bout results accepted")
	m.reportsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "bracket_reports_rejected_total", Help: "Bracket bout results rejected by reason",
	}, []string{"reason"})

	m.simulations = m.counter("simulations_total", "Monte Carlo projections run")
	m.simulationLatency = m.histogram("simulation_latency_milliseconds", "Monte Carlo projection latency in milliseconds", m.latencyBuckets)

	m.tournaments = m.gauge("tournaments", "Tournaments held by this instance")

	m.notifyQueueSize = m.gauge("notify_queue_size", "Notifications waiting for dispatch")
	m.notifyPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "notifications_published_total", Help: "Notifications handed to the publisher by type",
	}, []string{"type"})
	m.notifyDropped = m.counter("notifications_dropped_total", "Notifications dropped on backpressure")
	m.notifyErrors = m.counter("notifications_errors_total", "Notification publish failures")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total", Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_milliseconds", Help: "HTTP request duration in milliseconds",
		Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_errors_total", Help: "HTTP error responses by endpoint and type",
	}, []string{"endpoint", "error_type"})
	m.httpRateLimited = m.counter("http_rate_limited_total", "Requests rejected by the rate limiter")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordFit records one refit.
func RecordFit(iterations int, converged bool, latencyMs float64) {
	globalManager.fits.Inc()
	globalManager.fitIterations.Observe(float64(iterations))
	globalManager.fitLatency.Observe(latencyMs)
	if !converged {
		globalManager.fitsNotConverged.Inc()
	}
}

// RecordBoutsIngested adds n bouts from a source kind ("pool", "direct", "replay").
func RecordBoutsIngested(source string, n int) {
	globalManager.boutsIngested.WithLabelValues(source).Add(float64(n))
}

// RecordPoolIngested increments the pool counter.
func RecordPoolIngested() { globalManager.poolsIngested.Inc() }

// RecordPoolDuplicate increments the duplicate pool counter.
func RecordPoolDuplicate() { globalManager.poolsDuplicate.Inc() }

// RecordSnapshot increments the trajectory snapshot counter.
func RecordSnapshot() { globalManager.trajectorySnapshot.Inc() }

// RecordBracketCreated increments the bracket counter.
func RecordBracketCreated() { globalManager.bracketsCreated.Inc() }

// RecordBracketCompleted increments the completed bracket counter.
func RecordBracketCompleted() { globalManager.bracketsCompleted.Inc() }

// RecordBracketDeleted increments the deleted bracket counter.
func RecordBracketDeleted() { globalManager.bracketsDeleted.Inc() }

// RecordBoutReported increments the accepted result counter.
func RecordBoutReported() { globalManager.boutsReported.Inc() }

// RecordReportRejected counts a rejected result by reason.
func RecordReportRejected(reason string) {
	globalManager.reportsRejected.WithLabelValues(reason).Inc()
}

// RecordSimulation records one projection run.
func RecordSimulation(latencyMs float64) {
	globalManager.simulations.Inc()
	globalManager.simulationLatency.Observe(latencyMs)
}

// UpdateTournaments sets the tournament gauge.
func UpdateTournaments(n int) { globalManager.tournaments.Set(float64(n)) }

// UpdateNotifyQueueSize sets the notification backlog gauge.
func UpdateNotifyQueueSize(n int) { globalManager.notifyQueueSize.Set(float64(n)) }

// RecordNotificationPublished counts a dispatched notification.
func RecordNotificationPublished(kind string) {
	globalManager.notifyPublished.WithLabelValues(kind).Inc()
}

// RecordNotificationDropped counts a notification lost to backpressure.
func RecordNotificationDropped() { globalManager.notifyDropped.Inc() }

// RecordNotificationError counts a publish failure.
func RecordNotificationError() { globalManager.notifyErrors.Inc() }

// RecordHTTPRequest records one request with its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited() { globalManager.httpRateLimited.Inc() }

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
