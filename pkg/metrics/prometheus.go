// Package metrics provides Prometheus metrics for the paddock scoring engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by paddock.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring
	pairsScored         prometheus.Counter
	pairsFailed         *prometheus.CounterVec
	picksScored         *prometheus.CounterVec
	scoreWrites         *prometheus.CounterVec
	dataQualityWarnings *prometheus.CounterVec
	pairDuration        prometheus.Histogram

	// Batch
	batchRuns     *prometheus.CounterVec
	batchDuration prometheus.Histogram
	batchLastUnix prometheus.Gauge
	pendingPairs  prometheus.Gauge

	// Queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerActive       prometheus.Gauge

	// Storage
	storeLatency *prometheus.HistogramVec

	// Notifications
	notifications *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "paddock",
		subsystem:        "scoring",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.pairsScored = m.counter("pairs_scored_total", "Total number of (event, prop_type) pairs scored successfully")
	m.pairsFailed = m.counterVec("pairs_failed_total", "Total number of pairs that failed to score", "reason")
	m.picksScored = m.counterVec("picks_scored_total", "Total number of picks evaluated by outcome", "outcome")
	m.scoreWrites = m.counterVec("score_writes_total", "Score upserts by kind", "kind")
	m.dataQualityWarnings = m.counterVec("data_quality_warnings_total", "Picks scored zero because a value could not be parsed", "prop_type")
	m.pairDuration = m.histogram("pair_duration_milliseconds", "Time to score one pair, transaction included")

	m.batchRuns = m.counterVec("batch_runs_total", "Batch runs by final status", "status")
	m.batchDuration = m.histogram("batch_duration_milliseconds", "Wall time of a batch run")
	m.batchLastUnix = m.gauge("batch_last_run_unix", "Unix timestamp of the last finished batch run")
	m.pendingPairs = m.gauge("pending_pairs", "Pairs discovered as pending by the last batch run")

	m.queueSize = m.gauge("queue_size", "Pairs currently waiting in the batch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the batch queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueue attempts", "reason")
	m.workerCount = m.gauge("worker_count", "Configured number of batch workers")
	m.workerActive = m.gauge("worker_active_count", "Workers currently scoring a pair")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "op")

	m.notifications = m.counterVec("notifications_total", "Pair-scored notifications by status", "status")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
}

// RecordPairScored counts a successful pair and its duration.
func RecordPairScored(durationMs float64) {
	globalManager.pairsScored.Inc()
	globalManager.pairDuration.Observe(durationMs)
}

// RecordPairFailed counts a failed pair.
func RecordPairFailed(reason string) {
	globalManager.pairsFailed.WithLabelValues(reason).Inc()
}

// RecordPickScored counts an evaluated pick: exact, partial, miss or warning.
func RecordPickScored(outcome string) {
	globalManager.picksScored.WithLabelValues(outcome).Inc()
}

// RecordScoreWrites counts n score writes of one kind: created, updated or unchanged.
func RecordScoreWrites(kind string, n int) {
	if n > 0 {
		globalManager.scoreWrites.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordDataQualityWarning counts an unparseable value for a prop type.
func RecordDataQualityWarning(propType string) {
	globalManager.dataQualityWarnings.WithLabelValues(propType).Inc()
}

// RecordBatchRun records a finished batch run.
func RecordBatchRun(status string, durationMs float64, finishedUnix int64) {
	globalManager.batchRuns.WithLabelValues(status).Inc()
	globalManager.batchDuration.Observe(durationMs)
	globalManager.batchLastUnix.Set(float64(finishedUnix))
}

// UpdatePendingPairs sets the number of pending pairs found by discovery.
func UpdatePendingPairs(n int) {
	globalManager.pendingPairs.Set(float64(n))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive moves the active worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActive.Add(float64(delta))
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordNotification counts a notification attempt: sent, failed or rejected.
func RecordNotification(status string) {
	globalManager.notifications.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
