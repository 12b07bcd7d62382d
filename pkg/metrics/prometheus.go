// Package metrics provides Prometheus metrics for the crowdwatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the crowdwatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingest Metrics - realtime feed snapshots
	snapshotsReceived prometheus.Counter
	malformedRecords  prometheus.Counter
	ingestErrors      prometheus.Counter
	lastSnapshotNodes prometheus.Gauge

	// Reconcile Metrics - render operations issued against the surface
	reconcileOps      *prometheus.CounterVec
	reconcileLatency  prometheus.Histogram
	annotationsActive prometheus.Gauge

	// Session Metrics
	sessionTransitions *prometheus.CounterVec
	sessionOutcomes    *prometheus.CounterVec
	auxFetchFailures   prometheus.Counter

	// Location Metrics
	staleResults     prometheus.Counter
	geocodeLatency   *prometheus.HistogramVec
	geocodeFailures  *prometheus.CounterVec
	searchesIssued   prometheus.Counter
	positionFailures *prometheus.CounterVec

	// Ripple Metrics
	ripplePulses    prometheus.Counter
	ripplesCanceled prometheus.Counter

	// Realtime subscriber Metrics
	wsClients  prometheus.Gauge
	wsDropped  prometheus.Counter
	wsMessages prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics - main loop task queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - main loop task execution
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crowdwatch",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem,
			Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem,
			Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(name, help string, l ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem,
			Name: m.name(name), Help: help, ConstLabels: labels,
		}, l)
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem,
			Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}
	histogramVec := func(name, help string, buckets []float64, l ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem,
			Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		}, l)
	}

	m.snapshotsReceived = counter("snapshots_received_total", "Total number of feed snapshots received")
	m.malformedRecords = counter("malformed_records_total", "Total number of feed records defaulted because of missing or unparsable fields")
	m.ingestErrors = counter("ingest_errors_total", "Total number of error events from the realtime source")
	m.lastSnapshotNodes = gauge("last_snapshot_nodes", "Number of nodes in the most recent snapshot")

	m.reconcileOps = counterVec("reconcile_operations_total", "Render operations emitted by the reconciler", "op")
	m.reconcileLatency = histogram("reconcile_latency_milliseconds", "Histogram of snapshot reconcile latency in milliseconds", m.histogramBuckets)
	m.annotationsActive = gauge("annotations_active", "Number of annotations currently rendered")

	m.sessionTransitions = counterVec("session_transitions_total", "Alert session state transitions", "mode", "state")
	m.sessionOutcomes = counterVec("session_outcomes_total", "Alert session terminal outcomes", "mode", "outcome")
	m.auxFetchFailures = counter("aux_fetch_failures_total", "Auxiliary metric fetches that failed and defaulted to zero")

	m.staleResults = counter("stale_results_total", "Async results discarded because a newer request superseded them")
	m.geocodeLatency = histogramVec("geocode_latency_milliseconds", "Geocoder call latency in milliseconds", m.histogramBuckets, "direction")
	m.geocodeFailures = counterVec("geocode_failures_total", "Geocoder calls that failed or found nothing", "direction", "kind")
	m.searchesIssued = counter("searches_issued_total", "Forward searches issued")
	m.positionFailures = counterVec("position_failures_total", "Device position requests that produced no fix", "kind")

	m.ripplePulses = counter("ripple_pulses_total", "Ripple pulses run to completion")
	m.ripplesCanceled = counter("ripples_canceled_total", "Ripple effects canceled before finishing")

	m.wsClients = gauge("ws_clients", "Connected WebSocket subscribers")
	m.wsDropped = counter("ws_dropped_total", "Messages dropped for slow WebSocket subscribers")
	m.wsMessages = counter("ws_messages_total", "Messages broadcast to WebSocket subscribers")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")

	m.queueSize = gauge("queue_size", "Current number of tasks waiting for the main loop")
	m.queueCapacity = gauge("queue_capacity", "Maximum capacity of the main loop queue")
	m.queueUtilization = gauge("queue_utilization_ratio", "Queue utilization ratio (0.0 to 1.0)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of tasks enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of tasks dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of enqueue failures")
	m.queueProcessingLatency = histogram("queue_processing_latency_milliseconds", "Time spent waiting to enqueue a task in milliseconds", m.histogramBuckets)

	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds", "Main loop task run time in milliseconds", m.histogramBuckets)
	m.workerErrorRate = counter("worker_errors_total", "Main loop tasks that panicked")

	m.errorRateByComponent = counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets, "component", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Ingest Metrics Functions.

// RecordSnapshot counts a received snapshot and its size.
func RecordSnapshot(nodes, malformed int) {
	globalManager.snapshotsReceived.Inc()
	globalManager.lastSnapshotNodes.Set(float64(nodes))
	if malformed > 0 {
		globalManager.malformedRecords.Add(float64(malformed))
	}
}

// RecordIngestError increments the realtime source error counter.
func RecordIngestError() {
	globalManager.ingestErrors.Inc()
}

// Reconcile Metrics Functions.

// RecordReconcile records the operations emitted for one snapshot.
func RecordReconcile(added, updated, removed int, latencyMs float64) {
	globalManager.reconcileOps.WithLabelValues("add").Add(float64(added))
	globalManager.reconcileOps.WithLabelValues("update").Add(float64(updated))
	globalManager.reconcileOps.WithLabelValues("remove").Add(float64(removed))
	globalManager.reconcileLatency.Observe(latencyMs)
}

// UpdateAnnotationsActive sets the number of rendered annotations.
func UpdateAnnotationsActive(count int) {
	globalManager.annotationsActive.Set(float64(count))
}

// Session Metrics Functions.

// RecordSessionTransition counts a transition into state for mode.
func RecordSessionTransition(mode, state string) {
	globalManager.sessionTransitions.WithLabelValues(mode, state).Inc()
}

// RecordSessionOutcome counts a terminal session outcome.
func RecordSessionOutcome(mode, outcome string) {
	globalManager.sessionOutcomes.WithLabelValues(mode, outcome).Inc()
}

// RecordAuxFetchFailure increments the auxiliary fetch failure counter.
func RecordAuxFetchFailure() {
	globalManager.auxFetchFailures.Inc()
}

// Location Metrics Functions.

// RecordStaleResult increments the stale result counter.
func RecordStaleResult() {
	globalManager.staleResults.Inc()
}

// RecordSearchIssued increments the forward search counter.
func RecordSearchIssued() {
	globalManager.searchesIssued.Inc()
}

// RecordGeocodeLatency records geocoder latency for "forward" or "reverse".
func RecordGeocodeLatency(direction string, latencyMs float64) {
	globalManager.geocodeLatency.WithLabelValues(direction).Observe(latencyMs)
}

// RecordGeocodeFailure counts a failed or empty geocoder call.
func RecordGeocodeFailure(direction, kind string) {
	globalManager.geocodeFailures.WithLabelValues(direction, kind).Inc()
}

// RecordPositionFailure counts a position request that produced no fix.
func RecordPositionFailure(kind string) {
	globalManager.positionFailures.WithLabelValues(kind).Inc()
}

// Ripple Metrics Functions.

// RecordRipplePulse increments the completed pulse counter.
func RecordRipplePulse() {
	globalManager.ripplePulses.Inc()
}

// RecordRippleCanceled increments the canceled ripple counter.
func RecordRippleCanceled() {
	globalManager.ripplesCanceled.Inc()
}

// Subscriber Metrics Functions.

// UpdateWSClients sets the number of connected WebSocket subscribers.
func UpdateWSClients(count int) {
	globalManager.wsClients.Set(float64(count))
}

// RecordWSMessage increments the broadcast message counter.
func RecordWSMessage() {
	globalManager.wsMessages.Inc()
}

// RecordWSDropped increments the dropped message counter.
func RecordWSDropped() {
	globalManager.wsDropped.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// RecordWorkerProcessingLatency records main loop task latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
