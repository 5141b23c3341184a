// Package metrics provides Prometheus metrics for the air-quality risk service.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	aqiBuckets      []float64
	refreshInterval time.Duration
	constLabels     map[string]string
	registry        prometheus.Registerer

	// Assessment Metrics - What the engine decided
	readingsAssessed  *prometheus.CounterVec
	readingsRejected  prometheus.Counter
	assessmentLatency prometheus.Histogram
	riskLevels        *prometheus.CounterVec
	anomaliesDetected prometheus.Counter
	aqiObserved       prometheus.Histogram
	modelFallbacks    *prometheus.CounterVec

	// Alert Metrics - What was raised and whether it got out
	alertsRaised     *prometheus.CounterVec
	alertDeliveries  *prometheus.CounterVec
	alertsSuppressed prometheus.Counter
	streamClients    prometheus.Gauge

	// Cache Metrics - Memoized assessments
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheSize   prometheus.Gauge

	// Ingest Metrics
	mqttMessages *prometheus.CounterVec

	// Repository Metrics
	repositoryLatency *prometheus.HistogramVec

	// Queue Metrics - Ingest backlog
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - Processing performance
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

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
		namespace:       "airrisk",
		subsystem:       "engine",
		latencyBuckets:  prometheus.DefBuckets,
		aqiBuckets:      []float64{50, 100, 150, 200, 300, 500},
		refreshInterval: defaultRefreshInterval,
		constLabels:     make(map[string]string),
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often runtime gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.latencyBuckets, ConstLabels: m.constLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.readingsAssessed = m.counterVec("readings_assessed_total", "Readings assessed, by scoring strategy", "strategy")
	m.readingsRejected = m.counter("readings_rejected_total", "Readings rejected by validation")
	m.assessmentLatency = m.histogram("assessment_latency_milliseconds", "End-to-end assessment latency in milliseconds", m.latencyBuckets)
	m.riskLevels = m.counterVec("risk_level_total", "Assessments by risk level", "level")
	m.anomaliesDetected = m.counter("anomalies_detected_total", "Assessments flagged as anomalous")
	m.aqiObserved = m.histogram("aqi", "Distribution of predicted AQI values", m.aqiBuckets)
	m.modelFallbacks = m.counterVec("model_fallbacks_total", "Components that fell back to rules", "component")

	m.alertsRaised = m.counterVec("alerts_raised_total", "Alerts raised by type and severity", "type", "severity")
	m.alertDeliveries = m.counterVec("alert_deliveries_total", "Alert delivery attempts by channel and outcome", "channel", "outcome")
	m.alertsSuppressed = m.counter("alerts_suppressed_total", "Alerts not delivered because of the notification cooldown")
	m.streamClients = m.gauge("stream_clients", "Connected live alert stream clients")

	m.cacheHits = m.counter("cache_hits_total", "Assessment cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Assessment cache misses")
	m.cacheSize = m.gauge("cache_size", "Entries in the assessment cache")

	m.mqttMessages = m.counterVec("mqtt_messages_total", "MQTT messages received by outcome", "outcome")

	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds", "Repository operation latency in milliseconds", "op")

	m.queueSize = m.gauge("queue_size", "Current size of the reading queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the reading queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization as a ratio (0.0 to 1.0)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of readings enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of readings dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time spent enqueuing in milliseconds", m.latencyBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently processing")
	m.workerIdleCount = m.gauge("worker_idle_count", "Number of idle workers")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Average readings processed per second per worker")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to process one reading in milliseconds", m.latencyBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of worker processing errors")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and error type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds", m.latencyBuckets)
}

// Assessment Metrics Functions.

// RecordAssessment records one completed assessment.
func RecordAssessment(strategy, level string, anomalous bool, aqi, latencyMs float64) {
	globalManager.readingsAssessed.WithLabelValues(strategy).Inc()
	globalManager.riskLevels.WithLabelValues(level).Inc()
	globalManager.aqiObserved.Observe(aqi)
	globalManager.assessmentLatency.Observe(latencyMs)
	if anomalous {
		globalManager.anomaliesDetected.Inc()
	}
}

// RecordReadingRejected increments the validation rejection counter.
func RecordReadingRejected() {
	globalManager.readingsRejected.Inc()
}

// RecordModelFallback counts a component falling back to rules.
func RecordModelFallback(component string) {
	globalManager.modelFallbacks.WithLabelValues(component).Inc()
}

// Alert Metrics Functions.

// RecordAlertRaised counts an alert produced by the engine.
func RecordAlertRaised(alertType, severity string) {
	globalManager.alertsRaised.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertDelivery counts a delivery attempt on a channel.
func RecordAlertDelivery(channel string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	globalManager.alertDeliveries.WithLabelValues(channel, outcome).Inc()
}

// RecordAlertSuppressed counts an alert held back by the cooldown.
func RecordAlertSuppressed() {
	globalManager.alertsSuppressed.Inc()
}

// UpdateStreamClients sets the number of live stream clients.
func UpdateStreamClients(count int) {
	globalManager.streamClients.Set(float64(count))
}

// Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheSize sets the number of cached entries.
func UpdateCacheSize(size int) {
	globalManager.cacheSize.Set(float64(size))
}

// RecordMQTTMessage counts an MQTT message by outcome.
func RecordMQTTMessage(outcome string) {
	globalManager.mqttMessages.WithLabelValues(outcome).Inc()
}

// RecordRepositoryLatency records the latency of a repository operation.
func RecordRepositoryLatency(op string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
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

// UpdateWorkerCount sets the configured number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the average messages processed per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// SampleRuntime updates memory, goroutine and GC pause gauges from the runtime.
func SampleRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.NumGC > 0 {
		pause := ms.PauseNs[(ms.NumGC+255)%256]
		globalManager.systemGCPauseTime.Observe(float64(pause) / float64(time.Millisecond))
	}
}

// RefreshInterval returns the sampling interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
