package metrics

import (
	"time"
)

// Metrics holds all router metrics.
type Metrics struct {
	// Query metrics
	QueryRequests   *Counter
	QueryLatency    *Histogram
	QueryConfidence *Histogram
	QueryErrors     *CounterVec // labels: error_type

	// Routing metrics
	PipelineAnswers   *CounterVec   // labels: pipeline
	PipelineLatency   *HistogramVec // labels: pipeline
	Fallbacks         *CounterVec   // labels: reason
	ProbedPipelines   *Histogram
	RegistryReloads   *Counter
	RegistryEntries   *Gauge
	RegistryPipelines *Gauge

	// Cache metrics
	CacheHits   *CounterVec // labels: type
	CacheMisses *CounterVec // labels: type
	CacheSize   *GaugeVec   // labels: type

	// Bus metrics
	BusEventsPublished *CounterVec // labels: topic
	BusEventsConsumed  *CounterVec // labels: topic
	BusErrors          *CounterVec // labels: topic

	// HTTP metrics
	HTTPRequests         *CounterVec   // labels: method, path, status
	HTTPDuration         *HistogramVec // labels: method, path
	HTTPRequestsInFlight *Gauge

	// System metrics
	GoroutineCount *Gauge
	MemoryUsage    *Gauge
	Uptime         *Gauge

	startTime time.Time
}

// New creates a metrics instance with all metrics initialized.
func New() *Metrics {
	latencyBuckets := []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}
	confidenceBuckets := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

	return &Metrics{
		QueryRequests: NewCounter(
			"ink_query_requests_total",
			"Total number of routed queries",
			nil,
		),
		QueryLatency: NewHistogram(
			"ink_query_latency_ms",
			"End-to-end query latency in milliseconds",
			latencyBuckets,
		),
		QueryConfidence: NewHistogram(
			"ink_query_confidence",
			"Confidence of delivered answers",
			confidenceBuckets,
		),
		QueryErrors: NewCounterVec(
			"ink_query_errors_total",
			"Total number of query errors",
			[]string{"error_type"},
		),

		PipelineAnswers: NewCounterVec(
			"ink_pipeline_answers_total",
			"Answers delivered per pipeline",
			[]string{"pipeline"},
		),
		PipelineLatency: NewHistogramVec(
			"ink_pipeline_retrieval_ms",
			"Per-pipeline retrieval latency in milliseconds",
			[]string{"pipeline"},
			[]float64{1, 2, 5, 10, 25, 50, 100, 250},
		),
		Fallbacks: NewCounterVec(
			"ink_fallbacks_total",
			"Fallback responses by reason",
			[]string{"reason"},
		),
		ProbedPipelines: NewHistogram(
			"ink_probed_pipelines",
			"Number of pipelines probed per query",
			[]float64{1, 2, 3, 4, 5},
		),
		RegistryReloads: NewCounter(
			"ink_registry_reloads_total",
			"Total number of knowledge registry reloads",
			nil,
		),
		RegistryEntries: NewGauge(
			"ink_registry_entries",
			"Knowledge entries in the active registry",
			nil,
		),
		RegistryPipelines: NewGauge(
			"ink_registry_pipelines",
			"Pipelines in the active registry",
			nil,
		),

		CacheHits: NewCounterVec(
			"ink_cache_hits_total",
			"Total number of cache hits",
			[]string{"type"},
		),
		CacheMisses: NewCounterVec(
			"ink_cache_misses_total",
			"Total number of cache misses",
			[]string{"type"},
		),
		CacheSize: NewGaugeVec(
			"ink_cache_size",
			"Current number of cached responses",
			[]string{"type"},
		),

		BusEventsPublished: NewCounterVec(
			"ink_bus_events_published_total",
			"Events published to the bus",
			[]string{"topic"},
		),
		BusEventsConsumed: NewCounterVec(
			"ink_bus_events_consumed_total",
			"Events consumed from the bus",
			[]string{"topic"},
		),
		BusErrors: NewCounterVec(
			"ink_bus_errors_total",
			"Bus publish errors",
			[]string{"topic"},
		),

		HTTPRequests: NewCounterVec(
			"ink_http_requests_total",
			"Total number of HTTP requests",
			[]string{"method", "path", "status"},
		),
		HTTPDuration: NewHistogramVec(
			"ink_http_request_duration_ms",
			"HTTP request duration in milliseconds",
			[]string{"method", "path"},
			latencyBuckets,
		),
		HTTPRequestsInFlight: NewGauge(
			"ink_http_requests_in_flight",
			"HTTP requests currently being served",
			nil,
		),

		GoroutineCount: NewGauge(
			"ink_goroutines",
			"Current number of goroutines",
			nil,
		),
		MemoryUsage: NewGauge(
			"ink_memory_bytes",
			"Current heap allocation in bytes",
			nil,
		),
		Uptime: NewGauge(
			"ink_uptime_seconds",
			"Process uptime in seconds",
			nil,
		),

		startTime: time.Now(),
	}
}

// RecordQuery records the outcome of one routed query.
func (m *Metrics) RecordQuery(pipeline string, confidence float64, latency time.Duration, fallbackReason string) {
	m.QueryRequests.Inc()
	m.QueryLatency.Observe(float64(latency.Milliseconds()))

	if fallbackReason != "" {
		m.Fallbacks.WithLabels(fallbackReason).Inc()
		return
	}
	m.PipelineAnswers.WithLabels(pipeline).Inc()
	m.QueryConfidence.Observe(confidence)
}

// RecordRetrieval records one pipeline retrieval duration.
func (m *Metrics) RecordRetrieval(pipeline string, latency time.Duration) {
	m.PipelineLatency.WithLabels(pipeline).Observe(float64(latency.Milliseconds()))
}

// RecordReload records a registry swap and its new sizes.
func (m *Metrics) RecordReload(pipelines, entries int) {
	m.RegistryReloads.Inc()
	m.RegistryPipelines.Set(float64(pipelines))
	m.RegistryEntries.Set(float64(entries))
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabels(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabels(cacheType).Inc()
}

// UpdateCacheSize sets the current cache size.
func (m *Metrics) UpdateCacheSize(cacheType string, size int) {
	m.CacheSize.WithLabels(cacheType).Set(float64(size))
}

// RecordBusPublish records an event publish attempt.
func (m *Metrics) RecordBusPublish(topic string, err error) {
	m.BusEventsPublished.WithLabels(topic).Inc()
	if err != nil {
		m.BusErrors.WithLabels(topic).Inc()
	}
}

// RecordBusConsume records an event delivered to an in-process subscriber.
func (m *Metrics) RecordBusConsume(topic string) {
	m.BusEventsConsumed.WithLabels(topic).Inc()
}

// StartTime returns when this metrics instance was created.
func (m *Metrics) StartTime() time.Time { return m.startTime }
