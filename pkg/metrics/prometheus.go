// Package metrics provides Prometheus metrics for the matchmaker service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the matchmaker service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Matching
	matchRequests *prometheus.CounterVec
	matchLatency  prometheus.Histogram
	matchScore    prometheus.Histogram

	// Assignment lifecycle
	assignments     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	progressUpdates prometheus.Counter
	completions     *prometheus.CounterVec
	reassignments   prometheus.Counter
	openTasks       prometheus.Gauge

	// Roster
	employeesByAvailability *prometheus.GaugeVec
	totalEmployees          prometheus.Gauge

	// Learning
	learningPasses    *prometheus.CounterVec
	learnedAffinities prometheus.Gauge

	// Persistence
	persistWrites   *prometheus.CounterVec
	persistDuration prometheus.Histogram

	// Idempotency
	idempotentReplays prometheus.Counter

	// Leaderboard pipeline
	queueSize           prometheus.Gauge
	queueCapacity       prometheus.Gauge
	queueDropped        prometheus.Counter
	workerCount         prometheus.Gauge
	leaderboardUpdates  prometheus.Counter
	leaderboardEntries  prometheus.Gauge
	workerProcessingLat prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "matchmaker",
		subsystem:      "core",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		})
	}

	m.matchRequests = counterVec("match_requests_total", "Match requests by outcome (matched, no_match, invalid)", "outcome")
	m.matchLatency = histogram("match_latency_milliseconds", "Time to rank candidates for a task", m.latencyBuckets)
	m.matchScore = histogram("match_score", "Score of the selected candidate", []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 1.0, 1.1, 1.2, 1.5, 2.0})

	m.assignments = counterVec("assignments_total", "Successful task assignments by priority", "priority")
	m.rejections = counterVec("rejections_total", "Rejected lifecycle operations by operation and reason", "operation", "reason")
	m.progressUpdates = counter("progress_updates_total", "Task progress updates")
	m.completions = counterVec("completions_total", "Completed tasks by deadline outcome", "outcome")
	m.reassignments = counter("reassignments_total", "Task reassignments")
	m.openTasks = gauge("open_tasks", "Tasks currently in progress")

	m.employeesByAvailability = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "employees_by_availability",
		Help:      "Employees per availability tier",
	}, []string{"availability"})
	m.totalEmployees = gauge("employees_total", "Employees in the roster")

	m.learningPasses = counterVec("learning_passes_total", "Preference learning passes by result", "result")
	m.learnedAffinities = gauge("learned_affinities", "Employee/skill affinity pairs after the last learning pass")

	m.persistWrites = counterVec("persist_writes_total", "Roster and preference writes by store and result", "store", "result")
	m.persistDuration = histogram("persist_duration_milliseconds", "Time to write the roster to disk", m.latencyBuckets)

	m.idempotentReplays = counter("idempotent_replays_total", "Task creations answered from the idempotency cache")

	m.queueSize = gauge("queue_size", "Completion events waiting for the leaderboard workers")
	m.queueCapacity = gauge("queue_capacity", "Capacity of the completion event queue")
	m.queueDropped = counter("queue_dropped_total", "Completion events dropped because the queue was full or closed")
	m.workerCount = gauge("worker_count", "Leaderboard workers")
	m.leaderboardUpdates = counter("leaderboard_updates_total", "Leaderboard score writes")
	m.leaderboardEntries = gauge("leaderboard_entries", "Employees ranked on the leaderboard")
	m.workerProcessingLat = histogram("worker_processing_latency_milliseconds", "Time to fold a completion event into the leaderboard", m.latencyBuckets)

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_milliseconds", "Average GC pause time", []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50})
}

// RecordMatch records a match request outcome: matched, no_match or invalid.
func RecordMatch(outcome string, latencyMs float64) {
	globalManager.matchRequests.WithLabelValues(outcome).Inc()
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordMatchScore observes the winning candidate's score.
func RecordMatchScore(score float64) {
	globalManager.matchScore.Observe(score)
}

// RecordAssignment increments the assignment counter for a priority.
func RecordAssignment(priority string) {
	globalManager.assignments.WithLabelValues(priority).Inc()
}

// RecordRejection records a rejected lifecycle operation.
func RecordRejection(operation, reason string) {
	globalManager.rejections.WithLabelValues(operation, reason).Inc()
}

// RecordProgressUpdate increments the progress update counter.
func RecordProgressUpdate() {
	globalManager.progressUpdates.Inc()
}

// RecordCompletion records a completed task; onTime selects the label.
func RecordCompletion(onTime bool) {
	outcome := "late"
	if onTime {
		outcome = "on_time"
	}
	globalManager.completions.WithLabelValues(outcome).Inc()
}

// RecordReassignment increments the reassignment counter.
func RecordReassignment() {
	globalManager.reassignments.Inc()
}

// UpdateOpenTasks sets the number of in-progress tasks.
func UpdateOpenTasks(n int) {
	globalManager.openTasks.Set(float64(n))
}

// UpdateEmployeesByAvailability sets the gauge for one availability tier.
func UpdateEmployeesByAvailability(availability string, n int) {
	globalManager.employeesByAvailability.WithLabelValues(availability).Set(float64(n))
}

// UpdateTotalEmployees sets the roster size.
func UpdateTotalEmployees(n int) {
	globalManager.totalEmployees.Set(float64(n))
}

// RecordLearningPass records a learning pass; ok=false when history was empty.
func RecordLearningPass(ok bool, affinities int) {
	result := "skipped"
	if ok {
		result = "rebuilt"
		globalManager.learnedAffinities.Set(float64(affinities))
	}
	globalManager.learningPasses.WithLabelValues(result).Inc()
}

// RecordPersist records a write to a backing store.
func RecordPersist(store string, err error, latencyMs float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	globalManager.persistWrites.WithLabelValues(store, result).Inc()
	globalManager.persistDuration.Observe(latencyMs)
}

// RecordIdempotentReplay increments the replay counter.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueDropped increments the dropped events counter.
func RecordQueueDropped() {
	globalManager.queueDropped.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordLeaderboardUpdate increments the leaderboard updates counter.
func RecordLeaderboardUpdate() {
	globalManager.leaderboardUpdates.Inc()
}

// UpdateLeaderboardEntries sets the number of ranked employees.
func UpdateLeaderboardEntries(n int) {
	globalManager.leaderboardEntries.Set(float64(n))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLat.Observe(latencyMs)
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

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
