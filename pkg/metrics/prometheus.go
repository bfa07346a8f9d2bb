package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcome label values.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Manager manages all Prometheus metrics of a hepplot run.
type Manager struct {
	namespace       string
	subsystem       string
	durationBuckets []float64
	constLabels     map[string]string
	registry        prometheus.Registerer

	// Job metrics
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	plots       *prometheus.CounterVec

	// Solver metrics
	solverIterations    prometheus.Histogram
	convergenceWarnings *prometheus.CounterVec

	// Ratio pipeline metrics
	binsProcessed prometheus.Counter
	domainErrors  *prometheus.CounterVec

	// Worker pool metrics
	queueSize     prometheus.Gauge
	workersActive prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the global manager with one built from opts on a fresh
// registry, so the textfile of a run holds only that run's series. Call it
// before recording.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "hepplot",
		subsystem:       "",
		durationBuckets: prometheus.DefBuckets,
		constLabels:     make(map[string]string),
		registry:        prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.jobs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "jobs_total",
		Help:        "Total number of plot jobs by kind and outcome",
		ConstLabels: m.constLabels,
	}, []string{"kind", "status"})

	m.jobDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "job_duration_seconds",
		Help:        "Wall time of plot jobs in seconds",
		Buckets:     m.durationBuckets,
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.plots = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "plots_written_total",
		Help:        "Total number of plot files written by format",
		ConstLabels: m.constLabels,
	}, []string{"format"})

	m.solverIterations = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "solver_iterations",
		Help:        "Bisection steps taken per intersection search",
		Buckets:     prometheus.ExponentialBuckets(1, 2, 15),
		ConstLabels: m.constLabels,
	})

	m.convergenceWarnings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "convergence_warnings_total",
		Help:        "Intersection searches that hit the iteration cap",
		ConstLabels: m.constLabels,
	}, []string{"curve"})

	m.binsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "bins_processed_total",
		Help:        "Bins run through the ratio pipeline",
		ConstLabels: m.constLabels,
	})

	m.domainErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "domain_errors_total",
		Help:        "Inputs rejected by the ratio pipeline, by reason",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_size",
		Help:        "Jobs waiting in the batch queue",
		ConstLabels: m.constLabels,
	})

	m.workersActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "workers_active",
		Help:        "Workers currently running a job",
		ConstLabels: m.constLabels,
	})
}

// RecordJob counts a finished job and observes its duration in seconds.
func (m *Manager) RecordJob(kind, status string, seconds float64) {
	m.jobs.WithLabelValues(kind, status).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordPlotWritten counts one written plot file.
func (m *Manager) RecordPlotWritten(format string) {
	m.plots.WithLabelValues(format).Inc()
}

// RecordSolverIterations observes the step count of one intersection search.
func (m *Manager) RecordSolverIterations(n int) {
	m.solverIterations.Observe(float64(n))
}

// RecordConvergenceWarning counts a search that stopped at the iteration cap.
func (m *Manager) RecordConvergenceWarning(curve string) {
	m.convergenceWarnings.WithLabelValues(curve).Inc()
}

// RecordBinsProcessed adds n bins to the ratio pipeline counter.
func (m *Manager) RecordBinsProcessed(n int) {
	m.binsProcessed.Add(float64(n))
}

// RecordDomainError counts a rejected ratio input.
func (m *Manager) RecordDomainError(reason string) {
	m.domainErrors.WithLabelValues(reason).Inc()
}

// UpdateQueueSize sets the current queue size.
func (m *Manager) UpdateQueueSize(size int) {
	m.queueSize.Set(float64(size))
}

// UpdateWorkersActive sets the number of busy workers.
func (m *Manager) UpdateWorkersActive(n int) {
	m.workersActive.Set(float64(n))
}

// RecordJob counts a finished job on the global manager.
func RecordJob(kind, status string, seconds float64) {
	globalManager.RecordJob(kind, status, seconds)
}

// RecordPlotWritten counts one written plot file.
func RecordPlotWritten(format string) {
	globalManager.RecordPlotWritten(format)
}

// RecordSolverIterations observes the step count of one intersection search.
func RecordSolverIterations(n int) {
	globalManager.RecordSolverIterations(n)
}

// RecordConvergenceWarning counts a search that stopped at the iteration cap.
func RecordConvergenceWarning(curve string) {
	globalManager.RecordConvergenceWarning(curve)
}

// RecordBinsProcessed adds n bins to the ratio pipeline counter.
func RecordBinsProcessed(n int) {
	globalManager.RecordBinsProcessed(n)
}

// RecordDomainError counts a rejected ratio input.
func RecordDomainError(reason string) {
	globalManager.RecordDomainError(reason)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.UpdateQueueSize(size)
}

// UpdateWorkersActive sets the number of busy workers.
func UpdateWorkersActive(n int) {
	globalManager.UpdateWorkersActive(n)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile dumps the given registry in the node_exporter textfile
// format. A nil gatherer writes the global registry.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return ErrNoTextfile
	}
	if g == nil {
		g = customRegistry
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
