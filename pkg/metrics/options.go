// Package metrics provides Prometheus metrics for hepplot runs.
package metrics

import (
	"maps"

	"github.com/prometheus/client_golang/prometheus"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the metric name prefix. Empty keeps "hepplot".
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem inserts a second name part after the namespace.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithDurationBuckets sets the job duration histogram bounds in seconds.
// Bounds must be strictly increasing.
func WithDurationBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.durationBuckets = buckets
		}
	}
}

// WithConstLabels adds labels carried by every series, such as a run ID.
// Later calls add to earlier ones.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		maps.Copy(m.constLabels, labels)
	}
}

// WithPrometheusRegistry sets a custom Prometheus registry.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
