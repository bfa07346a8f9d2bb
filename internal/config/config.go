// Package config defines process and job configuration and their loaders.
//
// Conventions:
//   - New returns a Config with defaults; Load layers a YAML file and env
//     vars on top of it.
//   - Job files are YAML documents describing one plot each.
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/okian/hepplot/internal/domain/curve"
)

// Output formats a plot can be written in.
var outputFormats = map[string]struct{}{
	"pdf": {}, "png": {}, "svg": {}, "eps": {}, "jpg": {}, "tif": {},
}

// metricName matches Prometheus metric name parts and label names.
var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Workers bounds how many jobs a batch runs at once.
	Workers int `koanf:"workers"`

	// QueueSize bounds the number of pending batch jobs.
	QueueSize int `koanf:"queue_size"`

	// FailFast stops a batch at the first failed job.
	FailFast bool `koanf:"fail_fast"`

	// OutputDir is where plots are written; empty means next to the input.
	OutputDir string `koanf:"output_dir"`

	// OutputFormat is the file extension of written plots.
	OutputFormat string `koanf:"output_format"`

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `koanf:"metrics_file"`

	// ReportFile, when set, receives a YAML summary of each run.
	ReportFile string `koanf:"report_file"`

	Solver  Solver  `koanf:"solver"`
	Metrics Metrics `koanf:"metrics"`
}

// Metrics shapes the Prometheus series of a run. Every series also carries
// a run_id label.
type Metrics struct {
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
	// DurationBuckets are the job duration histogram bounds in seconds.
	DurationBuckets []float64         `koanf:"duration_buckets"`
	Labels          map[string]string `koanf:"labels"`
}

// Solver holds the intersection search settings.
type Solver struct {
	Precision     float64 `koanf:"precision"`
	MaxIterations int     `koanf:"max_iterations"`
	BracketCheck  bool    `koanf:"bracket_check"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Workers:      runtime.NumCPU(),
		QueueSize:    64,
		OutputFormat: "pdf",
		Solver: Solver{
			Precision:     curve.DefaultPrecision,
			MaxIterations: curve.DefaultMaxIterations,
			BracketCheck:  true,
		},
		Metrics: Metrics{Namespace: "hepplot"},
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be at least 1, got %d", ErrInvalidConfig, c.QueueSize)
	}
	c.OutputFormat = strings.ToLower(strings.TrimPrefix(c.OutputFormat, "."))
	if _, ok := outputFormats[c.OutputFormat]; !ok {
		return fmt.Errorf("%w: unsupported output_format %q", ErrInvalidConfig, c.OutputFormat)
	}
	if !(c.Solver.Precision > 0) {
		return fmt.Errorf("%w: solver.precision must be positive", ErrInvalidConfig)
	}
	if c.Solver.MaxIterations < 1 {
		return fmt.Errorf("%w: solver.max_iterations must be at least 1", ErrInvalidConfig)
	}
	return c.Metrics.validate()
}

func (m Metrics) validate() error {
	for key, v := range map[string]string{"namespace": m.Namespace, "subsystem": m.Subsystem} {
		if v != "" && !metricName.MatchString(v) {
			return fmt.Errorf("%w: metrics.%s %q is not a metric name", ErrInvalidConfig, key, v)
		}
	}
	for i := 1; i < len(m.DurationBuckets); i++ {
		if m.DurationBuckets[i] <= m.DurationBuckets[i-1] {
			return fmt.Errorf("%w: metrics.duration_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	for name := range m.Labels {
		if !metricName.MatchString(name) || strings.HasPrefix(name, "__") || name == "run_id" {
			return fmt.Errorf("%w: metrics.labels: reserved or invalid label %q", ErrInvalidConfig, name)
		}
	}
	return nil
}

// SolverOptions converts the solver settings into curve options.
func (c *Config) SolverOptions() []curve.Option {
	return []curve.Option{
		curve.WithPrecision(c.Solver.Precision),
		curve.WithMaxIterations(c.Solver.MaxIterations),
		curve.WithBracketCheck(c.Solver.BracketCheck),
	}
}
