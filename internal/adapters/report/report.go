// Package report writes run summaries: the mass-limit lines on stdout and an
// optional YAML document with everything a job derived.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/hepplot/internal/domain/curve"
	"github.com/okian/hepplot/internal/domain/histo"
	"github.com/okian/hepplot/internal/domain/limit"
	"github.com/okian/hepplot/internal/domain/pulls"
)

// Report is the YAML document of one run.
type Report struct {
	RunID     string    `yaml:"run_id"`
	Generated time.Time `yaml:"generated"`
	Jobs      []Job     `yaml:"jobs"`

	mu sync.Mutex
}

// Job is the outcome of one plot job.
type Job struct {
	ID       string         `yaml:"id"`
	Source   string         `yaml:"source,omitempty"`
	Kind     string         `yaml:"kind"`
	Output   string         `yaml:"output,omitempty"`
	Duration time.Duration  `yaml:"duration"`
	Error    string         `yaml:"error,omitempty"`
	Limit    *Limit         `yaml:"limit,omitempty"`
	Postfit  *Postfit       `yaml:"postfit,omitempty"`
	Pulls    *pulls.Summary `yaml:"pulls,omitempty"`
}

// Crossing is one solver result.
type Crossing struct {
	Mass       float64 `yaml:"mass"`
	Iterations int     `yaml:"iterations"`
	Converged  bool    `yaml:"converged"`
	Warning    string  `yaml:"warning,omitempty"`
}

// Limit holds the expected and observed mass limits.
type Limit struct {
	Expected Crossing `yaml:"expected"`
	Observed Crossing `yaml:"observed"`
}

// RatioBin is one bin of the data/background ratio.
type RatioBin struct {
	X         float64 `yaml:"x"`
	HalfWidth float64 `yaml:"half_width"`
	Ratio     float64 `yaml:"ratio"`
	Err       float64 `yaml:"err"`
	BandErr   float64 `yaml:"band_err"`
}

// Postfit holds the ratio pad content.
type Postfit struct {
	Bins []RatioBin `yaml:"bins"`
}

// New starts an empty report.
func New(runID string) *Report {
	return &Report{RunID: runID, Generated: time.Now().UTC()}
}

// Add appends a job outcome. Safe for concurrent use.
func (r *Report) Add(j Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Jobs = append(r.Jobs, j)
}

// NewCrossing converts a solver result.
func NewCrossing(res curve.Result) Crossing {
	c := Crossing{Mass: res.X, Iterations: res.Iterations, Converged: res.Converged}
	if w := res.Warning(); w != nil {
		c.Warning = w.Error()
	}
	return c
}

// NewLimit converts both mass limits.
func NewLimit(m limit.MassLimit) *Limit {
	return &Limit{Expected: NewCrossing(m.Expected), Observed: NewCrossing(m.Observed)}
}

// NewPostfit converts the ratio and its band, which share bins.
func NewPostfit(r histo.Ratios) *Postfit {
	out := &Postfit{Bins: make([]RatioBin, len(r.Ratio))}
	for i, p := range r.Ratio {
		out.Bins[i] = RatioBin{X: p.X, HalfWidth: p.XHalfWidth, Ratio: p.Value, Err: p.Err}
		if i < len(r.RatioBand) {
			out.Bins[i].BandErr = r.RatioBand[i].Err
		}
	}
	return out
}

// WriteLimits prints the limits as "expected: X TeV" and "observed: X TeV".
func WriteLimits(w io.Writer, m limit.MassLimit) error {
	_, err := fmt.Fprintf(w, "expected: %s TeV\nobserved: %s TeV\n", mass(m.Expected.X), mass(m.Observed.X))
	return err
}

func mass(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// Encode writes r as YAML.
func (r *Report) Encode(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// WriteFile writes r as YAML to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read loads a report written by WriteFile.
func Read(path string) (*Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
