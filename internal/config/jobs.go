package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// Job kinds.
const (
	KindLimit   = "limit"
	KindPostfit = "postfit"
	KindPulls   = "pulls"
)

// Texts is the experiment label drawn in the top corner of every plot.
type Texts struct {
	Upper         string `koanf:"cms_text_upper"`
	Lower         string `koanf:"cms_text_lower"`
	RunParameters string `koanf:"cms_text_run_parameters"`
	Align         string `koanf:"cms_text_align"`
}

// CompareGraph is an extra expected limit drawn for comparison.
type CompareGraph struct {
	File  string `koanf:"file"`
	Color string `koanf:"color"`
	Title string `koanf:"title"`
}

// Sample is a named column of a post-fit table with its legend entry.
type Sample struct {
	Name  string `koanf:"name"`
	Title string `koanf:"title"`
	Color string `koanf:"color"`
}

// Job describes one plot. Which fields apply depends on Kind.
type Job struct {
	Kind string `koanf:"kind"`
	// Output overrides the derived plot path.
	Output string `koanf:"output"`

	Texts      Texts  `koanf:",squash"`
	XAxisTitle string `koanf:"x_axis_title"`
	YAxisTitle string `koanf:"y_axis_title"`
	LogY       bool   `koanf:"b_logy"`

	// limit
	LimitFile     string         `koanf:"limit_file_name"`
	TheoryFile    string         `koanf:"theory_file_name"`
	TheoryErr     bool           `koanf:"b_theory_err"`
	ExpectedTitle string         `koanf:"expected_title"`
	TheoryTitle   string         `koanf:"theory_title"`
	Compare       []CompareGraph `koanf:"compare_graphs"`

	// postfit and pulls
	FileName    string   `koanf:"file_name"`
	Channel     string   `koanf:"channel"`
	Backgrounds []Sample `koanf:"background_samples"`
	Signal      Sample   `koanf:"signal_sample"`

	// Source is the job file the job was read from.
	Source string `koanf:"-"`
}

// DefaultTexts returns the experiment label used when a job sets none.
func DefaultTexts() Texts {
	return Texts{
		Upper:         "CMS",
		Lower:         "Preliminary",
		RunParameters: "137 fb^{-1} (13 TeV)",
		Align:         "left",
	}
}

// NewJob returns a job of the given kind with that kind's defaults.
func NewJob(kind string) (*Job, error) {
	j := &Job{Kind: kind, Texts: DefaultTexts()}
	switch kind {
	case KindLimit:
		j.LogY = true
		j.ExpectedTitle = "Median expected"
		j.TheoryTitle = "Theory"
		j.XAxisTitle = "M_{tW} [TeV]"
		j.YAxisTitle = "#sigma(b*)"
	case KindPostfit:
		j.XAxisTitle = "Mass [TeV]"
		j.YAxisTitle = "Events/TeV"
	case KindPulls:
		j.XAxisTitle = "nuisance parameter pull"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return j, nil
}

// LoadJob reads a YAML job file. A missing kind is inferred from the keys
// present: limit_file_name means limit, file_name with channel means
// postfit, file_name alone means pulls.
func LoadJob(_ context.Context, path string) (*Job, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	kind := strings.ToLower(k.String("kind"))
	if kind == "" {
		kind = inferKind(k)
	}
	j, err := NewJob(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := k.UnmarshalWithConf("", j, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	j.Kind = kind
	j.Source = path
	if err := j.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	j.resolvePaths(filepath.Dir(path))
	return j, nil
}

func inferKind(k *koanf.Koanf) string {
	switch {
	case k.Exists("limit_file_name"):
		return KindLimit
	case k.Exists("file_name") && k.Exists("channel"):
		return KindPostfit
	case k.Exists("file_name"):
		return KindPulls
	}
	return ""
}

// Validate checks that the inputs of the job's kind are named.
func (j *Job) Validate() error {
	switch j.Texts.Align {
	case "left", "right":
	default:
		return fmt.Errorf("%w: cms_text_align must be left or right, got %q", ErrInvalidConfig, j.Texts.Align)
	}
	switch j.Kind {
	case KindLimit:
		if j.LimitFile == "" {
			return fmt.Errorf("%w: limit_file_name is required", ErrInvalidConfig)
		}
		for i, g := range j.Compare {
			if g.File == "" {
				return fmt.Errorf("%w: compare_graphs[%d].file is required", ErrInvalidConfig, i)
			}
			if err := checkColor(g.Color); err != nil {
				return fmt.Errorf("compare_graphs[%d]: %w", i, err)
			}
		}
	case KindPostfit:
		if j.FileName == "" || j.Channel == "" {
			return fmt.Errorf("%w: file_name and channel are required", ErrInvalidConfig)
		}
		if len(j.Backgrounds) == 0 {
			return fmt.Errorf("%w: background_samples must not be empty", ErrInvalidConfig)
		}
		for i, s := range j.Backgrounds {
			if s.Name == "" {
				return fmt.Errorf("%w: background_samples[%d].name is required", ErrInvalidConfig, i)
			}
			if err := checkColor(s.Color); err != nil {
				return fmt.Errorf("background_samples[%d]: %w", i, err)
			}
		}
	case KindPulls:
		if j.FileName == "" {
			return fmt.Errorf("%w: file_name is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, j.Kind)
	}
	return nil
}

func checkColor(s string) error {
	if s == "" {
		return nil
	}
	if _, err := colorful.Hex(s); err != nil {
		return fmt.Errorf("%w: color %q: %w", ErrInvalidConfig, s, err)
	}
	return nil
}

// resolvePaths makes input paths relative to the job file's directory.
func (j *Job) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	j.LimitFile = abs(j.LimitFile)
	j.TheoryFile = abs(j.TheoryFile)
	j.FileName = abs(j.FileName)
	j.Output = abs(j.Output)
	for i := range j.Compare {
		j.Compare[i].File = abs(j.Compare[i].File)
	}
}

// Input returns the main table the job reads.
func (j *Job) Input() string {
	if j.Kind == KindLimit {
		return j.LimitFile
	}
	return j.FileName
}

// OutputPath derives where the plot goes: Output when set, otherwise the
// channel name for post-fit plots and the input's base name for the others,
// with the given extension, in dir or next to the input.
func (j *Job) OutputPath(dir, format string) string {
	if j.Output != "" {
		return j.Output
	}
	in := j.Input()
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	if j.Kind == KindPostfit {
		base = j.Channel
	}
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, base+"."+format)
}
