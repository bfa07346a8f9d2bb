// Package pulls lays out nuisance-parameter pulls from the background-only
// and signal+background fits, one row per parameter.
package pulls

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Vertical offsets of the two fit markers inside a parameter's row.
const (
	BackgroundOffset = 0.35
	SignalOffset     = 0.65
)

// ErrNoRows is returned when a pulls table is empty.
var ErrNoRows = errors.New("no nuisance parameters")

// Row is one nuisance parameter as read from the pulls table.
type Row struct {
	Label        string
	PostfitB     float64
	PostfitBUp   float64
	PostfitBDown float64
	PostfitS     float64
	PostfitSUp   float64
	PostfitSDown float64
}

// Marker is one horizontal error bar. Left and Right are arm lengths.
type Marker struct {
	X     float64
	Y     float64
	Left  float64
	Right float64
}

// Layout is the drawable content of a pulls plot. Index i of every slice
// belongs to the same parameter; row 0 is drawn at the bottom.
type Layout struct {
	Labels     []string
	Background []Marker
	Signal     []Marker
}

// Len returns the number of parameters.
func (l Layout) Len() int { return len(l.Labels) }

// Build reverses the table so its first parameter ends up at the top of the
// plot, then places each parameter's b-only marker at i+0.35 and s+b marker
// at i+0.65. The left arm takes the "up" column and the right arm the
// "down" column, as the published pulls plots do.
func Build(rows []Row) (Layout, error) {
	n := len(rows)
	if n == 0 {
		return Layout{}, ErrNoRows
	}
	l := Layout{
		Labels:     make([]string, n),
		Background: make([]Marker, n),
		Signal:     make([]Marker, n),
	}
	for i := 0; i < n; i++ {
		r := rows[n-1-i]
		if r.PostfitBUp < 0 || r.PostfitBDown < 0 || r.PostfitSUp < 0 || r.PostfitSDown < 0 {
			return Layout{}, fmt.Errorf("parameter %q: negative error", r.Label)
		}
		y := float64(i)
		l.Labels[i] = r.Label
		l.Background[i] = Marker{X: r.PostfitB, Y: y + BackgroundOffset, Left: r.PostfitBUp, Right: r.PostfitBDown}
		l.Signal[i] = Marker{X: r.PostfitS, Y: y + SignalOffset, Left: r.PostfitSUp, Right: r.PostfitSDown}
	}
	return l, nil
}

// FitSummary describes the pulls of one fit.
type FitSummary struct {
	Mean         float64 `yaml:"mean"`
	StdDev       float64 `yaml:"std_dev"`
	MaxAbs       float64 `yaml:"max_abs"`
	Outside1Sig  int     `yaml:"outside_1sigma"`
	Outside2Sig  int     `yaml:"outside_2sigma"`
	LargestLabel string  `yaml:"largest"`
}

// Summary holds the b-only and s+b fit summaries.
type Summary struct {
	Parameters       int        `yaml:"parameters"`
	BackgroundOnly   FitSummary `yaml:"background_only"`
	SignalBackground FitSummary `yaml:"signal_plus_background"`
}

// Summarize computes pull statistics for both fits.
func Summarize(rows []Row) (Summary, error) {
	if len(rows) == 0 {
		return Summary{}, ErrNoRows
	}
	labels := make([]string, len(rows))
	b := make([]float64, len(rows))
	s := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = r.Label
		b[i] = r.PostfitB
		s[i] = r.PostfitS
	}
	bs, err := summarize(labels, b)
	if err != nil {
		return Summary{}, fmt.Errorf("background-only pulls: %w", err)
	}
	ss, err := summarize(labels, s)
	if err != nil {
		return Summary{}, fmt.Errorf("signal+background pulls: %w", err)
	}
	return Summary{Parameters: len(rows), BackgroundOnly: bs, SignalBackground: ss}, nil
}

func summarize(labels []string, pulls []float64) (FitSummary, error) {
	mean, err := stats.Mean(pulls)
	if err != nil {
		return FitSummary{}, err
	}
	sd, err := stats.StandardDeviation(pulls)
	if err != nil {
		return FitSummary{}, err
	}
	out := FitSummary{Mean: mean, StdDev: sd}
	for i, p := range pulls {
		a := math.Abs(p)
		if a > 1 {
			out.Outside1Sig++
		}
		if a > 2 {
			out.Outside2Sig++
		}
		if a > out.MaxAbs || out.LargestLabel == "" {
			out.MaxAbs = a
			out.LargestLabel = labels[i]
		}
	}
	return out, nil
}
