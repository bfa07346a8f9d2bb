package curve

import (
	"fmt"
	"math"
)

type solver struct {
	precision     float64
	maxIterations int
	bracketCheck  bool
}

// Result is the outcome of FindIntersection.
type Result struct {
	// X is the midpoint of the final bracket.
	X float64
	// Iterations is the number of bisection steps taken.
	Iterations int
	// Converged is false when the iteration cap was reached first.
	Converged bool

	width     float64
	precision float64
}

// Warning returns a *ConvergenceWarning when the solver stopped on its
// iteration cap, nil otherwise.
func (r Result) Warning() error {
	if r.Converged {
		return nil
	}
	return &ConvergenceWarning{Iterations: r.Iterations, Width: r.width, Precision: r.precision}
}

// FindIntersection locates the x where a and b cross by bisecting the sign of
// a(x) - b(x) over the domain of a. Exactly one crossing is expected in that
// bracket.
//
// Each step compares the sign at the left edge with the sign at the midpoint
// and keeps the half that contains the change. No derivative is used.
func FindIntersection(a, b SampledCurve, opts ...Option) (Result, error) {
	s := solver{
		precision:     DefaultPrecision,
		maxIterations: DefaultMaxIterations,
		bracketCheck:  true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if !(s.precision > 0) || math.IsInf(s.precision, 0) {
		return Result{}, fmt.Errorf("%w: precision must be positive, got %g", ErrInvalidOption, s.precision)
	}
	if s.maxIterations < 1 {
		return Result{}, fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidOption, s.maxIterations)
	}
	if a.Len() == 0 || b.Len() == 0 {
		return Result{}, fmt.Errorf("%w: empty curve", ErrInvalidCurve)
	}

	diff := func(x float64) float64 { return a.Eval(x) - b.Eval(x) }
	x1, x2 := a.Domain()

	if s.bracketCheck {
		d1, d2 := diff(x1), diff(x2)
		switch {
		case d1 == 0:
			return Result{X: x1, Converged: true, precision: s.precision}, nil
		case d2 == 0:
			return Result{X: x2, Converged: true, precision: s.precision}, nil
		case d1*d2 > 0:
			return Result{}, fmt.Errorf("%w: d(%g)=%g and d(%g)=%g have the same sign",
				ErrNoSignChange, x1, d1, x2, d2)
		}
	}

	calls := 0
	for math.Abs(x1-x2) > s.precision && calls < s.maxIterations {
		m := (x1 + x2) / 2
		dm := diff(m)
		calls++
		if dm == 0 {
			// exact hit; keeping either half would walk away from it
			x1, x2 = m, m
			break
		}
		if diff(x1)*dm < 0 {
			x2 = m
		} else {
			x1 = m
		}
	}

	width := math.Abs(x1 - x2)
	return Result{
		X:          (x1 + x2) / 2,
		Iterations: calls,
		Converged:  width <= s.precision,
		width:      width,
		precision:  s.precision,
	}, nil
}
