package curve

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidCurve  = errors.New("invalid sampled curve")
	ErrInvalidOption = errors.New("invalid solver option")
	ErrNoSignChange  = errors.New("no sign change in bracket")
)

// ConvergenceWarning reports that the solver hit its iteration cap before the
// bracket shrank below the requested precision. The accompanying Result still
// carries the best midpoint.
type ConvergenceWarning struct {
	Iterations int
	Width      float64
	Precision  float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("intersection not converged after %d iterations: bracket width %g > precision %g",
		w.Iterations, w.Width, w.Precision)
}
