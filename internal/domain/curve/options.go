package curve

// Default solver configuration constants.
const (
	DefaultPrecision     = 0.01
	DefaultMaxIterations = 10000
)

// Option applies a configuration option to the solver.
type Option func(*solver)

// WithPrecision sets the bracket width at which bisection stops.
func WithPrecision(precision float64) Option {
	return func(s *solver) {
		s.precision = precision
	}
}

// WithMaxIterations caps the number of bisection steps.
func WithMaxIterations(n int) Option {
	return func(s *solver) {
		s.maxIterations = n
	}
}

// WithBracketCheck toggles the up-front sign-change check on the initial
// bracket. Disabled, the solver bisects blindly and returns a midpoint even
// when the curves never cross inside the bracket.
func WithBracketCheck(enabled bool) Option {
	return func(s *solver) {
		s.bracketCheck = enabled
	}
}
