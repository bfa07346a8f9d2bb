package histo

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidSeries = errors.New("invalid bin series")

	// ErrDomain is the parent of every input that makes ratio arithmetic undefined.
	ErrDomain                = errors.New("domain error")
	ErrBinMismatch           = errors.New("bin mismatch")
	ErrNonPositiveBackground = errors.New("non-positive background")
)

// domainError joins a specific kind with ErrDomain so both match errors.Is.
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.kind.Error() + ": " + e.msg }

func (e *domainError) Unwrap() []error { return []error{ErrDomain, e.kind} }
