// Package worker runs queued plot jobs on a bounded pool of goroutines.
package worker

import (
	"github.com/okian/hepplot/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithName sets the pool name for identification and logging.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithFailFast cancels the remaining jobs after the first failure.
func WithFailFast(enabled bool) Option {
	return func(p *Pool) {
		p.failFast = enabled
	}
}
