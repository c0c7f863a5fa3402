package worker

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/paddock/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithLimiter paces job intake. Pass the same limiter to every worker of a
// pool to bound the pool's total rate.
func WithLimiter(l *rate.Limiter) Option {
	return func(w *InMemoryWorker) {
		w.limiter = l
	}
}

// WithJobTimeout bounds how long a single job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}
