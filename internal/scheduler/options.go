package scheduler

import "github.com/okian/paddock/pkg/logger"

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}
