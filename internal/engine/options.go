package engine

import (
	"time"

	"github.com/okian/paddock/internal/domain/audit"
	"github.com/okian/paddock/internal/domain/inflight"
	"github.com/okian/paddock/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets where "pair scored" notifications go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClock overrides the timestamp source for scores and checkpoints.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides score and run id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithAuditEmitter replaces the audit entry builder.
func WithAuditEmitter(em *audit.Emitter) Option {
	return func(e *Engine) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithTracker replaces the in-process run tracker.
func WithTracker(t inflight.Tracker) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracker = t
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers sets how many pairs a batch scores concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithQueueSize bounds the batch dispatch queue.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithPairsPerSecond paces a batch. Zero means unpaced.
func WithPairsPerSecond(rps float64) Option {
	return func(e *Engine) {
		if rps >= 0 {
			e.pairsPerSecond = rps
		}
	}
}

// WithPairTimeout bounds one pair inside a batch.
func WithPairTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pairTimeout = d
		}
	}
}

// RunOption configures a single batch run.
type RunOption func(*runOptions)

type runOptions struct {
	force bool
}

// WithForce rescores every pair that has a result, pending or not.
func WithForce() RunOption {
	return func(o *runOptions) { o.force = true }
}
