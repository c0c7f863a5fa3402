package notify

import (
	"time"

	"github.com/okian/paddock/pkg/logger"
)

// Option configures a RedisPublisher.
type Option func(*RedisPublisher)

// WithClock overrides the scored_at timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *RedisPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *RedisPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}
