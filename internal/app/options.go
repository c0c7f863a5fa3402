package service

import (
	"time"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore replaces the configured store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.injectedStore = store
	}
}

// WithNotifier replaces the Redis notifier.
func WithNotifier(n engine.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithEngineOptions appends engine options after the configured ones.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithStatsInterval sets how often the pending-pairs gauge is refreshed.
func WithStatsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statsInterval = d
		}
	}
}
