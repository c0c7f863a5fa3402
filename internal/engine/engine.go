// Package engine scores picks against results: one pair at a time through
// ScoreResult, or every pending pair through ScorePendingResults.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/audit"
	"github.com/okian/paddock/internal/domain/inflight"
	"github.com/okian/paddock/internal/domain/scoring"
	"github.com/okian/paddock/pkg/logger"
)

// Default batch settings.
const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
	DefaultPairTimeout = 30 * time.Second
)

// Notifier is told about every committed pair.
type Notifier interface {
	PairScored(ctx context.Context, r PairReport) error
}

type nopNotifier struct{}

func (nopNotifier) PairScored(context.Context, PairReport) error { return nil }

// Engine is the scoring orchestrator.
type Engine struct {
	store    repository.Store
	rules    *scoring.Registry
	emitter  *audit.Emitter
	notifier Notifier
	tracker  inflight.Tracker

	now   func() time.Time
	newID func() string

	workers        int
	queueSize      int
	pairsPerSecond float64
	pairTimeout    time.Duration

	logger logger.Logger
}

// New creates an Engine over store using rules.
func New(store repository.Store, rules *scoring.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		rules:       rules,
		notifier:    nopNotifier{},
		tracker:     inflight.NewInMemoryTracker(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		workers:     DefaultWorkers,
		queueSize:   DefaultQueueSize,
		pairTimeout: DefaultPairTimeout,
		logger:      logger.Get().Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.emitter == nil {
		e.emitter = audit.NewEmitter(audit.WithClock(e.now), audit.WithIDGenerator(e.newID))
	}
	return e
}

// Rules returns the registry the engine scores with.
func (e *Engine) Rules() *scoring.Registry {
	return e.rules
}

// Running reports whether a batch is in progress in this process.
func (e *Engine) Running() bool {
	return e.tracker.Running(batchKey)
}
