// Package scheduler runs periodic jobs such as the pending-results batch.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/paddock/pkg/logger"
)

// Job is a scheduled unit of work. It receives the runner's base context.
type Job func(ctx context.Context)

// Entry describes a registered job.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

// Runner wraps a cron scheduler. Overlapping runs of one job are skipped and
// panics are recovered.
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
	logger  logger.Logger

	mu    sync.Mutex
	names map[cron.EntryID]Entry
}

// New creates a stopped runner. Jobs see a context derived from ctx that is
// cancelled by Stop.
func New(ctx context.Context, opts ...Option) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Runner{
		names:  make(map[cron.EntryID]Entry),
		logger: logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.baseCtx, r.cancel = context.WithCancel(ctx)

	cl := cronLogger{l: r.logger}
	r.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	return r
}

// Add registers job under spec. Standard five-field expressions and
// descriptors such as "@every 5m" are accepted.
func (r *Runner) Add(name, spec string, job Job) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		start := time.Now()
		r.logger.Debug(r.baseCtx, "job started", logger.String("job", name))
		job(r.baseCtx)
		r.logger.Debug(r.baseCtx, "job finished", logger.String("job", name), logger.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %s with %q: %w", name, spec, err)
	}
	r.mu.Lock()
	r.names[id] = Entry{Name: name, Spec: spec}
	r.mu.Unlock()
	return id, nil
}

// Entries lists registered jobs with their next and previous run times.
func (r *Runner) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.names))
	for _, ce := range r.cron.Entries() {
		e := r.names[ce.ID]
		e.Next, e.Prev = ce.Next, ce.Prev
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return a.Next.Compare(b.Next) })
	return out
}

// Start begins scheduling in the background.
func (r *Runner) Start() {
	r.logger.Info(r.baseCtx, "scheduler started", logger.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop cancels the jobs' context and waits for running jobs or ctx.
func (r *Runner) Stop(ctx context.Context) error {
	r.cancel()
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
