package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/paddock/internal/adapters/mq/queue"
	"github.com/okian/paddock/internal/adapters/mq/worker"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/pkg/logger"
	"github.com/okian/paddock/pkg/metrics"
)

const (
	batchKey       = "batch"
	enqueueBackoff = 5 * time.Millisecond
)

// Pending returns the pairs the next batch would score, in discovery order.
func (e *Engine) Pending(ctx context.Context, opts ...RunOption) ([]model.PairKey, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	states, err := e.store.ListPairStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover pairs: %w", err)
	}
	pending := make([]model.PairKey, 0, len(states))
	for _, st := range states {
		if ro.force || st.Pending(e.rules.Version(st.Key.PropType)) {
			pending = append(pending, st.Key)
		}
	}
	return pending, nil
}

// ScorePendingResults scores every pair whose result, picks or rule changed
// since its last pass. Pairs fail independently; a failed pair is reported
// in the summary and retried by the next run. Cancelling ctx stops dispatch,
// marks the summary Interrupted and leaves completed pairs committed.
func (e *Engine) ScorePendingResults(ctx context.Context, opts ...RunOption) (Summary, error) {
	if !e.tracker.TryStart(ctx, batchKey) {
		return Summary{}, ErrBatchInProgress
	}
	defer e.tracker.Done(ctx, batchKey)

	c := &collector{parent: ctx, sum: Summary{RunID: e.newID(), StartedAt: e.now()}}
	start := time.Now()
	log := e.logger.With(logger.String("run_id", c.sum.RunID))

	pending, err := e.Pending(ctx, opts...)
	if err != nil {
		metrics.RecordBatchRun("error", float64(time.Since(start).Milliseconds()), time.Now().Unix())
		log.Error(ctx, "batch discovery failed", logger.Error(err))
		return c.summary(), err
	}
	c.sum.PairsDiscovered = len(pending)
	metrics.UpdatePendingPairs(len(pending))
	log.Info(ctx, "batch started", logger.Int("pending", len(pending)))

	var dispatched int64
	if len(pending) > 0 {
		dispatched = e.dispatch(ctx, pending, c)
	}
	if ctx.Err() != nil {
		c.sum.Interrupted = true
	}

	sum := c.summary()
	sum.FinishedAt = e.now()
	slices.SortFunc(sum.Failures, func(a, b Failure) int {
		return cmp.Or(cmp.Compare(a.EventID, b.EventID), cmp.Compare(a.PropType, b.PropType))
	})

	metrics.RecordBatchRun(sum.Status(), float64(time.Since(start).Milliseconds()), time.Now().Unix())
	log.Info(ctx, "batch finished",
		logger.String("status", sum.Status()),
		logger.Int("pairs_scored", sum.PairsScored),
		logger.Int("pairs_failed", sum.PairsFailed),
		logger.Int("picks_scored", sum.PicksScored),
		logger.Int("scores_created", sum.ScoresCreated),
		logger.Int("scores_updated", sum.ScoresUpdated),
		logger.Int("warnings", sum.Warnings),
		logger.Int64("pairs_dispatched", dispatched),
		logger.Duration("duration", time.Since(start)),
	)
	return sum, nil
}

// dispatch feeds pending pairs to a worker pool and returns how many the
// pool picked up. On cancellation the pool stops after the pairs in hand.
func (e *Engine) dispatch(ctx context.Context, pending []model.PairKey, c *collector) int64 {
	q := queue.NewInMemoryQueue(queue.WithCapacity(e.queueSize))

	proc := worker.ProcessorFunc(func(ctx context.Context, key queue.Job) error {
		report, err := e.ScoreResult(ctx, key.EventID, key.PropType)
		c.record(key, report, err)
		return err
	})

	wopts := []worker.Option{worker.WithJobTimeout(e.pairTimeout)}
	if e.pairsPerSecond > 0 {
		wopts = append(wopts, worker.WithLimiter(rate.NewLimiter(rate.Limit(e.pairsPerSecond), 1)))
	}
	pool := worker.NewPool(min(e.workers, len(pending)), q, proc, wopts...)
	pool.Start(ctx)
	e.logger.Debug(ctx, "worker pool started", logger.Int("workers", pool.Size()), logger.Int("pairs", len(pending)))

enqueue:
	for _, key := range pending {
		for !q.Enqueue(ctx, key) {
			select {
			case <-ctx.Done():
				break enqueue
			case <-time.After(enqueueBackoff):
			}
		}
	}
	if ctx.Err() != nil {
		_ = pool.Shutdown(context.WithoutCancel(ctx))
	} else {
		_ = q.Close()
	}
	pool.Wait()
	return pool.Processed()
}
