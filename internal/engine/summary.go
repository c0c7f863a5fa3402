package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/paddock/internal/domain/model"
)

// Failure is one pair a batch could not score.
type Failure struct {
	EventID  string         `json:"event_id"`
	PropType model.PropType `json:"prop_type"`
	Reason   string         `json:"reason"`
}

// Summary reports a batch run.
type Summary struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	PairsDiscovered int       `json:"pairs_discovered"`
	PairsScored     int       `json:"pairs_scored"`
	PairsFailed     int       `json:"pairs_failed"`
	PicksScored     int       `json:"picks_scored"`
	ScoresCreated   int       `json:"scores_created"`
	ScoresUpdated   int       `json:"scores_updated"`
	ScoresUnchanged int       `json:"scores_unchanged"`
	Warnings        int       `json:"warnings"`
	Failures        []Failure `json:"failures"`
	Interrupted     bool      `json:"interrupted"`
}

// Status classifies the run for metrics: ok, partial, interrupted or empty.
func (s Summary) Status() string {
	switch {
	case s.Interrupted:
		return "interrupted"
	case s.PairsFailed > 0:
		return "partial"
	case s.PairsDiscovered == 0:
		return "empty"
	default:
		return "ok"
	}
}

// collector accumulates pair outcomes from concurrent workers.
type collector struct {
	parent context.Context

	mu  sync.Mutex
	sum Summary
}

func (c *collector) record(key model.PairKey, r PairReport, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		// A pair cut short by the run's own cancellation is not a failure;
		// it stays pending for the next run.
		if c.parent.Err() != nil && errors.Is(err, context.Canceled) {
			c.sum.Interrupted = true
			return
		}
		c.sum.PairsFailed++
		c.sum.Failures = append(c.sum.Failures, Failure{
			EventID:  key.EventID,
			PropType: key.PropType,
			Reason:   reason(err),
		})
		return
	}
	c.sum.PairsScored++
	c.sum.PicksScored += r.Picks
	c.sum.ScoresCreated += r.Created
	c.sum.ScoresUpdated += r.Updated
	c.sum.ScoresUnchanged += r.Unchanged
	c.sum.Warnings += r.Warnings
}

func (c *collector) summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.sum
	out.Failures = append([]Failure{}, c.sum.Failures...)
	return out
}

// reason drops the PairFailure prefix; the failure entry already names the pair.
func reason(err error) string {
	var pf *PairFailure
	if errors.As(err, &pf) {
		return pf.Err.Error()
	}
	return err.Error()
}
