package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/domain/scoring"
	"github.com/okian/paddock/pkg/logger"
	"github.com/okian/paddock/pkg/metrics"
)

// PairReport describes one committed scoring pass.
type PairReport struct {
	model.PairKey
	RuleVersion     string        `json:"rule_version"`
	ResultUpdatedAt time.Time     `json:"result_updated_at"`
	Picks           int           `json:"picks_scored"`
	Created         int           `json:"scores_created"`
	Updated         int           `json:"scores_updated"`
	Unchanged       int           `json:"scores_unchanged"`
	Warnings        int           `json:"warnings"`
	TotalPoints     int           `json:"total_points"`
	Duration        time.Duration `json:"duration_ns"`
}

// Changed reports whether the pass wrote any score.
func (r PairReport) Changed() bool {
	return r.Created+r.Updated > 0
}

// ScoreResult scores every pick of one (event, prop type) pair against its
// result. It is idempotent: rerunning with unchanged inputs writes nothing.
func (e *Engine) ScoreResult(ctx context.Context, eventID string, propType model.PropType) (PairReport, error) {
	key := model.PairKey{EventID: eventID, PropType: propType}
	start := time.Now()

	rule, err := e.rules.Lookup(propType)
	if err != nil {
		return PairReport{PairKey: key}, e.fail(ctx, key, err)
	}

	var (
		report PairReport
		labels []string
	)
	err = e.store.WithPairTx(ctx, key, func(tx repository.PairTx) error {
		report = PairReport{PairKey: key, RuleVersion: rule.Version}
		labels = labels[:0]
		return e.scorePair(ctx, tx, rule, &report, &labels)
	})
	if err != nil {
		return PairReport{PairKey: key}, e.fail(ctx, key, err)
	}
	report.Duration = time.Since(start)

	metrics.RecordPairScored(float64(report.Duration.Microseconds()) / 1000)
	for _, l := range labels {
		metrics.RecordPickScored(l)
	}
	metrics.RecordScoreWrites("created", report.Created)
	metrics.RecordScoreWrites("updated", report.Updated)
	metrics.RecordScoreWrites("unchanged", report.Unchanged)

	e.logger.Info(ctx, "pair scored",
		logger.String("event_id", key.EventID),
		logger.String("prop_type", string(key.PropType)),
		logger.Int("picks", report.Picks),
		logger.Int("created", report.Created),
		logger.Int("updated", report.Updated),
		logger.Int("unchanged", report.Unchanged),
		logger.Int("warnings", report.Warnings),
		logger.Duration("duration", report.Duration),
	)

	if err := e.notifier.PairScored(ctx, report); err != nil {
		e.logger.Warn(ctx, "pair scored notification failed",
			logger.String("event_id", key.EventID),
			logger.String("prop_type", string(key.PropType)),
			logger.Error(err),
		)
	}
	return report, nil
}

func (e *Engine) scorePair(ctx context.Context, tx repository.PairTx, rule scoring.Rule, report *PairReport, labels *[]string) error {
	key := report.PairKey

	result, err := tx.Result(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrResultNotFound, key)
	}
	if err != nil {
		return err
	}
	report.ResultUpdatedAt = result.UpdatedAt

	if err := scoring.ValidateActual(rule, result.ActualValue); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}

	picks, err := tx.Picks(ctx)
	if err != nil {
		return err
	}
	existing := map[string]model.Score{}
	if len(picks) > 0 {
		if existing, err = tx.Scores(ctx); err != nil {
			return err
		}
	}

	now := e.now()
	for _, pick := range picks {
		out, err := scoring.Evaluate(rule, pick.PropValue, result.ActualValue)
		if err != nil {
			return err
		}
		report.Picks++
		report.TotalPoints += out.Points
		*labels = append(*labels, out.Label())
		if out.Warning != nil {
			report.Warnings++
			metrics.RecordDataQualityWarning(string(key.PropType))
			e.logger.Warn(ctx, "pick scored zero on unusable value",
				logger.String("event_id", key.EventID),
				logger.String("prop_type", string(key.PropType)),
				logger.String("pick_id", pick.ID),
				logger.Error(out.Warning),
			)
		}

		next := model.Score{
			PickID:     pick.ID,
			UserID:     pick.UserID,
			EventID:    pick.EventID,
			PropType:   pick.PropType,
			Points:     out.Points,
			Margin:     out.Margin,
			ExactMatch: out.ExactMatch,
			Details:    out.Details,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		var prev *model.Score
		if old, ok := existing[pick.ID]; ok {
			if old.SameOutcome(next) {
				report.Unchanged++
				continue
			}
			next.ID = old.ID
			next.CreatedAt = old.CreatedAt
			prev = &old
			report.Updated++
		} else {
			next.ID = e.newID()
			report.Created++
		}

		if err := tx.UpsertScore(ctx, next); err != nil {
			return err
		}
		if _, err := e.emitter.Emit(ctx, tx, prev, next); err != nil {
			return err
		}
	}

	return tx.SaveCheckpoint(ctx, model.Checkpoint{
		EventID:         key.EventID,
		PropType:        key.PropType,
		ResultUpdatedAt: result.UpdatedAt,
		RuleVersion:     rule.Version,
		PicksScored:     len(picks),
		ScoredAt:        now,
	})
}

func (e *Engine) fail(ctx context.Context, key model.PairKey, err error) error {
	kind := failureKind(err)
	metrics.RecordPairFailed(kind)
	metrics.RecordErrorByComponent("engine", kind)
	e.logger.Error(ctx, "pair scoring failed",
		logger.String("event_id", key.EventID),
		logger.String("prop_type", string(key.PropType)),
		logger.String("kind", kind),
		logger.Error(err),
	)
	return &PairFailure{Key: key, Err: err}
}
