package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/model"
)

const (
	selectResult = `SELECT event_id, prop_type, actual_value, source, source_reference,
       COALESCE(metadata, '{}'::jsonb) AS metadata, ingested_at, updated_at
FROM results
WHERE event_id = $1 AND prop_type = $2`

	selectPicks = `SELECT id, user_id, event_id, prop_type, prop_value,
       COALESCE(metadata, '{}'::jsonb) AS metadata, created_at
FROM picks
WHERE event_id = $1 AND prop_type = $2
ORDER BY id`

	selectPairScores = `SELECT id, pick_id, user_id, event_id, prop_type, points, margin,
       exact_match, metadata, created_at, updated_at
FROM scores
WHERE event_id = $1 AND prop_type = $2
FOR UPDATE`

	upsertScore = `INSERT INTO scores (id, pick_id, user_id, event_id, prop_type, points, margin,
       exact_match, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (pick_id) DO UPDATE SET
       points = EXCLUDED.points,
       margin = EXCLUDED.margin,
       exact_match = EXCLUDED.exact_match,
       metadata = EXCLUDED.metadata,
       updated_at = EXCLUDED.updated_at`

	insertAudit = `INSERT INTO audit_entries (id, entity_type, entity_id, action, pick_id, event_id,
       prop_type, payload, performed_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	upsertCheckpoint = `INSERT INTO scoring_checkpoints (event_id, prop_type, result_updated_at,
       rule_version, picks_scored, scored_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id, prop_type) DO UPDATE SET
       result_updated_at = EXCLUDED.result_updated_at,
       rule_version = EXCLUDED.rule_version,
       picks_scored = EXCLUDED.picks_scored,
       scored_at = EXCLUDED.scored_at`
)

type pairTx struct {
	tx  *sqlx.Tx
	key model.PairKey
}

var _ repository.PairTx = (*pairTx)(nil)

func (t *pairTx) Result(ctx context.Context) (model.Result, error) {
	defer observe("result", time.Now())
	var r model.Result
	err := t.tx.GetContext(ctx, &r, selectResult, t.key.EventID, string(t.key.PropType))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Result{}, fmt.Errorf("result %s: %w", t.key, repository.ErrNotFound)
	}
	if err != nil {
		return model.Result{}, fmt.Errorf("load result %s: %w", t.key, err)
	}
	return r, nil
}

func (t *pairTx) Picks(ctx context.Context) ([]model.Pick, error) {
	defer observe("picks", time.Now())
	var picks []model.Pick
	if err := t.tx.SelectContext(ctx, &picks, selectPicks, t.key.EventID, string(t.key.PropType)); err != nil {
		return nil, fmt.Errorf("load picks %s: %w", t.key, err)
	}
	return picks, nil
}

func (t *pairTx) Scores(ctx context.Context) (map[string]model.Score, error) {
	defer observe("scores", time.Now())
	var rows []model.Score
	if err := t.tx.SelectContext(ctx, &rows, selectPairScores, t.key.EventID, string(t.key.PropType)); err != nil {
		return nil, fmt.Errorf("load scores %s: %w", t.key, err)
	}
	out := make(map[string]model.Score, len(rows))
	for _, s := range rows {
		out[s.PickID] = s
	}
	return out, nil
}

func (t *pairTx) UpsertScore(ctx context.Context, s model.Score) error {
	defer observe("upsert_score", time.Now())
	_, err := t.tx.ExecContext(ctx, upsertScore,
		s.ID, s.PickID, s.UserID, s.EventID, string(s.PropType), s.Points, s.Margin,
		s.ExactMatch, s.Details, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert score for pick %s: %w", s.PickID, err)
	}
	return nil
}

func (t *pairTx) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	defer observe("append_audit", time.Now())
	_, err := t.tx.ExecContext(ctx, insertAudit,
		e.ID, string(e.EntityType), e.EntityID, string(e.Action), e.PickID, e.EventID,
		string(e.PropType), e.Payload, e.PerformedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit for pick %s: %w", e.PickID, err)
	}
	return nil
}

func (t *pairTx) SaveCheckpoint(ctx context.Context, c model.Checkpoint) error {
	defer observe("save_checkpoint", time.Now())
	_, err := t.tx.ExecContext(ctx, upsertCheckpoint,
		c.EventID, string(c.PropType), c.ResultUpdatedAt, c.RuleVersion, c.PicksScored, c.ScoredAt)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", c.Key(), err)
	}
	return nil
}
