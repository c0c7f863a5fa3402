package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/model"
)

const (
	selectPairStates = `SELECT r.event_id, r.prop_type, r.updated_at,
       c.result_updated_at AS checkpoint_result_updated_at,
       c.rule_version AS checkpoint_rule_version,
       c.picks_scored AS checkpoint_picks_scored,
       c.scored_at AS checkpoint_scored_at,
       EXISTS (
           SELECT 1 FROM picks p
           LEFT JOIN scores s ON s.pick_id = p.id
           WHERE p.event_id = r.event_id AND p.prop_type = r.prop_type AND s.id IS NULL
       ) AS missing_scores
FROM results r
LEFT JOIN scoring_checkpoints c ON c.event_id = r.event_id AND c.prop_type = r.prop_type
ORDER BY r.updated_at, r.event_id, r.prop_type`

	selectCounts = `SELECT
       (SELECT COUNT(*) FROM picks) AS picks,
       (SELECT COUNT(*) FROM results) AS results,
       (SELECT COUNT(*) FROM scores) AS scores,
       (SELECT COUNT(*) FROM audit_entries) AS audit_entries,
       (SELECT COUNT(*) FROM scoring_checkpoints) AS checkpoints`
)

type pairStateRow struct {
	EventID                   string         `db:"event_id"`
	PropType                  string         `db:"prop_type"`
	UpdatedAt                 time.Time      `db:"updated_at"`
	CheckpointResultUpdatedAt sql.NullTime   `db:"checkpoint_result_updated_at"`
	CheckpointRuleVersion     sql.NullString `db:"checkpoint_rule_version"`
	CheckpointPicksScored     sql.NullInt64  `db:"checkpoint_picks_scored"`
	CheckpointScoredAt        sql.NullTime   `db:"checkpoint_scored_at"`
	MissingScores             bool           `db:"missing_scores"`
}

func (r pairStateRow) state() model.PairState {
	st := model.PairState{
		Key:             model.PairKey{EventID: r.EventID, PropType: model.PropType(r.PropType)},
		ResultUpdatedAt: r.UpdatedAt,
		MissingScores:   r.MissingScores,
	}
	if r.CheckpointResultUpdatedAt.Valid {
		st.Checkpoint = &model.Checkpoint{
			EventID:         r.EventID,
			PropType:        st.Key.PropType,
			ResultUpdatedAt: r.CheckpointResultUpdatedAt.Time,
			RuleVersion:     r.CheckpointRuleVersion.String,
			PicksScored:     int(r.CheckpointPicksScored.Int64),
			ScoredAt:        r.CheckpointScoredAt.Time,
		}
	}
	return st
}

// ListPairStates implements repository.Store.
func (s *Store) ListPairStates(ctx context.Context) ([]model.PairState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observe("list_pair_states", time.Now())

	var rows []pairStateRow
	if err := s.db.SelectContext(ctx, &rows, selectPairStates); err != nil {
		return nil, fmt.Errorf("list pair states: %w", err)
	}
	out := make([]model.PairState, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.state())
	}
	return out, nil
}

// ListScores implements repository.Reader.
func (s *Store) ListScores(ctx context.Context, f repository.ScoreFilter) ([]model.Score, error) {
	limit, err := repository.NormalizeLimit(f.Limit)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observe("list_scores", time.Now())

	var (
		where []string
		args  []any
	)
	if f.EventID != "" {
		where = append(where, "event_id = ?")
		args = append(args, f.EventID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.PropType != "" {
		where = append(where, "prop_type = ?")
		args = append(args, string(f.PropType))
	}
	if len(f.PickIDs) > 0 {
		where = append(where, "pick_id IN (?)")
		args = append(args, f.PickIDs)
	}

	q := `SELECT id, pick_id, user_id, event_id, prop_type, points, margin, exact_match,
       metadata, created_at, updated_at
FROM scores`
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY event_id, prop_type, pick_id\nLIMIT ?"
	args = append(args, limit)

	q, args, err = sqlx.In(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	var out []model.Score
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return out, nil
}

// ListAudit implements repository.Reader. Entries come back newest first.
func (s *Store) ListAudit(ctx context.Context, f repository.AuditFilter) ([]model.AuditEntry, error) {
	limit, err := repository.NormalizeLimit(f.Limit)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observe("list_audit", time.Now())

	var (
		where []string
		args  []any
	)
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.PickID != "" {
		where = append(where, "pick_id = ?")
		args = append(args, f.PickID)
	}
	if f.EventID != "" {
		where = append(where, "event_id = ?")
		args = append(args, f.EventID)
	}

	q := `SELECT id, entity_type, entity_id, action, pick_id, event_id, prop_type, payload,
       performed_by, created_at
FROM audit_entries`
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY created_at DESC, id DESC\nLIMIT ?"
	args = append(args, limit)

	var out []model.AuditEntry
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}

// Counts implements repository.Reader.
func (s *Store) Counts(ctx context.Context) (repository.Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observe("counts", time.Now())

	var c repository.Counts
	if err := s.db.GetContext(ctx, &c, selectCounts); err != nil {
		return repository.Counts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}
