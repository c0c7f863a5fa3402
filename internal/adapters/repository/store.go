// Package repository defines the storage contracts of the scoring engine
// and an in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/paddock/internal/domain/model"
)

// Default and maximum page sizes for list queries.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Store gives the scoring engine access to picks, results, scores and audit history.
type Store interface {
	Reader

	// WithPairTx runs fn in one transaction scoped to a single pair.
	// Calls for the same pair are serialised; fn's writes commit together
	// or not at all.
	WithPairTx(ctx context.Context, key model.PairKey, fn func(tx PairTx) error) error

	// ListPairStates returns every pair that has a result, with what is known
	// about its last scoring pass.
	ListPairStates(ctx context.Context) ([]model.PairState, error)

	Ping(ctx context.Context) error
	Close() error
}

// PairTx is the view of one pair inside WithPairTx.
type PairTx interface {
	// Result returns the pair's result or ErrNotFound.
	Result(ctx context.Context) (model.Result, error)
	// Picks returns the pair's picks ordered by id.
	Picks(ctx context.Context) ([]model.Pick, error)
	// Scores returns the pair's current scores keyed by pick id.
	Scores(ctx context.Context) (map[string]model.Score, error)
	// UpsertScore inserts or overwrites the score for s.PickID.
	UpsertScore(ctx context.Context, s model.Score) error
	// AppendAudit appends an immutable audit entry.
	AppendAudit(ctx context.Context, e model.AuditEntry) error
	// SaveCheckpoint records the scoring pass over the pair.
	SaveCheckpoint(ctx context.Context, c model.Checkpoint) error
}

// Reader serves the read-only query surface.
type Reader interface {
	ListScores(ctx context.Context, f ScoreFilter) ([]model.Score, error)
	ListAudit(ctx context.Context, f AuditFilter) ([]model.AuditEntry, error)
	Counts(ctx context.Context) (Counts, error)
}

// ScoreFilter narrows ListScores. Empty fields match everything.
type ScoreFilter struct {
	EventID  string
	UserID   string
	PropType model.PropType
	PickIDs  []string
	Limit    int
}

// AuditFilter narrows ListAudit. Empty fields match everything.
type AuditFilter struct {
	EntityID string
	PickID   string
	EventID  string
	Limit    int
}

// Counts summarises table sizes for operational stats.
type Counts struct {
	Picks        int `json:"picks" db:"picks"`
	Results      int `json:"results" db:"results"`
	Scores       int `json:"scores" db:"scores"`
	AuditEntries int `json:"audit_entries" db:"audit_entries"`
	Checkpoints  int `json:"checkpoints" db:"checkpoints"`
}

// NormalizeLimit applies the default and rejects out-of-range limits.
func NormalizeLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultListLimit, nil
	case limit < 0 || limit > MaxListLimit:
		return 0, ErrInvalidLimit
	default:
		return limit, nil
	}
}
