// Package audit builds the append-only history of scoring actions.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/paddock/internal/domain/model"
)

// DefaultActor is recorded when the context names no actor.
const DefaultActor = "paddock"

// Appender persists audit entries. Implementations must never update or delete.
type Appender interface {
	AppendAudit(ctx context.Context, e model.AuditEntry) error
}

type actorKey struct{}

// WithActor tags ctx with who triggered the scoring (scheduler, cli, api, ...).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored in ctx or DefaultActor.
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return DefaultActor
}

// Emitter turns score writes into audit entries.
type Emitter struct {
	now   func() time.Time
	newID func() string
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Emitter) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// NewEmitter creates an Emitter with UUID ids and a UTC wall clock.
func NewEmitter(opts ...Option) *Emitter {
	e := &Emitter{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Entry builds the audit entry for writing next over prev.
// A nil prev is a first write (score_calculated); otherwise the entry is
// score_overridden and carries the old values.
func (e *Emitter) Entry(ctx context.Context, prev *model.Score, next model.Score) model.AuditEntry {
	entry := model.AuditEntry{
		ID:         e.newID(),
		EntityType: model.EntityScore,
		EntityID:   next.ID,
		Action:     model.ActionScoreCalculated,
		PickID:     next.PickID,
		EventID:    next.EventID,
		PropType:   next.PropType,
		Payload: model.AuditPayload{
			Predicted:   next.Details.Predicted,
			Actual:      next.Details.Actual,
			RuleVersion: next.Details.RuleVersion,
			Warning:     next.Details.Warning,
			New:         next.Values(),
		},
		PerformedBy: ActorFrom(ctx),
		CreatedAt:   e.now(),
	}
	if prev != nil {
		old := prev.Values()
		entry.Action = model.ActionScoreOverridden
		entry.Payload.Old = &old
	}
	return entry
}

// Emit builds the entry and appends it to sink.
func (e *Emitter) Emit(ctx context.Context, sink Appender, prev *model.Score, next model.Score) (model.AuditEntry, error) {
	entry := e.Entry(ctx, prev, next)
	if err := sink.AppendAudit(ctx, entry); err != nil {
		return model.AuditEntry{}, fmt.Errorf("append audit for pick %s: %w", next.PickID, err)
	}
	return entry, nil
}
