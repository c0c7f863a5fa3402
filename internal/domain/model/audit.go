package model

import (
	"database/sql/driver"
	"time"
)

// AuditAction names what happened to an entity.
type AuditAction string

// Audit actions written by the scoring engine.
const (
	ActionScoreCalculated AuditAction = "score_calculated"
	ActionScoreOverridden AuditAction = "score_overridden"
)

// EntityType names the kind of entity an audit entry refers to.
type EntityType string

// EntityScore is the only entity type the engine writes.
const EntityScore EntityType = "score"

// AuditEntry is an immutable record of one scoring action.
type AuditEntry struct {
	ID          string       `json:"id" db:"id"`
	EntityType  EntityType   `json:"entity_type" db:"entity_type"`
	EntityID    string       `json:"entity_id" db:"entity_id"`
	Action      AuditAction  `json:"action" db:"action"`
	PickID      string       `json:"pick_id" db:"pick_id"`
	EventID     string       `json:"event_id" db:"event_id"`
	PropType    PropType     `json:"prop_type" db:"prop_type"`
	Payload     AuditPayload `json:"payload" db:"payload"`
	PerformedBy string       `json:"performed_by" db:"performed_by"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// AuditPayload carries the inputs and outputs of a scoring action.
// Old is set only when an existing score was overwritten.
type AuditPayload struct {
	Predicted   string       `json:"predicted"`
	Actual      string       `json:"actual"`
	RuleVersion string       `json:"rule_version"`
	Warning     string       `json:"warning,omitempty"`
	New         ScoreValues  `json:"new"`
	Old         *ScoreValues `json:"old,omitempty"`
}

// Value implements driver.Valuer.
func (p AuditPayload) Value() (driver.Value, error) {
	return jsonText(p)
}

// Scan implements sql.Scanner.
func (p *AuditPayload) Scan(src any) error {
	return scanJSON(src, p)
}
