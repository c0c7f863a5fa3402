package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Pick is a user's prediction for one (event, prop_type) pair.
// The scoring engine reads picks and never mutates them.
type Pick struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	EventID   string         `json:"event_id" db:"event_id"`
	PropType  PropType       `json:"prop_type" db:"prop_type"`
	PropValue string         `json:"prop_value" db:"prop_value"`
	Metadata  types.JSONText `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Key returns the pair the pick belongs to.
func (p Pick) Key() PairKey { return PairKey{EventID: p.EventID, PropType: p.PropType} }
