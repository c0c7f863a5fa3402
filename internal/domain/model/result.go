package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ResultSource records where an official result came from.
type ResultSource string

// Known result sources.
const (
	SourceFastF1    ResultSource = "fastf1"
	SourceManual    ResultSource = "manual"
	SourceFIATiming ResultSource = "fia_timing"
)

// Result is the authoritative outcome for one (event, prop_type) pair.
// A re-ingested result keeps its key and bumps UpdatedAt.
type Result struct {
	EventID         string         `json:"event_id" db:"event_id"`
	PropType        PropType       `json:"prop_type" db:"prop_type"`
	ActualValue     string         `json:"actual_value" db:"actual_value"`
	Source          ResultSource   `json:"source" db:"source"`
	SourceReference string         `json:"source_reference,omitempty" db:"source_reference"`
	Metadata        types.JSONText `json:"metadata,omitempty" db:"metadata"`
	IngestedAt      time.Time      `json:"ingested_at" db:"ingested_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Key returns the pair the result settles.
func (r Result) Key() PairKey { return PairKey{EventID: r.EventID, PropType: r.PropType} }
