package model

import "time"

// PairKey identifies one (event, prop_type) pair, the unit of scoring.
type PairKey struct {
	EventID  string   `json:"event_id" db:"event_id"`
	PropType PropType `json:"prop_type" db:"prop_type"`
}

func (k PairKey) String() string { return k.EventID + "/" + string(k.PropType) }

// Checkpoint records the last successful scoring pass over a pair.
type Checkpoint struct {
	EventID         string    `json:"event_id" db:"event_id"`
	PropType        PropType  `json:"prop_type" db:"prop_type"`
	ResultUpdatedAt time.Time `json:"result_updated_at" db:"result_updated_at"`
	RuleVersion     string    `json:"rule_version" db:"rule_version"`
	PicksScored     int       `json:"picks_scored" db:"picks_scored"`
	ScoredAt        time.Time `json:"scored_at" db:"scored_at"`
}

// Key returns the pair the checkpoint belongs to.
func (c Checkpoint) Key() PairKey { return PairKey{EventID: c.EventID, PropType: c.PropType} }

// PairState is what discovery knows about a pair with a result.
type PairState struct {
	Key             PairKey
	ResultUpdatedAt time.Time
	Checkpoint      *Checkpoint
	MissingScores   bool
}

// Pending reports whether the pair needs a scoring pass under ruleVersion.
// An empty ruleVersion means the prop type has no rule; such pairs stay
// pending so the failure keeps surfacing.
func (s PairState) Pending(ruleVersion string) bool {
	switch {
	case ruleVersion == "":
		return true
	case s.Checkpoint == nil:
		return true
	case s.MissingScores:
		return true
	case s.ResultUpdatedAt.After(s.Checkpoint.ResultUpdatedAt):
		return true
	default:
		return s.Checkpoint.RuleVersion != ruleVersion
	}
}
