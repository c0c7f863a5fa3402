package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Score is the engine's output for one pick. It is fully derived from
// (Pick, Result, rule) and is overwritten in place on re-scoring.
type Score struct {
	ID         string              `json:"id" db:"id"`
	PickID     string              `json:"pick_id" db:"pick_id"`
	UserID     string              `json:"user_id" db:"user_id"`
	EventID    string              `json:"event_id" db:"event_id"`
	PropType   PropType            `json:"prop_type" db:"prop_type"`
	Points     int                 `json:"points" db:"points"`
	Margin     decimal.NullDecimal `json:"margin" db:"margin"`
	ExactMatch bool                `json:"exact_match" db:"exact_match"`
	Details    ScoreDetails        `json:"metadata" db:"metadata"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" db:"updated_at"`
}

// ScoreDetails is the computation metadata stored alongside a score.
type ScoreDetails struct {
	Strategy            string `json:"strategy"`
	Predicted           string `json:"predicted"`
	Actual              string `json:"actual"`
	NormalizedPredicted string `json:"normalized_predicted,omitempty"`
	NormalizedActual    string `json:"normalized_actual,omitempty"`
	MarginUnit          string `json:"margin_unit,omitempty"`
	Decay               string `json:"decay,omitempty"`
	Fraction            string `json:"fraction,omitempty"`
	RuleVersion         string `json:"rule_version"`
	Warning             string `json:"warning,omitempty"`
}

// Value implements driver.Valuer. JSON is passed as text so both pgx and
// lib/pq bind it to a jsonb column.
func (d ScoreDetails) Value() (driver.Value, error) {
	return jsonText(d)
}

// Scan implements sql.Scanner.
func (d *ScoreDetails) Scan(src any) error {
	return scanJSON(src, d)
}

// Values returns the computed part of the score.
func (s Score) Values() ScoreValues {
	return ScoreValues{Points: s.Points, Margin: s.Margin, ExactMatch: s.ExactMatch}
}

// SameOutcome reports whether two scores carry identical computed fields.
// Identity and timestamps are ignored.
func (s Score) SameOutcome(o Score) bool {
	return s.PickID == o.PickID &&
		s.UserID == o.UserID &&
		s.EventID == o.EventID &&
		s.PropType == o.PropType &&
		s.Values().Equal(o.Values()) &&
		s.Details == o.Details
}

// ScoreValues is the (points, margin, exact_match) triple.
type ScoreValues struct {
	Points     int                 `json:"points"`
	Margin     decimal.NullDecimal `json:"margin"`
	ExactMatch bool                `json:"exact_match"`
}

// Equal compares two triples. Margins compare by value and validity.
func (v ScoreValues) Equal(o ScoreValues) bool {
	if v.Points != o.Points || v.ExactMatch != o.ExactMatch || v.Margin.Valid != o.Margin.Valid {
		return false
	}
	return !v.Margin.Valid || v.Margin.Decimal.Equal(o.Margin.Decimal)
}

var errUnsupportedScan = errors.New("model: unsupported scan source")

func jsonText(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errUnsupportedScan
	}
}
