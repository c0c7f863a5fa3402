package scoring

import (
	"errors"
	"fmt"

	"github.com/okian/paddock/internal/domain/model"
)

// Sentinel kinds for scoring errors.
var (
	// ErrConfiguration marks a prop type the registry cannot score.
	ErrConfiguration = errors.New("scoring configuration error")
	// ErrDataQuality marks a value that could not be parsed for its prop type.
	ErrDataQuality = errors.New("data quality warning")
	// ErrInvalidRule marks a rule definition rejected at load time.
	ErrInvalidRule = errors.New("invalid scoring rule")
)

// ConfigurationError reports an unknown prop type.
type ConfigurationError struct {
	PropType model.PropType
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no scoring rule for prop type %q", e.PropType)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Side tells which value of a comparison was unusable.
type Side string

// Sides of a comparison.
const (
	SidePredicted Side = "predicted"
	SideActual    Side = "actual"
)

// DataQualityWarning reports a value that does not fit the prop type's value space.
// It is not fatal: the pick is scored zero.
type DataQualityWarning struct {
	PropType model.PropType
	Side     Side
	Value    string
	Reason   string
}

func (w *DataQualityWarning) Error() string {
	return fmt.Sprintf("%s value %q for %s: %s", w.Side, w.Value, w.PropType, w.Reason)
}

func (w *DataQualityWarning) Unwrap() error { return ErrDataQuality }

func invalidRule(pt model.PropType, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidRule, pt, fmt.Sprintf(format, args...))
}
