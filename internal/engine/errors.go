package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/domain/scoring"
)

// Sentinel kinds for engine errors.
var (
	// ErrResultNotFound is returned when a pair has no result to score against.
	ErrResultNotFound = errors.New("result not found")
	// ErrMalformedResult is returned when the result value does not fit its rule.
	ErrMalformedResult = errors.New("malformed result")
	// ErrBatchInProgress is returned when a batch is already running in this process.
	ErrBatchInProgress = errors.New("scoring batch already in progress")
)

// PairFailure wraps an error that aborted one pair.
type PairFailure struct {
	Key model.PairKey
	Err error
}

func (f *PairFailure) Error() string {
	return fmt.Sprintf("score pair %s: %v", f.Key, f.Err)
}

func (f *PairFailure) Unwrap() error { return f.Err }

// failureKind buckets an error for metrics and logs.
func failureKind(err error) string {
	switch {
	case errors.Is(err, scoring.ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrResultNotFound):
		return "result_not_found"
	case errors.Is(err, ErrMalformedResult):
		return "malformed_result"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "store"
	}
}
