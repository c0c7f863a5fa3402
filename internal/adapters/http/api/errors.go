package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/scoring"
	"github.com/okian/paddock/internal/engine"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("dependency unavailable")
)

// classify maps an error from the engine or the store to a status and a code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, engine.ErrResultNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, scoring.ErrConfiguration):
		return http.StatusUnprocessableEntity, "configuration_error"
	case errors.Is(err, engine.ErrMalformedResult):
		return http.StatusUnprocessableEntity, "malformed_result"
	case errors.Is(err, engine.ErrBatchInProgress):
		return http.StatusConflict, "batch_in_progress"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
