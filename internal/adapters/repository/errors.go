package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidLimit  = errors.New("invalid list limit")
	ErrDuplicatePick = errors.New("pick already exists for user, event and prop type")
	ErrClosed        = errors.New("store closed")
)
