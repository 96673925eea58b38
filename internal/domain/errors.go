package domain

import "errors"

// Sentinel errors returned by services and repositories. Handlers map these
// to HTTP statuses; everything else is treated as an internal failure.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)
