package domain

import "errors"

// Sentinel errors used across layers. Not-found is an expected outcome for
// reads, never logged as an error; the repository maps raw storage failures
// to ErrStorageUnavailable or ErrUnknown at its boundary.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUnknown            = errors.New("unknown storage error")
)
