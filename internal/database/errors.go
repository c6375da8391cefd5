package database

import "errors"

var (
	// ErrNotReady is returned when the retry budget of the readiness gate is
	// exhausted without the backend becoming usable.
	ErrNotReady = errors.New("persistence backend is not ready")

	ErrNotFound   = errors.New("document does not exist")
	ErrTimeout    = errors.New("database operation timed out")
	ErrWrite      = errors.New("database rejected write")
	ErrValidation = errors.New("invalid message draft")
)
