package entity

import "errors"

var (
	ErrNotFound           = errors.New("job not found")
	ErrAlreadyExists      = errors.New("job already exists")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrProgressRegression = errors.New("progress must not decrease")
	ErrIncompleteResult   = errors.New("completed job is missing result fields")
	ErrStatusConflict     = errors.New("job is not in the expected status")
)
