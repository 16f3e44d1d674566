package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrValidation is returned when the caller supplies data the store refuses to persist.
	ErrValidation = errors.New("validation error")
)
