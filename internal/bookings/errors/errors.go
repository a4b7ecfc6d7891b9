package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrDuplicate = errors.New("booking already exists for this user and time slot")
)
