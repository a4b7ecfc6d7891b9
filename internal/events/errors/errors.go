package errors

import "errors"

var (
	ErrNotFound = errors.New("event not found")

	ErrInvalidID = errors.New("invalid event ID format")

	ErrSlotNotFound = errors.New("time slot not found")

	ErrNoSeats = errors.New("no seats available for time slot")
)
