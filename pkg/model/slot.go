package model

import (
	"fmt"
	"time"
)

// Slot is a bookable date/time window of an event.
//
// SeatsLeft is the remaining capacity counter mutated by the seat allocator;
// nil means unlimited capacity. SeatsTotal records the originally configured
// capacity so that cancellation/expiration increments can be capped at it.
// Both are nil together or set together.
type Slot struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EventID     string    `json:"event_id" bson:"event_id" validate:"required,mongodb"`
	StartDate   time.Time `json:"start_date" bson:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" bson:"end_date" validate:"required"`
	StartTime   string    `json:"start_time" bson:"start_time" validate:"required,clock"`
	EndTime     string    `json:"end_time" bson:"end_time" validate:"required,clock"`
	SeatsLeft   *int      `json:"seats_left,omitempty" bson:"seats_left,omitempty" validate:"omitempty,min=0"`
	SeatsTotal  *int      `json:"seats_total,omitempty" bson:"seats_total,omitempty" validate:"omitempty,min=0"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// SlotInput is the organizer-facing shape used on event create/update.
// An empty ID means a new slot. On create a nil SeatsNumber means
// unlimited capacity. On update a nil SeatsNumber leaves the stored
// capacity unchanged; Unlimited removes an existing seat cap.
type SlotInput struct {
	ID          string    `json:"id,omitempty" validate:"omitempty,mongodb"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	StartTime   string    `json:"start_time,omitempty" validate:"omitempty,clock"`
	EndTime     string    `json:"end_time,omitempty" validate:"omitempty,clock"`
	SeatsNumber *int      `json:"seats_number,omitempty" validate:"omitempty,min=0"`
	Unlimited   bool      `json:"unlimited,omitempty"`
	Description string    `json:"description,omitempty" validate:"omitempty,max=1000"`
}

// Unlimited reports whether the slot has no seat cap.
func (s *Slot) Unlimited() bool {
	return s.SeatsTotal == nil
}

// StartTimestamp combines StartDate and StartTime into one instant.
func (s *Slot) StartTimestamp() time.Time {
	return combine(s.StartDate, s.StartTime)
}

// EndTimestamp combines EndDate and EndTime into one instant.
func (s *Slot) EndTimestamp() time.Time {
	return combine(s.EndDate, s.EndTime)
}

func combine(day time.Time, clock string) time.Time {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

// SlotAvailability is the read model returned to clients listing an
// event's slots. RemainingSeats is nil for unlimited slots.
type SlotAvailability struct {
	Slot           *Slot `json:"slot"`
	RemainingSeats *int  `json:"remaining_seats"`
	BookingsCount  int64 `json:"bookings_count"`
}
