package model

import (
	"time"
)

// Answer is a registrant's value for one of the event's custom fields,
// stored denormalized on the booking. Title is kept alongside FieldID so
// the booking remains readable after the field definition changes.
type Answer struct {
	FieldID string `json:"field_id" bson:"field_id"`
	Title   string `json:"title" bson:"title"`
	Value   string `json:"value" bson:"value"`
}

// Booking is one user's confirmed reservation for one slot. At most one
// booking may exist per (user, slot) pair; the store enforces this with a
// unique index in addition to the allocator's lookup.
type Booking struct {
	ID        string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string     `json:"user_id" bson:"user_id" validate:"required"`
	EventID   string     `json:"event_id" bson:"event_id" validate:"required,mongodb"`
	SlotID    string     `json:"slot_id" bson:"slot_id" validate:"required,mongodb"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	Answers   []Answer   `json:"answers,omitempty" bson:"answers,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// AnswerInput is a free-form title+value pair submitted by a registrant.
// It is reconciled against the event's custom field definitions by exact,
// case-sensitive title equality; unmatched answers are dropped.
type AnswerInput struct {
	Title string `json:"title" validate:"required,max=200"`
	Value string `json:"value" validate:"required,max=2000"`
}

// RegistrationRequest is the payload for booking a seat on a slot.
// ExpirationDays, when set, makes the booking expire that many days after
// the event's overall end; when nil the booking never auto-expires.
type RegistrationRequest struct {
	EventID        string        `json:"event_id" validate:"required,mongodb"`
	SlotID         string        `json:"slot_id" validate:"required,mongodb"`
	Answers        []AnswerInput `json:"answers,omitempty" validate:"omitempty,max=50,dive"`
	ExpirationDays *int          `json:"expiration_days,omitempty" validate:"omitempty,min=1,max=365"`
}
