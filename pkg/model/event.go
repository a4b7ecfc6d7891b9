package model

import (
	"time"
)

// Event statuses set by the organizer.
const (
	StatusOpen  = "open"
	StatusClose = "close"
)

// Derived lifecycle states computed from the slot windows, never persisted.
const (
	StateUpcoming = "upcoming"
	StateOngoing  = "ongoing"
	StateFinished = "finished"
)

// CustomField is an organizer-defined registration question embedded in the
// event document. Answers are matched to definitions by exact title equality.
type CustomField struct {
	ID    string `json:"id,omitempty" bson:"id" validate:"omitempty,mongodb"`
	Title string `json:"title" bson:"title" validate:"required,min=1,max=200"`
}

type Event struct {
	ID               string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name             string        `json:"name" bson:"name" validate:"required,min=2,max=200"`
	Description      string        `json:"description" bson:"description" validate:"required,max=5000"`
	VisitCost        float64       `json:"visit_cost" bson:"visit_cost" validate:"min=0"`
	City             string        `json:"city,omitempty" bson:"city,omitempty" validate:"omitempty,max=100"`
	Address          string        `json:"address,omitempty" bson:"address,omitempty" validate:"omitempty,max=300"`
	Status           string        `json:"status" bson:"status" validate:"required,oneof=open close"`
	Format           string        `json:"format" bson:"format" validate:"required,min=2,max=100"`
	Photo            string        `json:"photo,omitempty" bson:"photo,omitempty"`
	CreatorID        string        `json:"creator_id" bson:"creator_id" validate:"required"`
	RegistrationLink string        `json:"registration_link,omitempty" bson:"registration_link,omitempty"`
	CustomFields     []CustomField `json:"custom_fields" bson:"custom_fields" validate:"omitempty,max=50,dive"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// EventUpdate carries a partial event update. Nil / zero fields leave the
// stored value untouched. Slots and CustomFields, when present, are full
// replacement lists reconciled against the stored rows by id.
type EventUpdate struct {
	Name         string         `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description  string         `json:"description,omitempty" validate:"omitempty,max=5000"`
	VisitCost    *float64       `json:"visit_cost,omitempty" validate:"omitempty,min=0"`
	City         string         `json:"city,omitempty" validate:"omitempty,max=100"`
	Address      string         `json:"address,omitempty" validate:"omitempty,max=300"`
	Status       string         `json:"status,omitempty" validate:"omitempty,oneof=open close"`
	Format       string         `json:"format,omitempty" validate:"omitempty,min=2,max=100"`
	Photo        string         `json:"photo,omitempty"`
	CustomFields *[]CustomField `json:"custom_fields,omitempty" validate:"omitempty,max=50,dive"`
	Slots        *[]SlotInput   `json:"slots,omitempty" validate:"omitempty,max=100,dive"`
}

// EventView is an Event decorated with its slots and the derived state.
type EventView struct {
	Event
	Slots []*Slot `json:"slots"`
	State string  `json:"state"`
}
