package model

import (
	"time"
)

type Team struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name             string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description      string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	Photo            string    `json:"photo,omitempty" bson:"photo,omitempty"`
	CreatorID        string    `json:"creator_id" bson:"creator_id" validate:"required"`
	RegistrationLink string    `json:"registration_link,omitempty" bson:"registration_link,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// TeamMember links a user to a team. A member created by an email invite
// starts with an empty UserID and a unique InviteToken; joining through the
// token claims the row (sets UserID, clears the token).
type TeamMember struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty"`
	TeamID      string    `json:"team_id" bson:"team_id" validate:"required,mongodb"`
	UserID      string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	IsAdmin     bool      `json:"is_admin" bson:"is_admin"`
	InviteToken string    `json:"-" bson:"invite_token,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// TeamInviteRequest asks for an email invitation into a team.
type TeamInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}
