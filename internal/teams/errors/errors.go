package errors

import "errors"

var (
	ErrNotFound = errors.New("team not found")

	ErrInvalidID = errors.New("invalid team ID format")

	ErrInviteNotFound = errors.New("invite not found")

	ErrDuplicateName = errors.New("team name is already taken")

	ErrDuplicateMember = errors.New("user is already a team member")
)
