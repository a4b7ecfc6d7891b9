package notify

import (
	"context"
	"time"

	"eventbook/pkg/kafka"
	"eventbook/pkg/logger"
)

// Notification types published to the notifications topic.
const (
	TypeEventUpdated     = "event.updated"
	TypeEventDeleted     = "event.deleted"
	TypeBookingConfirmed = "booking.confirmed"
	TypeTeamInvited      = "team.invited"
)

const schemaVersion = "1"

// Publisher is the producer-side contract the notifier depends on.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Notifier publishes domain notifications for downstream consumers
// (mailers, web push, audit). Publishing is best effort: failures are
// logged and never propagated to the caller, so a broker outage cannot
// fail a booking that already committed.
type Notifier struct {
	publisher Publisher
	log       *logger.Logger
	source    string
}

func NewNotifier(publisher Publisher, log *logger.Logger, source string) *Notifier {
	return &Notifier{
		publisher: publisher,
		log:       log,
		source:    source,
	}
}

type EventUpdatedPayload struct {
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	UserIDs   []string  `json:"user_ids,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EventDeletedPayload struct {
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	UserIDs   []string  `json:"user_ids,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}

type BookingConfirmedPayload struct {
	BookingID string     `json:"booking_id"`
	EventID   string     `json:"event_id"`
	EventName string     `json:"event_name"`
	SlotID    string     `json:"slot_id"`
	UserID    string     `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type TeamInvitedPayload struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Email    string `json:"email"`
	JoinURL  string `json:"join_url"`
}

// EventUpdated notifies all registered users that an event changed.
func (n *Notifier) EventUpdated(ctx context.Context, payload EventUpdatedPayload) {
	n.publish(ctx, TypeEventUpdated, payload.EventID, payload)
}

// EventDeleted notifies all registered users that an event was cancelled.
func (n *Notifier) EventDeleted(ctx context.Context, payload EventDeletedPayload) {
	n.publish(ctx, TypeEventDeleted, payload.EventID, payload)
}

// BookingConfirmed notifies a user that their seat is reserved.
func (n *Notifier) BookingConfirmed(ctx context.Context, payload BookingConfirmedPayload) {
	n.publish(ctx, TypeBookingConfirmed, payload.BookingID, payload)
}

// TeamInvited notifies an invitee with their personal join link.
func (n *Notifier) TeamInvited(ctx context.Context, payload TeamInvitedPayload) {
	n.publish(ctx, TypeTeamInvited, payload.TeamID, payload)
}

func (n *Notifier) publish(ctx context.Context, notificationType, key string, payload any) {
	msg := kafka.NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(notificationType).
		WithSchemaVersion(schemaVersion).
		WithSource(n.source).
		Build()

	if err := n.publisher.Publish(ctx, msg); err != nil {
		n.log.Error("Failed to publish notification",
			"type", notificationType,
			"key", key,
			"error", err,
		)
		return
	}

	n.log.Debug("Notification published",
		"type", notificationType,
		"key", key,
	)
}
