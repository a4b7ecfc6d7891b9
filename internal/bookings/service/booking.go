package service

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingserrors "eventbook/internal/bookings/errors"
	"eventbook/internal/bookings/repository"
	"eventbook/internal/bookings/validator"
	eventserrors "eventbook/internal/events/errors"
	"eventbook/pkg/config"
	apperrors "eventbook/pkg/errors"
	"eventbook/pkg/model"
	"eventbook/pkg/notify"
	"eventbook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// EventStore is the slice of the events repository the booking service
// needs to resolve registration targets.
type EventStore interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
}

// SlotStore exposes the seat allocator. AcquireSeat must be atomic: it
// either claims a seat or reports that none are left.
type SlotStore interface {
	FindByIDAndEvent(ctx context.Context, id string, eventID string) (*model.Slot, error)
	FindByEvent(ctx context.Context, eventID string) ([]*model.Slot, error)
	AcquireSeat(ctx context.Context, id string) error
	ReleaseSeat(ctx context.Context, id string) error
}

// Notifier publishes booking lifecycle notifications.
type Notifier interface {
	BookingConfirmed(ctx context.Context, payload notify.BookingConfirmedPayload)
}

type BookingService interface {
	Register(ctx context.Context, userID string, req *model.RegistrationRequest) (*model.Booking, error)
	GetByID(ctx context.Context, userID string, id string) (*model.Booking, error)
	ListByEvent(ctx context.Context, eventID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, userID string, id string) error
	IsMember(ctx context.Context, userID string, eventID string) (bool, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	events    EventStore
	slots     SlotStore
	notifier  Notifier
	validator *validator.BookingValidator
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	events EventStore,
	slots SlotStore,
	notifier Notifier,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		events:    events,
		slots:     slots,
		notifier:  notifier,
		validator: validator,
		cfg:       cfg,
	}
}

// Register books one seat on a slot for the user. The seat decrement and
// the booking insert commit in one transaction; the unique (user, slot)
// index backstops the duplicate pre-check under concurrency.
func (s *bookingService) Register(ctx context.Context, userID string, req *model.RegistrationRequest) (*model.Booking, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("missing user identity")
	}
	if err := s.validator.ValidateRegistration(req); err != nil {
		s.cfg.Log.Warn("Registration validation failed", "error", err)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{"error": err.Error()})
	}

	event, err := s.findEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status == model.StatusClose {
		return nil, apperrors.Conflict("Event is closed for registration")
	}

	slot, err := s.findSlot(ctx, req.SlotID, req.EventID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByUserAndSlot(ctx, userID, req.SlotID); err == nil {
		return nil, apperrors.AlreadyRegistered(req.SlotID)
	} else if !errors.Is(err, bookingserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to check existing booking", err)
	}

	booking := &model.Booking{
		UserID:  userID,
		EventID: req.EventID,
		SlotID:  req.SlotID,
		Answers: reconcileAnswers(event.CustomFields, req.Answers),
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.slots.AcquireSeat(sessCtx, slot.ID); err != nil {
			if errors.Is(err, eventserrors.ErrNoSeats) {
				s.logSeatExhaustion(sessCtx, slot)
				return apperrors.NoSeats(slot.ID)
			}
			if errors.Is(err, eventserrors.ErrSlotNotFound) {
				return apperrors.NotFoundWithID("Time slot", slot.ID)
			}
			return apperrors.Internal("Failed to acquire seat", err)
		}

		if req.ExpirationDays != nil {
			expiresAt, err := s.computeExpiration(sessCtx, req.EventID, *req.ExpirationDays)
			if err != nil {
				return err
			}
			booking.ExpiresAt = expiresAt
		}

		if err := s.repo.Create(sessCtx, booking); err != nil {
			if errors.Is(err, bookingserrors.ErrDuplicate) {
				return apperrors.AlreadyRegistered(req.SlotID)
			}
			return apperrors.Internal("Failed to create booking", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to register booking",
			"user_id", userID,
			"event_id", req.EventID,
			"slot_id", req.SlotID,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Booking registered successfully",
		"id", booking.ID,
		"user_id", userID,
		"event_id", req.EventID,
		"slot_id", req.SlotID,
	)

	s.notifier.BookingConfirmed(ctx, notify.BookingConfirmedPayload{
		BookingID: booking.ID,
		EventID:   event.ID,
		EventName: event.Name,
		SlotID:    slot.ID,
		UserID:    userID,
		ExpiresAt: booking.ExpiresAt,
	})

	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, userID string, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, apperrors.Forbidden("Booking belongs to another user")
	}

	return booking, nil
}

func (s *bookingService) ListByEvent(ctx context.Context, eventID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if eventID == "" {
		return nil, 0, apperrors.InvalidInput("Event ID cannot be empty")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByEvent(ctx, eventID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "event_id", eventID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByEvent(ctx, eventID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "event_id", eventID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.Unauthorized("missing user identity")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, userID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "user_id", userID, "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindByUser(ctx, userID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// Cancel removes the user's booking and returns the seat in the same
// transaction, so a crash between the two cannot leak capacity.
func (s *bookingService) Cancel(ctx context.Context, userID string, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		booking, err := s.findBooking(sessCtx, id)
		if err != nil {
			return err
		}
		if booking.UserID != userID {
			return apperrors.Forbidden("Booking belongs to another user")
		}

		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", id)
			}
			return apperrors.Internal("Failed to delete booking", err)
		}

		if err := s.slots.ReleaseSeat(sessCtx, booking.SlotID); err != nil {
			return apperrors.Internal("Failed to release seat", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "id", id, "user_id", userID, "error", err)
		return err
	}

	s.cfg.Log.Info("Booking cancelled successfully", "id", id, "user_id", userID)
	return nil
}

func (s *bookingService) IsMember(ctx context.Context, userID string, eventID string) (bool, error) {
	if userID == "" || eventID == "" {
		return false, apperrors.InvalidInput("User ID and event ID are required")
	}

	_, err := s.repo.FindByUserAndEvent(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Internal("Failed to check membership", err)
	}
	return true, nil
}

// --- Helpers ---

func (s *bookingService) findEvent(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, eventserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Event", id)
		}
		if errors.Is(err, eventserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid event ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve event", err)
	}
	return event, nil
}

func (s *bookingService) findSlot(ctx context.Context, slotID string, eventID string) (*model.Slot, error) {
	slot, err := s.slots.FindByIDAndEvent(ctx, slotID, eventID)
	if err != nil {
		if errors.Is(err, eventserrors.ErrSlotNotFound) {
			return nil, apperrors.NotFoundWithID("Time slot", slotID)
		}
		if errors.Is(err, eventserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve time slot", err)
	}
	return slot, nil
}

func (s *bookingService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

// logSeatExhaustion checks a sold-out response against the booking ledger.
// A counter at zero while the ledger holds fewer bookings than seats_total
// means the counter has drifted and needs operator attention.
func (s *bookingService) logSeatExhaustion(ctx context.Context, slot *model.Slot) {
	booked, err := s.repo.CountBySlot(ctx, slot.ID)
	if err != nil {
		return
	}
	if slot.SeatsTotal != nil && booked < int64(*slot.SeatsTotal) {
		s.cfg.Log.Warn("Seat counter exhausted below booked capacity",
			"slot_id", slot.ID,
			"seats_total", *slot.SeatsTotal,
			"bookings", booked,
		)
		return
	}
	s.cfg.Log.Debug("Slot sold out", "slot_id", slot.ID, "bookings", booked)
}

// computeExpiration anchors the expiry at the event's overall end: the
// latest end timestamp across all slots, plus the requested days.
func (s *bookingService) computeExpiration(ctx context.Context, eventID string, days int) (*time.Time, error) {
	slots, err := s.slots.FindByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve time slots", err)
	}
	if len(slots) == 0 {
		return nil, apperrors.Conflict("Event has no time slots to anchor an expiration")
	}

	end := slots[0].EndTimestamp()
	for _, slot := range slots[1:] {
		if e := slot.EndTimestamp(); e.After(end) {
			end = e
		}
	}

	expiresAt := end.AddDate(0, 0, days)
	return &expiresAt, nil
}

// reconcileAnswers matches submitted answers to the event's custom field
// definitions by exact, case-sensitive title equality. Answers for titles
// the event does not define are dropped.
func reconcileAnswers(fields []model.CustomField, inputs []model.AnswerInput) []model.Answer {
	if len(inputs) == 0 {
		return nil
	}

	byTitle := make(map[string]model.CustomField, len(fields))
	for _, field := range fields {
		byTitle[field.Title] = field
	}

	var answers []model.Answer
	for _, input := range inputs {
		title := sanitizer.NormalizeFieldTitle(input.Title)
		field, ok := byTitle[title]
		if !ok {
			continue
		}
		answers = append(answers, model.Answer{
			FieldID: field.ID,
			Title:   field.Title,
			Value:   sanitizer.TrimAndNormalize(input.Value),
		})
	}

	return answers
}
