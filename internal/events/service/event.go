package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	eventserrors "eventbook/internal/events/errors"
	"eventbook/internal/events/repository"
	"eventbook/internal/events/validator"
	"eventbook/pkg/config"
	apperrors "eventbook/pkg/errors"
	"eventbook/pkg/model"
	"eventbook/pkg/notify"
	"eventbook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	defaultSlotStartTime = "00:00"
	defaultSlotEndTime   = "23:59"
)

// BookingStore is the slice of the bookings repository the event service
// needs for cascades and availability counts.
type BookingStore interface {
	CountBySlot(ctx context.Context, slotID string) (int64, error)
	DeleteBySlots(ctx context.Context, slotIDs []string) (int64, error)
	DeleteByEvent(ctx context.Context, eventID string) (int64, error)
	DistinctUsersByEvent(ctx context.Context, eventID string) ([]string, error)
}

// Notifier publishes event lifecycle notifications.
type Notifier interface {
	EventUpdated(ctx context.Context, payload notify.EventUpdatedPayload)
	EventDeleted(ctx context.Context, payload notify.EventDeletedPayload)
}

type EventService interface {
	Create(ctx context.Context, event *model.Event, slots []model.SlotInput) (*model.EventView, error)
	GetByID(ctx context.Context, id string) (*model.EventView, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.EventView, int64, error)
	Update(ctx context.Context, userID string, id string, updates *model.EventUpdate) (*model.EventView, error)
	Delete(ctx context.Context, userID string, id string) error
	ListSlots(ctx context.Context, eventID string) ([]*model.SlotAvailability, error)
}

type eventService struct {
	repo      repository.EventRepository
	slotRepo  repository.SlotRepository
	bookings  BookingStore
	notifier  Notifier
	validator *validator.EventValidator
	cfg       *config.Config
}

func NewEventService(
	repo repository.EventRepository,
	slotRepo repository.SlotRepository,
	bookings BookingStore,
	notifier Notifier,
	validator *validator.EventValidator,
	cfg *config.Config,
) EventService {
	return &eventService{
		repo:      repo,
		slotRepo:  slotRepo,
		bookings:  bookings,
		notifier:  notifier,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *eventService) Create(ctx context.Context, event *model.Event, slots []model.SlotInput) (*model.EventView, error) {
	s.sanitize(event)
	s.applyDefaults(event)

	if err := s.validate(event); err != nil {
		return nil, err
	}
	if err := s.validateSlots(slots); err != nil {
		return nil, err
	}

	assignCustomFieldIDs(event.CustomFields)

	var created []*model.Slot
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, event); err != nil {
			return apperrors.Internal("Failed to create event", err)
		}

		for _, input := range slots {
			slot := slotFromInput(event.ID, input)
			if err := s.slotRepo.Create(sessCtx, slot); err != nil {
				return apperrors.Internal("Failed to create time slot", err)
			}
			created = append(created, slot)
		}

		link := fmt.Sprintf("/api/v1/events/id/%s/register", event.ID)
		if err := s.repo.SetRegistrationLink(sessCtx, event.ID, link); err != nil {
			return apperrors.Internal("Failed to set registration link", err)
		}
		event.RegistrationLink = link

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create event", "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Event created successfully",
		"id", event.ID,
		"name", event.Name,
		"creator_id", event.CreatorID,
		"slots", len(created),
	)
	return buildView(event, created, time.Now()), nil
}

func (s *eventService) GetByID(ctx context.Context, id string) (*model.EventView, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Event ID cannot be empty")
	}

	event, err := s.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	slots, err := s.slotRepo.FindByEvent(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve time slots", err)
	}

	return buildView(event, slots, time.Now()), nil
}

func (s *eventService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.EventView, int64, error) {
	var count int64
	var events []*model.Event
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count events", "error", errCount)
			errCount = apperrors.Internal("Failed to count events", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		events, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list events", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve events", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}

	slotsByEvent, err := s.slotRepo.FindByEvents(ctx, ids)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to retrieve time slots", err)
	}

	now := time.Now()
	views := make([]*model.EventView, 0, len(events))
	for _, event := range events {
		views = append(views, buildView(event, slotsByEvent[event.ID], now))
	}

	return views, count, nil
}

func (s *eventService) Update(ctx context.Context, userID string, id string, updates *model.EventUpdate) (*model.EventView, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Event ID cannot be empty")
	}

	existing, err := s.findEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.CreatorID != userID {
		return nil, apperrors.Forbidden("Only the event creator can update this event")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Event update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeEventUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}
	assignCustomFieldIDs(merged.CustomFields)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Update(sessCtx, id, merged); err != nil {
			return apperrors.Internal("Failed to update event", err)
		}

		if updates.Slots != nil {
			if err := s.reconcileSlots(sessCtx, id, *updates.Slots); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update event", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Event updated successfully", "id", id)
	s.notifyUpdated(ctx, merged)

	return s.GetByID(ctx, id)
}

func (s *eventService) Delete(ctx context.Context, userID string, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Event ID cannot be empty")
	}

	event, err := s.findEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.CreatorID != userID {
		return apperrors.Forbidden("Only the event creator can delete this event")
	}

	userIDs, err := s.bookings.DistinctUsersByEvent(ctx, id)
	if err != nil {
		s.cfg.Log.Warn("Failed to resolve registered users before delete", "id", id, "error", err)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.bookings.DeleteByEvent(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to delete event bookings", err)
		}
		if _, err := s.slotRepo.DeleteByEvent(sessCtx, id); err != nil {
			return apperrors.Internal("Failed to delete event time slots", err)
		}
		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, eventserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Event", id)
			}
			return apperrors.Internal("Failed to delete event", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete event", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Event deleted successfully", "id", id, "name", event.Name)
	s.notifier.EventDeleted(ctx, notify.EventDeletedPayload{
		EventID:   id,
		EventName: event.Name,
		UserIDs:   userIDs,
		DeletedAt: time.Now().UTC(),
	})

	return nil
}

func (s *eventService) ListSlots(ctx context.Context, eventID string) ([]*model.SlotAvailability, error) {
	if eventID == "" {
		return nil, apperrors.InvalidInput("Event ID cannot be empty")
	}

	if _, err := s.findEvent(ctx, eventID); err != nil {
		return nil, err
	}

	slots, err := s.slotRepo.FindByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve time slots", err)
	}

	availability := make([]*model.SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		booked, err := s.bookings.CountBySlot(ctx, slot.ID)
		if err != nil {
			return nil, apperrors.Internal("Failed to count bookings", err)
		}
		availability = append(availability, &model.SlotAvailability{
			Slot:           slot,
			RemainingSeats: slot.SeatsLeft,
			BookingsCount:  booked,
		})
	}

	return availability, nil
}

// --- Helpers ---

func (s *eventService) findEvent(ctx context.Context, id string) (*model.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
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

func (s *eventService) sanitize(e *model.Event) {
	e.Name = sanitizer.NormalizeName(e.Name)
	e.Description = sanitizer.TrimAndNormalize(e.Description)
	e.City = sanitizer.TrimAndNormalize(e.City)
	e.Address = sanitizer.TrimAndNormalize(e.Address)
	e.Format = sanitizer.TrimAndNormalize(e.Format)
	for i := range e.CustomFields {
		e.CustomFields[i].Title = sanitizer.NormalizeFieldTitle(e.CustomFields[i].Title)
	}
}

func (s *eventService) applyDefaults(e *model.Event) {
	if e.Status == "" {
		e.Status = model.StatusOpen
	}
}

func (s *eventService) validate(event *model.Event) error {
	if err := s.validator.Validate(event); err != nil {
		s.cfg.Log.Warn("Event validation failed", "error", err)
		return apperrors.Validation("Event validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *eventService) validateSlots(slots []model.SlotInput) error {
	if err := s.validator.ValidateSlots(slots); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "error", err)
		return apperrors.Validation("Time slot validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *eventService) mergeEventUpdates(existing *model.Event, updates *model.EventUpdate) *model.Event {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != "" {
		merged.Description = updates.Description
	}
	if updates.VisitCost != nil {
		merged.VisitCost = *updates.VisitCost
	}
	if updates.City != "" {
		merged.City = updates.City
	}
	if updates.Address != "" {
		merged.Address = updates.Address
	}
	if updates.Status != "" {
		merged.Status = updates.Status
	}
	if updates.Format != "" {
		merged.Format = updates.Format
	}
	if updates.Photo != "" {
		merged.Photo = updates.Photo
	}
	if updates.CustomFields != nil {
		merged.CustomFields = *updates.CustomFields
	}

	return &merged
}

// reconcileSlots applies a full replacement slot list: entries with an id
// patch the stored slot field-by-field (omitted fields keep their stored
// values), entries without an id create a new one, and stored slots absent
// from the list are removed along with their bookings.
func (s *eventService) reconcileSlots(ctx context.Context, eventID string, inputs []model.SlotInput) error {
	existing, err := s.slotRepo.FindByEvent(ctx, eventID)
	if err != nil {
		return apperrors.Internal("Failed to retrieve time slots", err)
	}

	byID := make(map[string]*model.Slot, len(existing))
	for _, slot := range existing {
		byID[slot.ID] = slot
	}

	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		if input.ID == "" {
			slot := slotFromInput(eventID, input)
			if err := s.slotRepo.Create(ctx, slot); err != nil {
				return apperrors.Internal("Failed to create time slot", err)
			}
			continue
		}

		current, ok := byID[input.ID]
		if !ok {
			return apperrors.NotFoundWithID("Time slot", input.ID)
		}
		seen[input.ID] = true

		patched := patchSlot(current, input)
		if err := s.slotRepo.UpdateWindow(ctx, input.ID, patched); err != nil {
			return apperrors.Internal("Failed to update time slot", err)
		}

		switch {
		case input.Unlimited:
			if current.SeatsTotal != nil {
				if err := s.resetCapacity(ctx, input.ID, nil); err != nil {
					return err
				}
			}
		case input.SeatsNumber != nil && capacityChanged(current.SeatsTotal, input.SeatsNumber):
			if err := s.resetCapacity(ctx, input.ID, input.SeatsNumber); err != nil {
				return err
			}
		}
	}

	var removed []string
	for _, slot := range existing {
		if !seen[slot.ID] {
			removed = append(removed, slot.ID)
		}
	}

	for _, slotID := range removed {
		if err := s.slotRepo.Delete(ctx, slotID); err != nil {
			return apperrors.Internal("Failed to delete time slot", err)
		}
	}
	if len(removed) > 0 {
		if _, err := s.bookings.DeleteBySlots(ctx, removed); err != nil {
			return apperrors.Internal("Failed to delete slot bookings", err)
		}
	}

	return nil
}

// resetCapacity recomputes seats_left for a new total so already-booked
// seats stay claimed. A nil total makes the slot unlimited.
func (s *eventService) resetCapacity(ctx context.Context, slotID string, seatsTotal *int) error {
	if seatsTotal == nil {
		if err := s.slotRepo.SetCapacity(ctx, slotID, nil, nil); err != nil {
			return apperrors.Internal("Failed to reset slot capacity", err)
		}
		return nil
	}

	booked, err := s.bookings.CountBySlot(ctx, slotID)
	if err != nil {
		return apperrors.Internal("Failed to count bookings", err)
	}

	left := *seatsTotal - int(booked)
	if left < 0 {
		left = 0
	}
	if err := s.slotRepo.SetCapacity(ctx, slotID, seatsTotal, &left); err != nil {
		return apperrors.Internal("Failed to reset slot capacity", err)
	}
	return nil
}

func (s *eventService) notifyUpdated(ctx context.Context, event *model.Event) {
	userIDs, err := s.bookings.DistinctUsersByEvent(ctx, event.ID)
	if err != nil {
		s.cfg.Log.Warn("Failed to resolve registered users for notification", "id", event.ID, "error", err)
	}
	s.notifier.EventUpdated(ctx, notify.EventUpdatedPayload{
		EventID:   event.ID,
		EventName: event.Name,
		UserIDs:   userIDs,
		UpdatedAt: time.Now().UTC(),
	})
}

func capacityChanged(current, updated *int) bool {
	if current == nil && updated == nil {
		return false
	}
	if current == nil || updated == nil {
		return true
	}
	return *current != *updated
}

func slotFromInput(eventID string, input model.SlotInput) *model.Slot {
	startTime := input.StartTime
	if startTime == "" {
		startTime = defaultSlotStartTime
	}
	endTime := input.EndTime
	if endTime == "" {
		endTime = defaultSlotEndTime
	}

	slot := &model.Slot{
		EventID:     eventID,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		StartTime:   startTime,
		EndTime:     endTime,
		Description: input.Description,
	}
	if input.SeatsNumber != nil {
		total := *input.SeatsNumber
		left := total
		slot.SeatsTotal = &total
		slot.SeatsLeft = &left
	}
	return slot
}

// patchSlot overlays the provided fields of an update entry onto the
// stored slot. Zero dates, empty times and an empty description keep
// their stored values; seat counters are never touched here.
func patchSlot(current *model.Slot, input model.SlotInput) *model.Slot {
	patched := *current
	if !input.StartDate.IsZero() {
		patched.StartDate = input.StartDate
	}
	if !input.EndDate.IsZero() {
		patched.EndDate = input.EndDate
	}
	if input.StartTime != "" {
		patched.StartTime = input.StartTime
	}
	if input.EndTime != "" {
		patched.EndTime = input.EndTime
	}
	if input.Description != "" {
		patched.Description = input.Description
	}
	return &patched
}

func assignCustomFieldIDs(fields []model.CustomField) {
	for i := range fields {
		if fields[i].ID == "" {
			fields[i].ID = primitive.NewObjectID().Hex()
		}
	}
}

// deriveState computes the lifecycle state from the earliest start and
// latest end across all slots. An event with no slots is upcoming.
func deriveState(slots []*model.Slot, now time.Time) string {
	if len(slots) == 0 {
		return model.StateUpcoming
	}

	start := slots[0].StartTimestamp()
	end := slots[0].EndTimestamp()
	for _, slot := range slots[1:] {
		if s := slot.StartTimestamp(); s.Before(start) {
			start = s
		}
		if e := slot.EndTimestamp(); e.After(end) {
			end = e
		}
	}

	switch {
	case now.Before(start):
		return model.StateUpcoming
	case now.After(end):
		return model.StateFinished
	default:
		return model.StateOngoing
	}
}

func buildView(event *model.Event, slots []*model.Slot, now time.Time) *model.EventView {
	if slots == nil {
		slots = []*model.Slot{}
	}
	return &model.EventView{
		Event: *event,
		Slots: slots,
		State: deriveState(slots, now),
	}
}
