package service

import (
	"context"
	"io"
	"testing"
	"time"

	eventserrors "eventbook/internal/events/errors"
	"eventbook/internal/events/validator"
	"eventbook/pkg/config"
	mongotx "eventbook/pkg/db/mongo"
	apperrors "eventbook/pkg/errors"
	"eventbook/pkg/logger"
	"eventbook/pkg/model"
	"eventbook/pkg/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:  logger.ERROR,
			Format: logger.TEXT,
			Output: io.Discard,
		}),
	}
}

func intPtr(n int) *int { return &n }

// --- Fakes ---

type fakeEventRepo struct {
	events map[string]*model.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]*model.Event)}
}

func (f *fakeEventRepo) Create(_ context.Context, event *model.Event) error {
	event.ID = primitive.NewObjectID().Hex()
	event.CreatedAt = time.Now().UTC()
	stored := *event
	f.events[event.ID] = &stored
	return nil
}

func (f *fakeEventRepo) FindByID(_ context.Context, id string) (*model.Event, error) {
	if e, ok := f.events[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, eventserrors.ErrNotFound
}

func (f *fakeEventRepo) FindAll(_ context.Context, _ int, _ int64) ([]*model.Event, error) {
	var out []*model.Event
	for _, e := range f.events {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeEventRepo) Count(_ context.Context) (int64, error) {
	return int64(len(f.events)), nil
}

func (f *fakeEventRepo) Update(_ context.Context, id string, event *model.Event) error {
	if _, ok := f.events[id]; !ok {
		return eventserrors.ErrNotFound
	}
	stored := *event
	stored.ID = id
	f.events[id] = &stored
	return nil
}

func (f *fakeEventRepo) SetRegistrationLink(_ context.Context, id string, link string) error {
	e, ok := f.events[id]
	if !ok {
		return eventserrors.ErrNotFound
	}
	e.RegistrationLink = link
	return nil
}

func (f *fakeEventRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return eventserrors.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeEventRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type fakeSlotRepo struct {
	slots map[string]*model.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[string]*model.Slot)}
}

func (f *fakeSlotRepo) Create(_ context.Context, slot *model.Slot) error {
	slot.ID = primitive.NewObjectID().Hex()
	slot.CreatedAt = time.Now().UTC()
	stored := *slot
	f.slots[slot.ID] = &stored
	return nil
}

func (f *fakeSlotRepo) FindByID(_ context.Context, id string) (*model.Slot, error) {
	if s, ok := f.slots[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, eventserrors.ErrSlotNotFound
}

func (f *fakeSlotRepo) FindByIDAndEvent(_ context.Context, id string, eventID string) (*model.Slot, error) {
	if s, ok := f.slots[id]; ok && s.EventID == eventID {
		copied := *s
		return &copied, nil
	}
	return nil, eventserrors.ErrSlotNotFound
}

func (f *fakeSlotRepo) FindByEvent(_ context.Context, eventID string) ([]*model.Slot, error) {
	var out []*model.Slot
	for _, s := range f.slots {
		if s.EventID == eventID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSlotRepo) FindByEvents(_ context.Context, eventIDs []string) (map[string][]*model.Slot, error) {
	out := make(map[string][]*model.Slot)
	for _, s := range f.slots {
		for _, id := range eventIDs {
			if s.EventID == id {
				copied := *s
				out[id] = append(out[id], &copied)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSlotRepo) UpdateWindow(_ context.Context, id string, slot *model.Slot) error {
	current, ok := f.slots[id]
	if !ok {
		return eventserrors.ErrSlotNotFound
	}
	current.StartDate = slot.StartDate
	current.EndDate = slot.EndDate
	current.StartTime = slot.StartTime
	current.EndTime = slot.EndTime
	current.Description = slot.Description
	return nil
}

func (f *fakeSlotRepo) SetCapacity(_ context.Context, id string, seatsTotal, seatsLeft *int) error {
	current, ok := f.slots[id]
	if !ok {
		return eventserrors.ErrSlotNotFound
	}
	current.SeatsTotal = seatsTotal
	current.SeatsLeft = seatsLeft
	return nil
}

func (f *fakeSlotRepo) AcquireSeat(_ context.Context, id string) error {
	s, ok := f.slots[id]
	if !ok {
		return eventserrors.ErrSlotNotFound
	}
	if s.SeatsLeft == nil {
		return nil
	}
	if *s.SeatsLeft <= 0 {
		return eventserrors.ErrNoSeats
	}
	*s.SeatsLeft--
	return nil
}

func (f *fakeSlotRepo) ReleaseSeat(_ context.Context, id string) error {
	s, ok := f.slots[id]
	if !ok {
		return nil
	}
	if s.SeatsLeft != nil && s.SeatsTotal != nil && *s.SeatsLeft < *s.SeatsTotal {
		*s.SeatsLeft++
	}
	return nil
}

func (f *fakeSlotRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.slots[id]; !ok {
		return eventserrors.ErrSlotNotFound
	}
	delete(f.slots, id)
	return nil
}

func (f *fakeSlotRepo) DeleteByEvent(_ context.Context, eventID string) (int64, error) {
	var n int64
	for id, s := range f.slots {
		if s.EventID == eventID {
			delete(f.slots, id)
			n++
		}
	}
	return n, nil
}

type fakeBookingStore struct {
	countsBySlot map[string]int64
	usersByEvent map[string][]string

	deletedSlots  []string
	deletedEvents []string
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{
		countsBySlot: make(map[string]int64),
		usersByEvent: make(map[string][]string),
	}
}

func (f *fakeBookingStore) CountBySlot(_ context.Context, slotID string) (int64, error) {
	return f.countsBySlot[slotID], nil
}

func (f *fakeBookingStore) DeleteBySlots(_ context.Context, slotIDs []string) (int64, error) {
	f.deletedSlots = append(f.deletedSlots, slotIDs...)
	return int64(len(slotIDs)), nil
}

func (f *fakeBookingStore) DeleteByEvent(_ context.Context, eventID string) (int64, error) {
	f.deletedEvents = append(f.deletedEvents, eventID)
	return 0, nil
}

func (f *fakeBookingStore) DistinctUsersByEvent(_ context.Context, eventID string) ([]string, error) {
	return f.usersByEvent[eventID], nil
}

type fakeEventNotifier struct {
	updated []notify.EventUpdatedPayload
	deleted []notify.EventDeletedPayload
}

func (f *fakeEventNotifier) EventUpdated(_ context.Context, payload notify.EventUpdatedPayload) {
	f.updated = append(f.updated, payload)
}

func (f *fakeEventNotifier) EventDeleted(_ context.Context, payload notify.EventDeletedPayload) {
	f.deleted = append(f.deleted, payload)
}

// --- Fixtures ---

type fixture struct {
	repo     *fakeEventRepo
	slots    *fakeSlotRepo
	bookings *fakeBookingStore
	notifier *fakeEventNotifier
	service  EventService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig()
	f := &fixture{
		repo:     newFakeEventRepo(),
		slots:    newFakeSlotRepo(),
		bookings: newFakeBookingStore(),
		notifier: &fakeEventNotifier{},
	}
	f.service = NewEventService(
		f.repo,
		f.slots,
		f.bookings,
		f.notifier,
		validator.NewEventValidator(cfg.Log),
		cfg,
	)
	return f
}

func validEvent(creatorID string) *model.Event {
	return &model.Event{
		Name:        "Go Meetup",
		Description: "Monthly community meetup",
		Status:      model.StatusOpen,
		Format:      "offline",
		CreatorID:   creatorID,
	}
}

func slotInput(day time.Time, seats *int) model.SlotInput {
	return model.SlotInput{
		StartDate:   day,
		EndDate:     day,
		StartTime:   "10:00",
		EndTime:     "18:00",
		SeatsNumber: seats,
	}
}

// --- Tests ---

func TestCreateEventWithSlots(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(30)), slotInput(day.AddDate(0, 0, 1), nil)})
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "/api/v1/events/id/"+view.ID+"/register", view.RegistrationLink)
	require.Len(t, view.Slots, 2)

	limited := view.Slots[0]
	if limited.SeatsTotal == nil {
		limited = view.Slots[1]
	}
	require.NotNil(t, limited.SeatsTotal)
	assert.Equal(t, 30, *limited.SeatsTotal)
	assert.Equal(t, 30, *limited.SeatsLeft)
}

func TestCreateEventDefaultsStatusToOpen(t *testing.T) {
	f := newFixture(t)
	event := validEvent("creator-1")
	event.Status = ""

	view, err := f.service.Create(context.Background(), event, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, view.Status)
}

func TestCreateEventAssignsCustomFieldIDs(t *testing.T) {
	f := newFixture(t)
	event := validEvent("creator-1")
	event.CustomFields = []model.CustomField{
		{Title: "Company"},
		{Title: "Role"},
	}

	view, err := f.service.Create(context.Background(), event, nil)
	require.NoError(t, err)

	require.Len(t, view.CustomFields, 2)
	assert.NotEmpty(t, view.CustomFields[0].ID)
	assert.NotEmpty(t, view.CustomFields[1].ID)
	assert.NotEqual(t, view.CustomFields[0].ID, view.CustomFields[1].ID)
}

func TestCreateEventRejectsDuplicateFieldTitles(t *testing.T) {
	f := newFixture(t)
	event := validEvent("creator-1")
	event.CustomFields = []model.CustomField{
		{Title: "Company"},
		{Title: " Company  "},
	}

	_, err := f.service.Create(context.Background(), event, nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestUpdateRequiresCreator(t *testing.T) {
	f := newFixture(t)
	view, err := f.service.Create(context.Background(), validEvent("creator-1"), nil)
	require.NoError(t, err)

	_, err = f.service.Update(context.Background(), "intruder", view.ID, &model.EventUpdate{Name: "Hijacked"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t)
	event := validEvent("creator-1")
	event.City = "Berlin"
	view, err := f.service.Create(context.Background(), event, nil)
	require.NoError(t, err)

	updated, err := f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{
		Name: "Go Meetup XXL",
	})
	require.NoError(t, err)

	assert.Equal(t, "Go Meetup XXL", updated.Name)
	assert.Equal(t, "Berlin", updated.City)
	assert.Equal(t, "Monthly community meetup", updated.Description)
	assert.Len(t, f.notifier.updated, 1)
}

func TestUpdateReconcilesSlots(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(10)), slotInput(day.AddDate(0, 0, 1), intPtr(20))})
	require.NoError(t, err)
	require.Len(t, view.Slots, 2)

	kept := view.Slots[0]
	removed := view.Slots[1]

	newDay := day.AddDate(0, 0, 7)
	slots := []model.SlotInput{
		{
			ID:          kept.ID,
			StartDate:   newDay,
			EndDate:     newDay,
			StartTime:   "09:00",
			EndTime:     "17:00",
			SeatsNumber: kept.SeatsTotal,
		},
		slotInput(day.AddDate(0, 0, 2), nil),
	}

	updated, err := f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{Slots: &slots})
	require.NoError(t, err)

	require.Len(t, updated.Slots, 2)
	_, gone := f.slots.slots[removed.ID]
	assert.False(t, gone)
	assert.Contains(t, f.bookings.deletedSlots, removed.ID)

	patched := f.slots.slots[kept.ID]
	assert.Equal(t, "09:00", patched.StartTime)
	assert.Equal(t, newDay, patched.StartDate)
}

func TestUpdateCapacityKeepsBookedSeatsClaimed(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(10))})
	require.NoError(t, err)
	slotID := view.Slots[0].ID

	// Three seats already booked, then the organizer shrinks to five.
	f.bookings.countsBySlot[slotID] = 3
	slots := []model.SlotInput{{
		ID:          slotID,
		StartDate:   day,
		EndDate:     day,
		StartTime:   "10:00",
		EndTime:     "18:00",
		SeatsNumber: intPtr(5),
	}}

	_, err = f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{Slots: &slots})
	require.NoError(t, err)

	slot := f.slots.slots[slotID]
	require.NotNil(t, slot.SeatsTotal)
	assert.Equal(t, 5, *slot.SeatsTotal)
	assert.Equal(t, 2, *slot.SeatsLeft)
}

func TestUpdateCapacityShrinkBelowBookedFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(10))})
	require.NoError(t, err)
	slotID := view.Slots[0].ID

	f.bookings.countsBySlot[slotID] = 8
	slots := []model.SlotInput{{
		ID:          slotID,
		StartDate:   day,
		EndDate:     day,
		StartTime:   "10:00",
		EndTime:     "18:00",
		SeatsNumber: intPtr(5),
	}}

	_, err = f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{Slots: &slots})
	require.NoError(t, err)

	assert.Equal(t, 0, *f.slots.slots[slotID].SeatsLeft)
}

func TestUpdateCapacityToUnlimitedDropsCounters(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(10))})
	require.NoError(t, err)
	slotID := view.Slots[0].ID

	slots := []model.SlotInput{{
		ID:        slotID,
		StartDate: day,
		EndDate:   day,
		StartTime: "10:00",
		EndTime:   "18:00",
		Unlimited: true,
	}}

	_, err = f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{Slots: &slots})
	require.NoError(t, err)

	slot := f.slots.slots[slotID]
	assert.Nil(t, slot.SeatsTotal)
	assert.Nil(t, slot.SeatsLeft)
}

func TestUpdateSlotWithDatesOnlyKeepsWindowAndCapacity(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(5))})
	require.NoError(t, err)
	slotID := view.Slots[0].ID

	newDay := day.AddDate(0, 0, 7)
	slots := []model.SlotInput{{
		ID:        slotID,
		StartDate: newDay,
		EndDate:   newDay,
	}}

	_, err = f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{Slots: &slots})
	require.NoError(t, err)

	slot := f.slots.slots[slotID]
	assert.Equal(t, newDay, slot.StartDate)
	assert.Equal(t, newDay, slot.EndDate)
	assert.Equal(t, "10:00", slot.StartTime)
	assert.Equal(t, "18:00", slot.EndTime)
	require.NotNil(t, slot.SeatsTotal)
	assert.Equal(t, 5, *slot.SeatsTotal)
	assert.Equal(t, 5, *slot.SeatsLeft)
}

func TestUpdateSlotWithoutSeatsNumberKeepsRemainingSeats(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(5))})
	require.NoError(t, err)
	slotID := view.Slots[0].ID

	// Two seats taken since creation.
	left := 3
	f.slots.slots[slotID].SeatsLeft = &left

	slots := []model.SlotInput{{
		ID:        slotID,
		StartDate: day,
		EndDate:   day,
		StartTime: "11:00",
		EndTime:   "19:00",
	}}

	_, err = f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{Slots: &slots})
	require.NoError(t, err)

	slot := f.slots.slots[slotID]
	assert.Equal(t, "11:00", slot.StartTime)
	require.NotNil(t, slot.SeatsLeft)
	assert.Equal(t, 3, *slot.SeatsLeft)
	assert.Equal(t, 5, *slot.SeatsTotal)
}

func TestUpdateRejectsUnknownSlotID(t *testing.T) {
	f := newFixture(t)
	view, err := f.service.Create(context.Background(), validEvent("creator-1"), nil)
	require.NoError(t, err)

	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)
	slots := []model.SlotInput{{
		ID:        primitive.NewObjectID().Hex(),
		StartDate: day,
		EndDate:   day,
	}}

	_, err = f.service.Update(context.Background(), "creator-1", view.ID, &model.EventUpdate{Slots: &slots})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDeleteCascadesAndNotifies(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(10))})
	require.NoError(t, err)
	f.bookings.usersByEvent[view.ID] = []string{"u1", "u2"}

	require.NoError(t, f.service.Delete(context.Background(), "creator-1", view.ID))

	assert.Empty(t, f.repo.events)
	assert.Empty(t, f.slots.slots)
	assert.Contains(t, f.bookings.deletedEvents, view.ID)
	require.Len(t, f.notifier.deleted, 1)
	assert.Equal(t, []string{"u1", "u2"}, f.notifier.deleted[0].UserIDs)
}

func TestDeleteRequiresCreator(t *testing.T) {
	f := newFixture(t)
	view, err := f.service.Create(context.Background(), validEvent("creator-1"), nil)
	require.NoError(t, err)

	err = f.service.Delete(context.Background(), "intruder", view.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.Len(t, f.repo.events, 1)
}

func TestListSlotsReportsAvailability(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)

	view, err := f.service.Create(context.Background(), validEvent("creator-1"),
		[]model.SlotInput{slotInput(day, intPtr(10))})
	require.NoError(t, err)
	slotID := view.Slots[0].ID
	f.bookings.countsBySlot[slotID] = 4

	availability, err := f.service.ListSlots(context.Background(), view.ID)
	require.NoError(t, err)

	require.Len(t, availability, 1)
	assert.Equal(t, int64(4), availability[0].BookingsCount)
	require.NotNil(t, availability[0].RemainingSeats)
	assert.Equal(t, 10, *availability[0].RemainingSeats)
}

func TestDeriveState(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 11, d, 0, 0, 0, 0, time.UTC)
	}
	slots := []*model.Slot{
		{StartDate: day(10), EndDate: day(10), StartTime: "10:00", EndTime: "12:00"},
		{StartDate: day(12), EndDate: day(12), StartTime: "14:00", EndTime: "16:00"},
	}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before first slot", day(9), model.StateUpcoming},
		{"during first slot", time.Date(2026, 11, 10, 11, 0, 0, 0, time.UTC), model.StateOngoing},
		{"between slots", day(11), model.StateOngoing},
		{"after last slot", day(13), model.StateFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveState(slots, tt.now))
		})
	}

	t.Run("no slots means upcoming", func(t *testing.T) {
		assert.Equal(t, model.StateUpcoming, deriveState(nil, day(1)))
	})
}

func TestCapacityChanged(t *testing.T) {
	assert.False(t, capacityChanged(nil, nil))
	assert.False(t, capacityChanged(intPtr(5), intPtr(5)))
	assert.True(t, capacityChanged(nil, intPtr(5)))
	assert.True(t, capacityChanged(intPtr(5), nil))
	assert.True(t, capacityChanged(intPtr(5), intPtr(6)))
}

func TestPatchSlotKeepsOmittedFields(t *testing.T) {
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)
	current := &model.Slot{
		ID:          primitive.NewObjectID().Hex(),
		EventID:     primitive.NewObjectID().Hex(),
		StartDate:   day,
		EndDate:     day,
		StartTime:   "10:00",
		EndTime:     "18:00",
		SeatsLeft:   intPtr(4),
		SeatsTotal:  intPtr(5),
		Description: "Main hall",
	}

	patched := patchSlot(current, model.SlotInput{EndTime: "20:00"})

	assert.Equal(t, day, patched.StartDate)
	assert.Equal(t, "10:00", patched.StartTime)
	assert.Equal(t, "20:00", patched.EndTime)
	assert.Equal(t, "Main hall", patched.Description)
	assert.Equal(t, 4, *patched.SeatsLeft)
	assert.Equal(t, 5, *patched.SeatsTotal)
}

func TestSlotFromInputDefaultsTimes(t *testing.T) {
	day := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)
	slot := slotFromInput(primitive.NewObjectID().Hex(), model.SlotInput{
		StartDate: day,
		EndDate:   day,
	})

	assert.Equal(t, "00:00", slot.StartTime)
	assert.Equal(t, "23:59", slot.EndTime)
	assert.Nil(t, slot.SeatsTotal)
	assert.Nil(t, slot.SeatsLeft)
}
