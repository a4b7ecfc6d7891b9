package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	bookingserrors "eventbook/internal/bookings/errors"
	"eventbook/internal/bookings/validator"
	eventserrors "eventbook/internal/events/errors"
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

// --- Fakes ---

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	nextID   int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (f *fakeBookingRepo) Create(_ context.Context, booking *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.UserID == booking.UserID && b.SlotID == booking.SlotID {
			return bookingserrors.ErrDuplicate
		}
	}
	f.nextID++
	booking.ID = primitive.NewObjectID().Hex()
	booking.CreatedAt = time.Now().UTC()
	stored := *booking
	f.bookings[booking.ID] = &stored
	return nil
}

func (f *fakeBookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeBookingRepo) FindByUserAndSlot(_ context.Context, userID string, slotID string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.UserID == userID && b.SlotID == slotID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeBookingRepo) FindByUserAndEvent(_ context.Context, userID string, eventID string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.UserID == userID && b.EventID == eventID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeBookingRepo) FindByEvent(_ context.Context, eventID string, _ int, _ int64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.EventID == eventID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) CountByEvent(_ context.Context, eventID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bookings {
		if b.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) FindByUser(_ context.Context, userID string, _ int, _ int64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) CountByUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) CountBySlot(_ context.Context, slotID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.bookings {
		if b.SlotID == slotID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
			copied := *b
			out = append(out, &copied)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) DistinctUsersByEvent(_ context.Context, eventID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, b := range f.bookings {
		if b.EventID == eventID {
			if _, ok := seen[b.UserID]; !ok {
				seen[b.UserID] = struct{}{}
				out = append(out, b.UserID)
			}
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookingRepo) DeleteBySlots(_ context.Context, slotIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, b := range f.bookings {
		for _, slotID := range slotIDs {
			if b.SlotID == slotID {
				delete(f.bookings, id)
				n++
				break
			}
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) DeleteByEvent(_ context.Context, eventID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, b := range f.bookings {
		if b.EventID == eventID {
			delete(f.bookings, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type fakeEventStore struct {
	events map[string]*model.Event
}

func (f *fakeEventStore) FindByID(_ context.Context, id string) (*model.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, eventserrors.ErrNotFound
}

type fakeSlotStore struct {
	mu    sync.Mutex
	slots map[string]*model.Slot
}

func (f *fakeSlotStore) FindByIDAndEvent(_ context.Context, id string, eventID string) (*model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[id]; ok && s.EventID == eventID {
		return s, nil
	}
	return nil, eventserrors.ErrSlotNotFound
}

func (f *fakeSlotStore) FindByEvent(_ context.Context, eventID string) ([]*model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Slot
	for _, s := range f.slots {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSlotStore) AcquireSeat(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeSlotStore) ReleaseSeat(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil
	}
	if s.SeatsLeft != nil && s.SeatsTotal != nil && *s.SeatsLeft < *s.SeatsTotal {
		*s.SeatsLeft++
	}
	return nil
}

func (f *fakeSlotStore) seatsLeft(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.slots[id].SeatsLeft
}

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []notify.BookingConfirmedPayload
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, payload notify.BookingConfirmedPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, payload)
}

// --- Fixtures ---

type fixture struct {
	repo     *fakeBookingRepo
	events   *fakeEventStore
	slots    *fakeSlotStore
	notifier *fakeNotifier
	service  BookingService

	eventID string
	slotID  string
}

func intPtr(n int) *int { return &n }

func newFixture(t *testing.T, seats *int) *fixture {
	t.Helper()
	cfg := testConfig()

	eventID := primitive.NewObjectID().Hex()
	slotID := primitive.NewObjectID().Hex()

	event := &model.Event{
		ID:     eventID,
		Name:   "Go Conference",
		Status: model.StatusOpen,
		CustomFields: []model.CustomField{
			{ID: primitive.NewObjectID().Hex(), Title: "Company"},
			{ID: primitive.NewObjectID().Hex(), Title: "Dietary preference"},
		},
	}

	var total *int
	if seats != nil {
		n := *seats
		total = &n
	}
	slot := &model.Slot{
		ID:         slotID,
		EventID:    eventID,
		StartDate:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		StartTime:  "10:00",
		EndTime:    "18:00",
		SeatsLeft:  seats,
		SeatsTotal: total,
	}

	f := &fixture{
		repo:     newFakeBookingRepo(),
		events:   &fakeEventStore{events: map[string]*model.Event{eventID: event}},
		slots:    &fakeSlotStore{slots: map[string]*model.Slot{slotID: slot}},
		notifier: &fakeNotifier{},
		eventID:  eventID,
		slotID:   slotID,
	}
	f.service = NewBookingService(
		f.repo,
		f.events,
		f.slots,
		f.notifier,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	return f
}

// --- Tests ---

func TestRegisterDecrementsSeatAndStoresBooking(t *testing.T) {
	f := newFixture(t, intPtr(2))

	booking, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID,
		SlotID:  f.slotID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, booking.ID)

	assert.Equal(t, 1, *f.slots.slots[f.slotID].SeatsLeft)
	assert.Len(t, f.notifier.confirmed, 1)
	assert.Equal(t, booking.ID, f.notifier.confirmed[0].BookingID)
}

func TestRegisterRejectsSecondBookingForSameSlot(t *testing.T) {
	f := newFixture(t, intPtr(5))
	req := &model.RegistrationRequest{EventID: f.eventID, SlotID: f.slotID}

	_, err := f.service.Register(context.Background(), "user-1", req)
	require.NoError(t, err)

	_, err = f.service.Register(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyRegistered))

	// Seat count must be untouched by the rejected attempt.
	assert.Equal(t, 4, *f.slots.slots[f.slotID].SeatsLeft)
}

func TestRegisterFailsWhenSeatsExhausted(t *testing.T) {
	f := newFixture(t, intPtr(1))

	_, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.NoError(t, err)

	_, err = f.service.Register(context.Background(), "user-2", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoSeats))
	assert.False(t, apperrors.HasCode(err, apperrors.CodeAlreadyRegistered))
}

func TestRegisterConcurrentClaimsOfLastSeat(t *testing.T) {
	f := newFixture(t, intPtr(1))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, user := range []string{"user-1", "user-2"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := f.service.Register(context.Background(), user, &model.RegistrationRequest{
				EventID: f.eventID, SlotID: f.slotID,
			})
			errs <- err
		}(user)
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNoSeats))
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, f.slots.seatsLeft(f.slotID))

	booked, err := f.repo.CountBySlot(context.Background(), f.slotID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, booked)
}

func TestRegisterLogsDriftedSeatCounter(t *testing.T) {
	f := newFixture(t, intPtr(5))

	var buf bytes.Buffer
	cfg := &config.Config{
		Log: logger.New(logger.Config{
			Level:  logger.WARN,
			Format: logger.TEXT,
			Output: &buf,
		}),
	}
	svc := NewBookingService(
		f.repo,
		f.events,
		f.slots,
		f.notifier,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	// Counter exhausted while the ledger holds no bookings.
	zero := 0
	f.slots.slots[f.slotID].SeatsLeft = &zero

	_, err := svc.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoSeats))
	assert.Contains(t, buf.String(), "Seat counter exhausted below booked capacity")
}

func TestRegisterUnlimitedSlotNeverRunsOut(t *testing.T) {
	f := newFixture(t, nil)

	for _, user := range []string{"u1", "u2", "u3", "u4", "u5"} {
		_, err := f.service.Register(context.Background(), user, &model.RegistrationRequest{
			EventID: f.eventID, SlotID: f.slotID,
		})
		require.NoError(t, err)
	}
	assert.Nil(t, f.slots.slots[f.slotID].SeatsLeft)
}

func TestRegisterRejectsClosedEvent(t *testing.T) {
	f := newFixture(t, intPtr(5))
	f.events.events[f.eventID].Status = model.StatusClose

	_, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestRegisterRejectsSlotFromAnotherEvent(t *testing.T) {
	f := newFixture(t, intPtr(5))
	otherEventID := primitive.NewObjectID().Hex()
	f.events.events[otherEventID] = &model.Event{
		ID:     otherEventID,
		Name:   "Other",
		Status: model.StatusOpen,
	}

	_, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: otherEventID, SlotID: f.slotID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRegisterReconcilesAnswersByTitle(t *testing.T) {
	f := newFixture(t, intPtr(5))

	booking, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID,
		SlotID:  f.slotID,
		Answers: []model.AnswerInput{
			{Title: "  Company  ", Value: "  Acme   Corp "},
			{Title: "company", Value: "wrong case, dropped"},
			{Title: "Unknown question", Value: "dropped"},
		},
	})
	require.NoError(t, err)

	require.Len(t, booking.Answers, 1)
	assert.Equal(t, "Company", booking.Answers[0].Title)
	assert.Equal(t, "Acme Corp", booking.Answers[0].Value)
	assert.NotEmpty(t, booking.Answers[0].FieldID)
}

func TestRegisterComputesExpirationFromLatestSlotEnd(t *testing.T) {
	f := newFixture(t, intPtr(5))

	laterID := primitive.NewObjectID().Hex()
	f.slots.slots[laterID] = &model.Slot{
		ID:        laterID,
		EventID:   f.eventID,
		StartDate: time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "17:30",
	}

	booking, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID:        f.eventID,
		SlotID:         f.slotID,
		ExpirationDays: intPtr(7),
	})
	require.NoError(t, err)

	require.NotNil(t, booking.ExpiresAt)
	want := time.Date(2026, 10, 9, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, want, *booking.ExpiresAt)
}

func TestRegisterWithoutExpirationDaysNeverExpires(t *testing.T) {
	f := newFixture(t, intPtr(5))

	booking, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.NoError(t, err)
	assert.Nil(t, booking.ExpiresAt)
}

func TestRegisterRequiresUserIdentity(t *testing.T) {
	f := newFixture(t, intPtr(5))

	_, err := f.service.Register(context.Background(), "", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestCancelReleasesExactlyOneSeat(t *testing.T) {
	f := newFixture(t, intPtr(2))

	booking, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, *f.slots.slots[f.slotID].SeatsLeft)

	require.NoError(t, f.service.Cancel(context.Background(), "user-1", booking.ID))
	assert.Equal(t, 2, *f.slots.slots[f.slotID].SeatsLeft)

	err = f.service.Cancel(context.Background(), "user-1", booking.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, 2, *f.slots.slots[f.slotID].SeatsLeft)
}

func TestCancelForbiddenForOtherUsers(t *testing.T) {
	f := newFixture(t, intPtr(2))

	booking, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.NoError(t, err)

	err = f.service.Cancel(context.Background(), "user-2", booking.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.repo.FindByID(context.Background(), booking.ID)
	assert.NoError(t, err)
}

func TestGetByIDChecksOwnership(t *testing.T) {
	f := newFixture(t, intPtr(2))

	booking, err := f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.NoError(t, err)

	got, err := f.service.GetByID(context.Background(), "user-1", booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)

	_, err = f.service.GetByID(context.Background(), "user-2", booking.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestIsMember(t *testing.T) {
	f := newFixture(t, intPtr(2))

	member, err := f.service.IsMember(context.Background(), "user-1", f.eventID)
	require.NoError(t, err)
	assert.False(t, member)

	_, err = f.service.Register(context.Background(), "user-1", &model.RegistrationRequest{
		EventID: f.eventID, SlotID: f.slotID,
	})
	require.NoError(t, err)

	member, err = f.service.IsMember(context.Background(), "user-1", f.eventID)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestReleaseSeatCappedAtTotal(t *testing.T) {
	f := newFixture(t, intPtr(3))

	require.NoError(t, f.slots.ReleaseSeat(context.Background(), f.slotID))
	assert.Equal(t, 3, *f.slots.slots[f.slotID].SeatsLeft)
}
