package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventserrors "eventbook/internal/events/errors"
	"eventbook/pkg/config"
	"eventbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SlotCollectionName = "Slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

// SlotRepository owns the per-slot seat counters. AcquireSeat and
// ReleaseSeat are the only operations that may move seats_left, and both
// are single conditional updates so concurrent registrations can never
// drive the counter below zero or above seats_total.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindByIDAndEvent(ctx context.Context, id string, eventID string) (*model.Slot, error)
	FindByEvent(ctx context.Context, eventID string) ([]*model.Slot, error)
	FindByEvents(ctx context.Context, eventIDs []string) (map[string][]*model.Slot, error)
	UpdateWindow(ctx context.Context, id string, slot *model.Slot) error
	SetCapacity(ctx context.Context, id string, seatsTotal, seatsLeft *int) error
	AcquireSeat(ctx context.Context, id string) error
	ReleaseSeat(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteByEvent(ctx context.Context, eventID string) (int64, error)
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(SlotCollectionName),
	}
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, eventserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByIDAndEvent(ctx context.Context, id string, eventID string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "event_id": eventID}

	var slot model.Slot
	err = r.collection.FindOne(ctx, filter).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, eventserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByEvent(ctx context.Context, eventID string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) FindByEvents(ctx context.Context, eventIDs []string) (map[string][]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if len(eventIDs) == 0 {
		return map[string][]*model.Slot{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"event_id": bson.M{"$in": eventIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	byEvent := make(map[string][]*model.Slot, len(eventIDs))
	for _, slot := range slots {
		byEvent[slot.EventID] = append(byEvent[slot.EventID], slot)
	}

	return byEvent, nil
}

func (r *mongoSlotRepository) UpdateWindow(ctx context.Context, id string, slot *model.Slot) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"start_date":  slot.StartDate,
			"end_date":    slot.EndDate,
			"start_time":  slot.StartTime,
			"end_time":    slot.EndTime,
			"description": slot.Description,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}

	if result.MatchedCount == 0 {
		return eventserrors.ErrSlotNotFound
	}

	return nil
}

// SetCapacity resets the seat counters. A nil seatsTotal makes the slot
// unlimited by unsetting both counters.
func (r *mongoSlotRepository) SetCapacity(ctx context.Context, id string, seatsTotal, seatsLeft *int) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	var update bson.M
	if seatsTotal == nil {
		update = bson.M{"$unset": bson.M{"seats_total": "", "seats_left": ""}}
	} else {
		update = bson.M{"$set": bson.M{"seats_total": *seatsTotal, "seats_left": *seatsLeft}}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to set slot capacity: %w", err)
	}

	if result.MatchedCount == 0 {
		return eventserrors.ErrSlotNotFound
	}

	return nil
}

// AcquireSeat atomically claims one seat. The decrement only matches a
// document whose counter is still positive, so two concurrent callers
// cannot both take the last seat. Unlimited slots (no counter) always
// succeed.
func (r *mongoSlotRepository) AcquireSeat(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":        objectID,
		"seats_left": bson.M{"$gt": 0},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"seats_left": -1}})
	if err != nil {
		return fmt.Errorf("failed to acquire seat: %w", err)
	}
	if result.ModifiedCount == 1 {
		return nil
	}

	// Nothing matched: missing slot, unlimited slot, or sold out.
	slot, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if slot.SeatsLeft == nil {
		return nil
	}
	return eventserrors.ErrNoSeats
}

// ReleaseSeat returns one seat, capped at the originally configured total.
// Releasing on an unlimited or already-full slot is a no-op.
func (r *mongoSlotRepository) ReleaseSeat(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":        objectID,
		"seats_left": bson.M{"$exists": true},
		"$expr":      bson.M{"$lt": bson.A{"$seats_left", "$seats_total"}},
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"seats_left": 1}})
	if err != nil {
		return fmt.Errorf("failed to release seat: %w", err)
	}

	return nil
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	if result.DeletedCount == 0 {
		return eventserrors.ErrSlotNotFound
	}

	return nil
}

func (r *mongoSlotRepository) DeleteByEvent(ctx context.Context, eventID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete slots: %w", err)
	}

	return result.DeletedCount, nil
}
