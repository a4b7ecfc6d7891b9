package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventserrors "eventbook/internal/events/errors"
	"eventbook/pkg/config"
	mongotx "eventbook/pkg/db/mongo"
	"eventbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EventCollectionName = "Events"
)

type mongoEventRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	FindByID(ctx context.Context, id string) (*model.Event, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Event, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, event *model.Event) error
	SetRegistrationLink(ctx context.Context, id string, link string) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoEventRepository(cfg *config.Config) EventRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoEventRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(EventCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoEventRepository) Create(ctx context.Context, event *model.Event) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	event.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		event.ID = oid.Hex()
	}
	return nil
}

func (r *mongoEventRepository) FindByID(ctx context.Context, id string) (*model.Event, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}

	var event model.Event
	err = r.collection.FindOne(ctx, filter).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, eventserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find event: %w", err)
	}

	return &event, nil
}

func (r *mongoEventRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Event, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*model.Event
	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	return events, nil
}

func (r *mongoEventRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

func (r *mongoEventRepository) Update(ctx context.Context, id string, event *model.Event) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"name":          event.Name,
			"description":   event.Description,
			"visit_cost":    event.VisitCost,
			"city":          event.City,
			"address":       event.Address,
			"status":        event.Status,
			"format":        event.Format,
			"photo":         event.Photo,
			"custom_fields": event.CustomFields,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	if result.MatchedCount == 0 {
		return eventserrors.ErrNotFound
	}

	return nil
}

func (r *mongoEventRepository) SetRegistrationLink(ctx context.Context, id string, link string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"registration_link": link}},
	)
	if err != nil {
		return fmt.Errorf("failed to set registration link: %w", err)
	}

	if result.MatchedCount == 0 {
		return eventserrors.ErrNotFound
	}

	return nil
}

func (r *mongoEventRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", eventserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if result.DeletedCount == 0 {
		return eventserrors.ErrNotFound
	}

	return nil
}

func (r *mongoEventRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
