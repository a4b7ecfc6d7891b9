package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	teamserrors "eventbook/internal/teams/errors"
	"eventbook/pkg/config"
	mongotx "eventbook/pkg/db/mongo"
	"eventbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	TeamCollectionName = "Teams"
)

type mongoTeamRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	FindByID(ctx context.Context, id string) (*model.Team, error)
	FindByRegistrationLink(ctx context.Context, link string) (*model.Team, error)
	SetRegistrationLink(ctx context.Context, id string, link string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoTeamRepository(cfg *config.Config) TeamRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTeamRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(TeamCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
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

func (r *mongoTeamRepository) Create(ctx context.Context, team *model.Team) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	team.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, team)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return teamserrors.ErrDuplicateName
		}
		return fmt.Errorf("failed to create team: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		team.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTeamRepository) FindByID(ctx context.Context, id string) (*model.Team, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", teamserrors.ErrInvalidID, id)
	}

	var team model.Team
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&team)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, teamserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}

	return &team, nil
}

func (r *mongoTeamRepository) FindByRegistrationLink(ctx context.Context, link string) (*model.Team, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var team model.Team
	err := r.collection.FindOne(ctx, bson.M{"registration_link": link}).Decode(&team)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, teamserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}

	return &team, nil
}

func (r *mongoTeamRepository) SetRegistrationLink(ctx context.Context, id string, link string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", teamserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"registration_link": link}},
	)
	if err != nil {
		return fmt.Errorf("failed to set registration link: %w", err)
	}

	if result.MatchedCount == 0 {
		return teamserrors.ErrNotFound
	}

	return nil
}

func (r *mongoTeamRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
