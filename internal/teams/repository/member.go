package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	teamserrors "eventbook/internal/teams/errors"
	"eventbook/pkg/config"
	"eventbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MemberCollectionName = "TeamMembers"
)

type mongoTeamMemberRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

// TeamMemberRepository persists team membership rows. Pending invites are
// rows with an invite_token and no user_id; ClaimInvite atomically turns
// one into a real membership.
type TeamMemberRepository interface {
	Create(ctx context.Context, member *model.TeamMember) error
	FindByTeamAndUser(ctx context.Context, teamID string, userID string) (*model.TeamMember, error)
	FindByInviteToken(ctx context.Context, token string) (*model.TeamMember, error)
	ClaimInvite(ctx context.Context, id string, userID string) error
	FindByTeam(ctx context.Context, teamID string, limit int, offset int64) ([]*model.TeamMember, error)
	CountByTeam(ctx context.Context, teamID string) (int64, error)
}

func NewMongoTeamMemberRepository(cfg *config.Config) TeamMemberRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTeamMemberRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(MemberCollectionName),
	}
}

func (r *mongoTeamMemberRepository) Create(ctx context.Context, member *model.TeamMember) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	member.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, member)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return teamserrors.ErrDuplicateMember
		}
		return fmt.Errorf("failed to create team member: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		member.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTeamMemberRepository) FindByTeamAndUser(ctx context.Context, teamID string, userID string) (*model.TeamMember, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"team_id": teamID, "user_id": userID}

	var member model.TeamMember
	err := r.collection.FindOne(ctx, filter).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, teamserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find team member: %w", err)
	}

	return &member, nil
}

func (r *mongoTeamMemberRepository) FindByInviteToken(ctx context.Context, token string) (*model.TeamMember, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var member model.TeamMember
	err := r.collection.FindOne(ctx, bson.M{"invite_token": token}).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, teamserrors.ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to find invite: %w", err)
	}

	return &member, nil
}

// ClaimInvite assigns the user to a pending invite row and burns the
// token. Matching on a still-present invite_token makes a second claim of
// the same token a no-op that reports ErrInviteNotFound.
func (r *mongoTeamMemberRepository) ClaimInvite(ctx context.Context, id string, userID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", teamserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":          objectID,
		"invite_token": bson.M{"$exists": true},
	}
	update := bson.M{
		"$set":   bson.M{"user_id": userID},
		"$unset": bson.M{"invite_token": ""},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return teamserrors.ErrDuplicateMember
		}
		return fmt.Errorf("failed to claim invite: %w", err)
	}

	if result.MatchedCount == 0 {
		return teamserrors.ErrInviteNotFound
	}

	return nil
}

func (r *mongoTeamMemberRepository) FindByTeam(ctx context.Context, teamID string, limit int, offset int64) ([]*model.TeamMember, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"team_id": teamID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find team members: %w", err)
	}
	defer cursor.Close(ctx)

	var members []*model.TeamMember
	if err = cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode team members: %w", err)
	}

	return members, nil
}

func (r *mongoTeamMemberRepository) CountByTeam(ctx context.Context, teamID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"team_id": teamID})
	if err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return count, nil
}
