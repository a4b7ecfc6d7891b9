package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eventbook/internal/migrations/mongo/validators"
)

var (
	EventsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "creator_id", Value: 1}}},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}

	SlotsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
		{Keys: bson.D{
			{Key: "event_id", Value: 1},
			{Key: "start_date", Value: 1},
		}},
	}

	// The unique (user_id, slot_id) index is the backstop behind the
	// duplicate-registration check in the booking repository.
	BookingsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "slot_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "event_id", Value: 1}}},
		{Keys: bson.D{{Key: "slot_id", Value: 1}}},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(
				bson.M{"expires_at": bson.M{"$exists": true}},
			),
		},
	}

	TeamsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "creator_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "registration_link", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"registration_link": bson.M{"$exists": true}},
			),
		},
	}

	TeamMembersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "team_id", Value: 1}}},
		{
			Keys: bson.D{
				{Key: "team_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"user_id": bson.M{"$exists": true}},
			),
		},
		{
			Keys: bson.D{{Key: "invite_token", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"invite_token": bson.M{"$exists": true}},
			),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running Eventbook Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Events": {
			Indexes:   EventsIndexes,
			Validator: validators.EventValidator,
		},
		"Slots": {
			Indexes:   SlotsIndexes,
			Validator: validators.SlotValidator,
		},
		"Bookings": {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		"Teams": {
			Indexes:   TeamsIndexes,
			Validator: validators.TeamValidator,
		},
		"TeamMembers": {
			Indexes:   TeamMembersIndexes,
			Validator: validators.TeamMemberValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}
