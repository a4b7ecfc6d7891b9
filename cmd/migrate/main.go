package main

import (
	"context"
	"time"

	migrations "eventbook/internal/migrations/mongo"
	"eventbook/pkg/config"

	"github.com/joho/godotenv"
)

const ServiceName = "eventbook-migrate"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := migrations.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	cfg.Log.Info("Migrations completed", "database", cfg.MongoDatabaseName)
}
