package main

import (
	"context"
	"time"

	mongoMigration "agendly/internal/migrations/mongo"
	postgresMigration "agendly/internal/migrations/postgres"
	"agendly/pkg/config"
)

const JobName = "migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	cfg.Log.Info("Starting migration job", "reservation_store", cfg.ReservationStore)
	defer cfg.GracefulShutdown()

	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.Log); err != nil {
		cfg.Log.Fatal("Mongo migration failed", "error", err)
	}

	if cfg.PostgresDSN != "" {
		cfg.SetPostgres()
		if err := postgresMigration.RunMigration(ctx, cfg.Client.Postgres, cfg.Log); err != nil {
			cfg.Log.Fatal("Postgres migration failed", "error", err)
		}
	}

	cfg.Log.Info("Migration completed successfully")
}
