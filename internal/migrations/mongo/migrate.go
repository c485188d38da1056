package mongo

import (
	"context"
	"fmt"

	availabilityrepo "agendly/internal/availability/repository"
	lockrepo "agendly/internal/locks/repository"
	"agendly/internal/migrations/mongo/validators"
	reservationrepo "agendly/internal/reservations/repository"
	"agendly/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_at", Value: 1},
			{Key: "end_at", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "staff_id", Value: 1},
			{Key: "start_at", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "location_id", Value: 1},
			{Key: "start_at", Value: 1},
		}},
	}

	SlotLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "slot_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tenant_slot_key_unique"),
		},
		{
			// Mongo's TTL monitor runs about once a minute; the sweeper and
			// acquisition path handle anything it has not reached yet.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
		},
	}

	StaffAvailabilityIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "staff_id", Value: 1},
				{Key: "day_of_week", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("tenant_staff_day_unique"),
		},
	}

	UsageCountersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "period", Value: 1}}},
	}

	AuditLogsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "reservation_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}

	RemindersIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "send_at", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "reservation_id", Value: 1}}},
	}

	LineItemsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "reservation_id", Value: 1}}},
	}
)

type CollectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() []CollectionDef {
	return []CollectionDef{
		{Name: reservationrepo.CollectionName, Indexes: ReservationsIndexes, Validator: validators.ReservationValidator},
		{Name: reservationrepo.GuardCollectionName},
		{Name: lockrepo.CollectionName, Indexes: SlotLocksIndexes, Validator: validators.SlotLockValidator},
		{Name: availabilityrepo.CollectionName, Indexes: StaffAvailabilityIndexes, Validator: validators.StaffAvailabilityValidator},
		{Name: reservationrepo.UsageCountersCollection, Indexes: UsageCountersIndexes},
		{Name: reservationrepo.AuditLogsCollection, Indexes: AuditLogsIndexes},
		{Name: reservationrepo.RemindersCollection, Indexes: RemindersIndexes},
		{Name: reservationrepo.LineItemsCollection, Indexes: LineItemsIndexes},
	}
}

// RunMigration creates every collection the service writes to, including
// the guard collection, since Mongo cannot create collections inside a
// transaction on older servers.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if len(def.Indexes) == 0 {
			continue
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
		log.Info("Ensured indexes", "collection", def.Name, "count", len(def.Indexes))
	}

	log.Info("All Mongo migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating collection validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	_, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	return err
}
