package repository

import (
	"context"
	"fmt"
	"time"

	"agendly/pkg/config"
	"agendly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsageCountersCollection = "Usage_counters"
	AuditLogsCollection     = "Audit_logs"
	RemindersCollection     = "Reminders"
	LineItemsCollection     = "Reservation_line_items"
)

// UsagePeriod buckets counters by calendar month in UTC.
func UsagePeriod(at time.Time) string {
	return at.UTC().Format("2006-01")
}

type MongoUsageCounter struct {
	collection *mongo.Collection
}

func NewMongoUsageCounter(cfg *config.Config) *MongoUsageCounter {
	return &MongoUsageCounter{collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(UsageCountersCollection)}
}

func (c *MongoUsageCounter) Increment(ctx context.Context, tenantID, counter string, at time.Time) error {
	period := UsagePeriod(at)
	filter := bson.M{"_id": tenantID + ":" + period}
	update := bson.M{
		"$inc":         bson.M{"counters." + counter: 1},
		"$set":         bson.M{"updated_at": at},
		"$setOnInsert": bson.M{"tenant_id": tenantID, "period": period},
	}

	if _, err := c.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return nil
}

type MongoAuditLog struct {
	collection *mongo.Collection
}

func NewMongoAuditLog(cfg *config.Config) *MongoAuditLog {
	return &MongoAuditLog{collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(AuditLogsCollection)}
}

func (a *MongoAuditLog) Record(ctx context.Context, entry *model.AuditEntry) error {
	if _, err := a.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

type MongoReminderStore struct {
	collection *mongo.Collection
}

func NewMongoReminderStore(cfg *config.Config) *MongoReminderStore {
	return &MongoReminderStore{collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(RemindersCollection)}
}

func (s *MongoReminderStore) Schedule(ctx context.Context, reminders []*model.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	docs := make([]any, 0, len(reminders))
	for _, r := range reminders {
		docs = append(docs, r)
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	return nil
}

func (s *MongoReminderStore) CancelForReservation(ctx context.Context, tenantID, reservationID string) error {
	filter := bson.M{
		"tenant_id":      tenantID,
		"reservation_id": reservationID,
		"status":         model.ReminderStatusScheduled,
	}
	update := bson.M{"$set": bson.M{"status": model.ReminderStatusCancelled}}

	if _, err := s.collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	return nil
}

type MongoLineItemStore struct {
	collection *mongo.Collection
}

func NewMongoLineItemStore(cfg *config.Config) *MongoLineItemStore {
	return &MongoLineItemStore{collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(LineItemsCollection)}
}

func (s *MongoLineItemStore) Attach(ctx context.Context, item *model.LineItem) error {
	if _, err := s.collection.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("failed to attach line item: %w", err)
	}
	return nil
}
