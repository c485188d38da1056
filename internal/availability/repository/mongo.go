package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "agendly/internal/availability/errors"
	"agendly/pkg/config"
	"agendly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Staff_availability"
	defaultTimeout = 5 * time.Second
)

type mongoStaffAvailabilityRepository struct {
	collection *mongo.Collection
}

func NewMongoStaffAvailabilityRepository(cfg *config.Config) StaffAvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStaffAvailabilityRepository{
		collection: db.Collection(CollectionName),
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultTimeout)
}

func (r *mongoStaffAvailabilityRepository) FindByStaffAndDay(ctx context.Context, tenantID, staffID string, day time.Weekday) (*model.StaffAvailability, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{"tenant_id": tenantID, "staff_id": staffID, "day_of_week": day}

	var window model.StaffAvailability
	if err := r.collection.FindOne(ctx, filter).Decode(&window); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find staff availability: %w", err)
	}
	return &window, nil
}

func (r *mongoStaffAvailabilityRepository) FindByStaff(ctx context.Context, tenantID, staffID string) ([]*model.StaffAvailability, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "day_of_week", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID, "staff_id": staffID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff availability: %w", err)
	}
	defer cursor.Close(ctx)

	var windows []*model.StaffAvailability
	if err := cursor.All(ctx, &windows); err != nil {
		return nil, fmt.Errorf("failed to decode staff availability: %w", err)
	}
	return windows, nil
}

func (r *mongoStaffAvailabilityRepository) Upsert(ctx context.Context, window *model.StaffAvailability) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"tenant_id":   window.TenantID,
		"staff_id":    window.StaffID,
		"day_of_week": window.DayOfWeek,
	}
	update := bson.M{"$set": window}

	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert staff availability: %w", err)
	}
	return nil
}
