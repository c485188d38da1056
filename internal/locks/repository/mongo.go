package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	lockserrors "agendly/internal/locks/errors"
	"agendly/pkg/config"
	"agendly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Slot_locks"
	defaultTimeout = 5 * time.Second
)

type mongoSlotLockRepository struct {
	collection *mongo.Collection
}

func NewMongoSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		collection: db.Collection(CollectionName),
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultTimeout)
}

func (r *mongoSlotLockRepository) FindLive(ctx context.Context, tenantID, slotKey string, now time.Time) (*model.SlotLock, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"tenant_id":  tenantID,
		"slot_key":   slotKey,
		"expires_at": bson.M{"$gt": now},
	}

	var lock model.SlotLock
	if err := r.collection.FindOne(ctx, filter).Decode(&lock); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, lockserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot lock: %w", err)
	}
	return &lock, nil
}

// Create relies on the unique (tenant_id, slot_key) index.
func (r *mongoSlotLockRepository) Create(ctx context.Context, lock *model.SlotLock) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return lockserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to create slot lock: %w", err)
	}
	return nil
}

func (r *mongoSlotLockRepository) Extend(ctx context.Context, lockID, sessionID string, now, expiresAt time.Time) (*model.SlotLock, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"_id":        lockID,
		"session_id": sessionID,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"expires_at": expiresAt}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lock model.SlotLock
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&lock); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, lockserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to extend slot lock: %w", err)
	}
	return &lock, nil
}

func (r *mongoSlotLockRepository) Delete(ctx context.Context, tenantID, lockID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "tenant_id": tenantID}); err != nil {
		return fmt.Errorf("failed to delete slot lock: %w", err)
	}
	return nil
}

func (r *mongoSlotLockRepository) DeleteExpiredForKey(ctx context.Context, tenantID, slotKey string, now time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"tenant_id":  tenantID,
		"slot_key":   slotKey,
		"expires_at": bson.M{"$lte": now},
	}
	if _, err := r.collection.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to purge expired slot lock: %w", err)
	}
	return nil
}

// DeleteExpired complements the TTL index, which only runs once a minute.
func (r *mongoSlotLockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired slot locks: %w", err)
	}
	return result.DeletedCount, nil
}
