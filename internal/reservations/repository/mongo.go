package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationerrors "agendly/internal/reservations/errors"
	"agendly/pkg/config"
	mongotx "agendly/pkg/db/mongo"
	"agendly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName      = "Reservations"
	GuardCollectionName = "Reservation_guards"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	guards     *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		guards:     db.Collection(GuardCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout bounds ctx unless it is a SessionContext, which cannot be
// wrapped without leaving the transaction.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func buildOverlapFilter(q model.ConflictQuery) bson.M {
	filter := bson.M{
		"tenant_id": q.TenantID,
		"status":    bson.M{"$in": model.ActiveStatuses},
		"start_at":  bson.M{"$lt": q.EndAt},
		"end_at":    bson.M{"$gt": q.StartAt},
	}
	if q.Scoped() {
		filter["$or"] = bson.A{
			bson.M{"staff_id": bson.M{"$in": q.ResourceIDs}},
			bson.M{"location_id": bson.M{"$in": q.ResourceIDs}},
		}
	}
	if q.ExcludeReservationID != "" {
		filter["_id"] = bson.M{"$ne": q.ExcludeReservationID}
	}
	return filter
}

func (r *mongoReservationRepository) FindOverlapping(ctx context.Context, q model.ConflictQuery) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, buildOverlapFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

// ensureGuard creates the per-tenant guard document outside any
// transaction. Two first-time creators racing here is harmless.
func (r *mongoReservationRepository) ensureGuard(ctx context.Context, tenantID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.guards.UpdateOne(ctx,
		bson.M{"_id": tenantID},
		bson.M{"$setOnInsert": bson.M{"version": int64(0)}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to ensure reservation guard: %w", err)
	}
	return nil
}

// bumpGuard writes the tenant guard first thing in the transaction. Two
// concurrent writers for the same tenant then hit a write conflict and the
// driver retries the loser, whose re-check sees the winner's insert.
func (r *mongoReservationRepository) bumpGuard(sessCtx mongo.SessionContext, tenantID string, at time.Time) error {
	_, err := r.guards.UpdateOne(sessCtx,
		bson.M{"_id": tenantID},
		bson.M{"$inc": bson.M{"version": 1}, "$set": bson.M{"updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to bump reservation guard: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) checkInTransaction(sessCtx mongo.SessionContext, q model.ConflictQuery, at time.Time) error {
	if err := r.bumpGuard(sessCtx, q.TenantID, at); err != nil {
		return err
	}
	existing, err := r.FindOverlapping(sessCtx, q)
	if err != nil {
		return err
	}
	if conflicts := model.CollectConflicts(q, existing); len(conflicts) > 0 {
		return &reservationerrors.ConflictError{Conflicts: conflicts}
	}
	return nil
}

func (r *mongoReservationRepository) CreateIfNoConflict(ctx context.Context, reservation *model.Reservation, q model.ConflictQuery) error {
	if err := r.ensureGuard(ctx, reservation.TenantID); err != nil {
		return err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.checkInTransaction(sessCtx, q, reservation.CreatedAt); err != nil {
			return err
		}
		if _, err := r.collection.InsertOne(sessCtx, reservation); err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		return nil
	})
}

func (r *mongoReservationRepository) UpdateWindowIfNoConflict(ctx context.Context, tenantID, id string, window model.TimeWindow, updatedAt time.Time, q model.ConflictQuery) (*model.Reservation, error) {
	if err := r.ensureGuard(ctx, tenantID); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var updated model.Reservation
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := r.checkInTransaction(sessCtx, q, updatedAt); err != nil {
			return err
		}

		filter := bson.M{"_id": id, "tenant_id": tenantID, "status": bson.M{"$in": model.ActiveStatuses}}
		update := bson.M{"$set": bson.M{
			"start_at":   window.StartAt,
			"end_at":     window.EndAt,
			"updated_at": updatedAt,
		}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		if err := r.collection.FindOneAndUpdate(sessCtx, filter, update, opts).Decode(&updated); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return reservationerrors.ErrNotFound
			}
			return fmt.Errorf("failed to reschedule reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *mongoReservationRepository) UpdateStatus(ctx context.Context, tenantID, id string, status model.ReservationStatus, updatedAt time.Time) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "tenant_id": tenantID, "status": bson.M{"$in": model.ActiveStatuses}}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": updatedAt}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Reservation
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}
	return &updated, nil
}
