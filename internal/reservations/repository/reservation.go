package repository

import (
	"context"
	"time"

	"agendly/pkg/model"
)

// ReservationRepository persists reservations. The *IfNoConflict writes
// re-run the overlap check atomically with the write and fail with an error
// matching reservationerrors.ErrTimeConflict, so no two active reservations
// violating the overlap rule can be committed even without a slot lock.
type ReservationRepository interface {
	// FindOverlapping returns active reservations of q.TenantID that may
	// overlap the window, narrowed to q.ResourceIDs when set.
	FindOverlapping(ctx context.Context, q model.ConflictQuery) ([]*model.Reservation, error)
	FindByID(ctx context.Context, tenantID, id string) (*model.Reservation, error)
	CreateIfNoConflict(ctx context.Context, reservation *model.Reservation, q model.ConflictQuery) error
	UpdateWindowIfNoConflict(ctx context.Context, tenantID, id string, window model.TimeWindow, updatedAt time.Time, q model.ConflictQuery) (*model.Reservation, error)
	// UpdateStatus moves an active reservation to status, ErrNotFound when
	// no active reservation matches.
	UpdateStatus(ctx context.Context, tenantID, id string, status model.ReservationStatus, updatedAt time.Time) (*model.Reservation, error)
}
