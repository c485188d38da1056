package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	reservationerrors "agendly/internal/reservations/errors"
	"agendly/pkg/model"
)

// MemoryReservationRepository serializes every check-then-write under one
// mutex. Used by tests and local runs without a database.
type MemoryReservationRepository struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
}

func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{reservations: make(map[string]*model.Reservation)}
}

func (r *MemoryReservationRepository) overlapping(q model.ConflictQuery) []*model.Reservation {
	var found []*model.Reservation
	for _, res := range r.reservations {
		if res.TenantID != q.TenantID || !res.Status.IsActive() || !res.Overlaps(q.StartAt, q.EndAt) {
			continue
		}
		copied := *res
		found = append(found, &copied)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].StartAt.Before(found[j].StartAt) })
	return found
}

func (r *MemoryReservationRepository) FindOverlapping(_ context.Context, q model.ConflictQuery) ([]*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlapping(q), nil
}

func (r *MemoryReservationRepository) FindByID(_ context.Context, tenantID, id string) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok || res.TenantID != tenantID {
		return nil, reservationerrors.ErrNotFound
	}
	copied := *res
	return &copied, nil
}

func (r *MemoryReservationRepository) CreateIfNoConflict(_ context.Context, reservation *model.Reservation, q model.ConflictQuery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conflicts := model.CollectConflicts(q, r.overlapping(q)); len(conflicts) > 0 {
		return &reservationerrors.ConflictError{Conflicts: conflicts}
	}
	stored := *reservation
	r.reservations[reservation.ID] = &stored
	return nil
}

func (r *MemoryReservationRepository) UpdateWindowIfNoConflict(_ context.Context, tenantID, id string, window model.TimeWindow, updatedAt time.Time, q model.ConflictQuery) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conflicts := model.CollectConflicts(q, r.overlapping(q)); len(conflicts) > 0 {
		return nil, &reservationerrors.ConflictError{Conflicts: conflicts}
	}

	res, ok := r.reservations[id]
	if !ok || res.TenantID != tenantID || !res.Status.IsActive() {
		return nil, reservationerrors.ErrNotFound
	}
	res.StartAt, res.EndAt = window.StartAt, window.EndAt
	res.UpdatedAt = updatedAt
	copied := *res
	return &copied, nil
}

func (r *MemoryReservationRepository) UpdateStatus(_ context.Context, tenantID, id string, status model.ReservationStatus, updatedAt time.Time) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok || res.TenantID != tenantID || !res.Status.IsActive() {
		return nil, reservationerrors.ErrNotFound
	}
	res.Status = status
	res.UpdatedAt = updatedAt
	copied := *res
	return &copied, nil
}

// Put stores reservation as is, bypassing the conflict check.
func (r *MemoryReservationRepository) Put(reservation *model.Reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *reservation
	r.reservations[reservation.ID] = &stored
}

// ActiveCount reports how many pending or confirmed reservations are stored.
func (r *MemoryReservationRepository) ActiveCount(tenantID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, res := range r.reservations {
		if res.TenantID == tenantID && res.Status.IsActive() {
			n++
		}
	}
	return n
}
