package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	availabilityservice "agendly/internal/availability/service"
	conflictservice "agendly/internal/conflicts/service"
	lockservice "agendly/internal/locks/service"
	reservationerrors "agendly/internal/reservations/errors"
	"agendly/internal/reservations/repository"
	"agendly/internal/reservations/validator"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	apperrors "agendly/pkg/errors"
	"agendly/pkg/logger"
	"agendly/pkg/model"
	"agendly/pkg/sanitizer"

	"github.com/google/uuid"
)

// ReservationCreator gates new reservations on the conflict and staff
// availability checks. CreateWithLock additionally holds the slot lock
// for the duration of the checks and the write.
type ReservationCreator interface {
	Create(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error)
	CreateWithLock(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error)
}

type ReservationService interface {
	ReservationCreator
	GetByID(ctx context.Context, tenantID, id string) (*model.Reservation, error)
	Reschedule(ctx context.Context, tenantID, id string, req *model.RescheduleRequest) (*model.Reservation, error)
	Cancel(ctx context.Context, tenantID, id string) (*model.Reservation, error)
	CheckBookingConflicts(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.ConflictResult, error)
	SuggestAlternatives(ctx context.Context, tenantID string, req *model.AlternativesRequest) ([]model.TimeWindow, error)
	// Wait blocks until every side effect started so far has finished.
	Wait()
}

type reservationService struct {
	repo         repository.ReservationRepository
	locker       lockservice.SlotLockManager
	conflicts    conflictservice.ConflictDetector
	availability availabilityservice.StaffAvailabilityValidator
	validator    *validator.ReservationValidator
	effects      SideEffects
	clock        clock.Clock
	cfg          *config.Config
	wg           sync.WaitGroup
}

func NewReservationService(
	repo repository.ReservationRepository,
	locker lockservice.SlotLockManager,
	conflicts conflictservice.ConflictDetector,
	availability availabilityservice.StaffAvailabilityValidator,
	validator *validator.ReservationValidator,
	effects SideEffects,
	clk clock.Clock,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:         repo,
		locker:       locker,
		conflicts:    conflicts,
		availability: availability,
		validator:    validator,
		effects:      effects,
		clock:        clk,
		cfg:          cfg,
	}
}

type stage string

const (
	stageValidating           stage = "validating"
	stageLocking              stage = "locking"
	stageCheckingConflicts    stage = "checking_conflicts"
	stageCheckingAvailability stage = "checking_availability"
	stagePersisting           stage = "persisting"
	stageCompleted            stage = "completed"
	stageFailed               stage = "failed"
)

// run tracks one reservation write through its stages.
type run struct {
	log   *logger.Logger
	stage stage
}

func (r *run) enter(next stage) {
	r.log.Debug("Reservation stage", "from", r.stage, "to", next)
	r.stage = next
}

func (r *run) fail(err error) error {
	r.log.Debug("Reservation stage", "from", r.stage, "to", stageFailed, "error", err)
	r.stage = stageFailed
	return err
}

func (s *reservationService) Create(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
	return s.create(ctx, tenantID, req, s.cfg.LockInternalPath)
}

func (s *reservationService) CreateWithLock(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
	return s.create(ctx, tenantID, req, true)
}

func (s *reservationService) create(ctx context.Context, tenantID string, req *model.CreateReservationRequest, locked bool) (*model.Reservation, error) {
	tenantID = strings.TrimSpace(tenantID)
	log := s.cfg.Log.ForTenant(tenantID)
	r := &run{log: log}

	r.enter(stageValidating)
	reservation, err := s.prepare(tenantID, req)
	if err != nil {
		return nil, r.fail(err)
	}
	query := model.ConflictQuery{
		TenantID:    tenantID,
		StartAt:     reservation.StartAt,
		EndAt:       reservation.EndAt,
		ResourceIDs: sanitizer.NormalizeIDs(reservation.ResourceIDs()),
	}

	write := func(ctx context.Context) error {
		r.enter(stageCheckingConflicts)
		if err := s.checkConflicts(ctx, query); err != nil {
			return err
		}
		r.enter(stageCheckingAvailability)
		if err := s.checkAvailability(ctx, tenantID, reservation.StaffID, reservation.StartAt, reservation.EndAt); err != nil {
			return err
		}
		r.enter(stagePersisting)
		return s.persist(ctx, reservation, query)
	}

	if locked {
		r.enter(stageLocking)
		err = s.locker.WithLock(ctx, model.LockRequest{
			TenantID:   tenantID,
			StartAt:    reservation.StartAt,
			EndAt:      reservation.EndAt,
			ResourceID: reservation.LockResourceID(),
			SessionID:  req.SessionID,
		}, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodePersistence) {
			log.Error("Failed to create reservation", "error", err)
		}
		return nil, r.fail(err)
	}
	r.enter(stageCompleted)

	log.Info("Reservation created successfully",
		"id", reservation.ID,
		"start_at", reservation.StartAt,
		"end_at", reservation.EndAt,
		"staff_id", reservation.StaffID,
		"location_id", reservation.LocationID,
	)
	s.afterCreate(ctx, reservation)
	return reservation, nil
}

func (s *reservationService) GetByID(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	if err := requireIDs(tenantID, id); err != nil {
		return nil, err
	}
	return s.load(ctx, tenantID, id)
}

// Reschedule moves an active reservation to a new window under the slot
// lock of the new window, ignoring the reservation itself during the
// conflict check.
func (s *reservationService) Reschedule(ctx context.Context, tenantID, id string, req *model.RescheduleRequest) (*model.Reservation, error) {
	if err := requireIDs(tenantID, id); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateReschedule(req); err != nil {
		s.cfg.Log.Warn("Reschedule validation failed", "tenant_id", tenantID, "id", id, "error", err)
		return nil, apperrors.Validation("Reschedule validation failed", map[string]any{"error": err.Error()})
	}

	existing, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.IsActive() {
		return nil, notActive(existing)
	}

	window := model.TimeWindow{StartAt: req.StartAt.UTC(), EndAt: req.EndAt.UTC()}
	query := model.ConflictQuery{
		TenantID:             tenantID,
		StartAt:              window.StartAt,
		EndAt:                window.EndAt,
		ResourceIDs:          sanitizer.NormalizeIDs(existing.ResourceIDs()),
		ExcludeReservationID: existing.ID,
	}

	var updated *model.Reservation
	err = s.locker.WithLock(ctx, model.LockRequest{
		TenantID:   tenantID,
		StartAt:    window.StartAt,
		EndAt:      window.EndAt,
		ResourceID: existing.LockResourceID(),
		SessionID:  req.SessionID,
	}, func(ctx context.Context) error {
		if err := s.checkConflicts(ctx, query); err != nil {
			return err
		}
		if err := s.checkAvailability(ctx, tenantID, existing.StaffID, window.StartAt, window.EndAt); err != nil {
			return err
		}

		var err error
		updated, err = s.repo.UpdateWindowIfNoConflict(ctx, tenantID, id, window, s.clock.Now(), query)
		if err != nil {
			if errors.Is(err, reservationerrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			return s.storeError(ctx, err, query, "Failed to reschedule reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Reservation rescheduled successfully",
		"tenant_id", tenantID,
		"id", id,
		"start_at", updated.StartAt,
		"end_at", updated.EndAt,
	)
	s.afterReschedule(ctx, existing, updated)
	return updated, nil
}

// Cancel soft-deletes an active reservation. Cancelling twice returns the
// cancelled reservation again.
func (s *reservationService) Cancel(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	if err := requireIDs(tenantID, id); err != nil {
		return nil, err
	}

	existing, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == model.StatusCancelled {
		return existing, nil
	}
	if !existing.Status.IsActive() {
		return nil, notActive(existing)
	}

	cancelled, err := s.repo.UpdateStatus(ctx, tenantID, id, model.StatusCancelled, s.clock.Now())
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		s.cfg.Log.Error("Failed to cancel reservation", "tenant_id", tenantID, "id", id, "error", err)
		return nil, apperrors.Persistence("Failed to cancel reservation", err)
	}

	s.cfg.Log.Info("Reservation cancelled successfully", "tenant_id", tenantID, "id", id)
	s.afterCancel(ctx, cancelled)
	return cancelled, nil
}

// CheckBookingConflicts previews what Create would reject, without taking
// a lock or writing anything.
func (s *reservationService) CheckBookingConflicts(ctx context.Context, tenantID string, req *model.CreateReservationRequest) (*model.ConflictResult, error) {
	tenantID = strings.TrimSpace(tenantID)
	reservation, err := s.prepare(tenantID, req)
	if err != nil {
		return nil, err
	}

	result, err := s.conflicts.CheckConflicts(ctx, model.ConflictQuery{
		TenantID:    tenantID,
		StartAt:     reservation.StartAt,
		EndAt:       reservation.EndAt,
		ResourceIDs: sanitizer.NormalizeIDs(reservation.ResourceIDs()),
	})
	if err != nil {
		return nil, err
	}

	if reservation.StaffID != "" {
		unavailable, err := s.availability.CheckAvailability(ctx, tenantID, []string{reservation.StaffID}, reservation.StartAt, reservation.EndAt)
		if err != nil {
			return nil, err
		}
		result.Add(unavailable...)
	}
	return result, nil
}

func (s *reservationService) Wait() {
	s.wg.Wait()
}

// --- Helpers ---

func (s *reservationService) sanitize(req *model.CreateReservationRequest) {
	req.StaffID = sanitizer.NormalizeID(req.StaffID)
	req.LocationID = sanitizer.NormalizeID(req.LocationID)
	req.ServiceID = sanitizer.NormalizeID(req.ServiceID)
	req.CustomerName = sanitizer.NormalizeName(req.CustomerName)
	req.Notes = strings.TrimSpace(req.Notes)
}

// prepare validates req and builds the reservation it describes.
func (s *reservationService) prepare(tenantID string, req *model.CreateReservationRequest) (*model.Reservation, error) {
	if tenantID == "" {
		return nil, apperrors.InvalidInput("tenant_id is required")
	}
	if req == nil {
		return nil, apperrors.InvalidInput("Reservation request cannot be empty")
	}

	s.sanitize(req)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "tenant_id", tenantID, "error", err)
		return nil, apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	status := req.Status
	if status == "" {
		status = model.ReservationStatus(s.cfg.DefaultReservationStatus)
	}
	if status == "" {
		status = model.StatusConfirmed
	}

	now := s.clock.Now()
	return &model.Reservation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		StartAt:       req.StartAt.UTC(),
		EndAt:         req.EndAt.UTC(),
		Status:        status,
		StaffID:       req.StaffID,
		LocationID:    req.LocationID,
		ServiceID:     req.ServiceID,
		CustomerName:  req.CustomerName,
		CustomerPhone: sanitizer.NormalizePhone(req.CustomerPhone),
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *reservationService) checkConflicts(ctx context.Context, q model.ConflictQuery) error {
	result, err := s.conflicts.CheckConflicts(ctx, q)
	if err != nil {
		return err
	}
	if result.HasConflict {
		return reservationerrors.NewConflict(result.Conflicts)
	}
	return nil
}

func (s *reservationService) checkAvailability(ctx context.Context, tenantID, staffID string, startAt, endAt time.Time) error {
	if staffID == "" {
		return nil
	}
	unavailable, err := s.availability.CheckAvailability(ctx, tenantID, []string{staffID}, startAt, endAt)
	if err != nil {
		return err
	}
	if len(unavailable) > 0 {
		return reservationerrors.NewConflict(unavailable)
	}
	return nil
}

func (s *reservationService) persist(ctx context.Context, reservation *model.Reservation, q model.ConflictQuery) error {
	if err := s.repo.CreateIfNoConflict(ctx, reservation, q); err != nil {
		return s.storeError(ctx, err, q, "Failed to create reservation")
	}
	return nil
}

// storeError maps a failed conditional write. A conflict the store detected
// without listing it is described by re-running the detector.
func (s *reservationService) storeError(ctx context.Context, err error, q model.ConflictQuery, message string) error {
	if conflicts, ok := reservationerrors.ConflictsOf(err); ok {
		return reservationerrors.NewConflict(conflicts)
	}
	if errors.Is(err, reservationerrors.ErrTimeConflict) {
		result, checkErr := s.conflicts.CheckConflicts(ctx, q)
		if checkErr == nil && result.HasConflict {
			return reservationerrors.NewConflict(result.Conflicts)
		}
		return reservationerrors.NewConflict(nil)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Persistence(message, err)
}

func (s *reservationService) load(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		return nil, apperrors.Persistence("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func requireIDs(tenantID, id string) error {
	if strings.TrimSpace(tenantID) == "" {
		return apperrors.InvalidInput("tenant_id is required")
	}
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	return nil
}

func notActive(r *model.Reservation) error {
	return apperrors.Wrap(reservationerrors.ErrNotActive, apperrors.CodeValidation,
		"Reservation is "+string(r.Status)+" and can no longer change", http.StatusUnprocessableEntity)
}
