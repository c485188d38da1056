package service

import (
	"context"
	"errors"
	"strings"
	"time"

	availabilityerrors "agendly/internal/availability/errors"
	"agendly/internal/availability/repository"
	"agendly/internal/availability/validator"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	apperrors "agendly/pkg/errors"
	"agendly/pkg/model"
)

type StaffAvailabilityValidator interface {
	// CheckAvailability returns one staff_unavailable conflict per staff
	// member who cannot take the window. An empty slice means all can.
	CheckAvailability(ctx context.Context, tenantID string, staffIDs []string, startAt, endAt time.Time) ([]model.Conflict, error)
	SaveWindow(ctx context.Context, window *model.StaffAvailability) error
	GetWeek(ctx context.Context, tenantID, staffID string) ([]*model.StaffAvailability, error)
}

type staffAvailabilityValidator struct {
	repo      repository.StaffAvailabilityRepository
	validator *validator.WindowValidator
	clock     clock.Clock
	location  *time.Location
	cfg       *config.Config
}

func NewStaffAvailabilityValidator(repo repository.StaffAvailabilityRepository, windowValidator *validator.WindowValidator, clk clock.Clock, cfg *config.Config) StaffAvailabilityValidator {
	return &staffAvailabilityValidator{
		repo:      repo,
		validator: windowValidator,
		clock:     clk,
		location:  cfg.Location(),
		cfg:       cfg,
	}
}

// localSpan is a requested window projected onto the weekday it starts on.
type localSpan struct {
	day           time.Weekday
	startMinute   int
	endMinute     int
	spansMidnight bool
}

func (v *staffAvailabilityValidator) project(startAt, endAt time.Time) localSpan {
	start := startAt.In(v.location)
	end := endAt.In(v.location)

	span := localSpan{
		day:         start.Weekday(),
		startMinute: start.Hour()*60 + start.Minute(),
		endMinute:   end.Hour()*60 + end.Minute(),
	}
	if end.Second() > 0 || end.Nanosecond() > 0 {
		span.endMinute++
	}

	startDate := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDate := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case endDate.Equal(startDate):
	case endDate.Equal(startDate.AddDate(0, 0, 1)) && span.endMinute == 0:
		span.endMinute = model.MinutesPerDay
	default:
		span.spansMidnight = true
	}
	return span
}

func (v *staffAvailabilityValidator) CheckAvailability(ctx context.Context, tenantID string, staffIDs []string, startAt, endAt time.Time) ([]model.Conflict, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperrors.InvalidInput("tenant_id is required")
	}
	if !startAt.Before(endAt) {
		return nil, apperrors.Validation("Availability window must have start before end", map[string]any{
			"start_at": startAt,
			"end_at":   endAt,
		})
	}

	span := v.project(startAt, endAt)
	conflicts := []model.Conflict{}
	seen := make(map[string]struct{}, len(staffIDs))

	for _, staffID := range staffIDs {
		if staffID == "" {
			continue
		}
		if _, dup := seen[staffID]; dup {
			continue
		}
		seen[staffID] = struct{}{}

		reason, err := v.unavailableReason(ctx, tenantID, staffID, span)
		if err != nil {
			return nil, err
		}
		if reason == "" {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			StartAt:    startAt,
			EndAt:      endAt,
			ResourceID: staffID,
			Type:       model.ConflictStaffUnavailable,
			Reason:     reason,
		})
	}

	if len(conflicts) > 0 {
		v.cfg.Log.Debug("Staff unavailable for requested window",
			"tenant_id", tenantID,
			"start_at", startAt,
			"end_at", endAt,
			"count", len(conflicts),
		)
	}
	return conflicts, nil
}

func (v *staffAvailabilityValidator) unavailableReason(ctx context.Context, tenantID, staffID string, span localSpan) (string, error) {
	if span.spansMidnight {
		return model.ReasonSpansMidnight, nil
	}

	window, err := v.repo.FindByStaffAndDay(ctx, tenantID, staffID, span.day)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotFound) {
			return model.ReasonNoSchedule, nil
		}
		return "", apperrors.Persistence("Failed to load staff availability", err)
	}
	if !window.IsAvailable {
		return model.ReasonNotWorking, nil
	}

	workStart, workEnd, err := window.WorkingMinutes()
	if err != nil {
		return "", apperrors.Internal("Stored staff availability is malformed", errors.Join(availabilityerrors.ErrInvalidWindow, err))
	}
	if span.startMinute < workStart || span.endMinute > workEnd {
		return model.ReasonOutsideWorkingHours, nil
	}

	breakStart, breakEnd, hasBreak, err := window.BreakMinutes()
	if err != nil {
		return "", apperrors.Internal("Stored staff availability is malformed", errors.Join(availabilityerrors.ErrInvalidWindow, err))
	}
	if hasBreak && span.startMinute < breakEnd && span.endMinute > breakStart {
		return model.ReasonDuringBreak, nil
	}
	return "", nil
}

func (v *staffAvailabilityValidator) SaveWindow(ctx context.Context, window *model.StaffAvailability) error {
	if err := v.validator.Validate(window); err != nil {
		return apperrors.Validation("Staff availability validation failed", map[string]any{
			"errors": err,
		})
	}

	window.UpdatedAt = v.clock.Now()
	if err := v.repo.Upsert(ctx, window); err != nil {
		v.cfg.Log.Error("Failed to save staff availability", "tenant_id", window.TenantID, "staff_id", window.StaffID, "error", err)
		return apperrors.Persistence("Failed to save staff availability", err)
	}

	v.cfg.Log.Info("Staff availability saved",
		"tenant_id", window.TenantID,
		"staff_id", window.StaffID,
		"day_of_week", window.DayOfWeek.String(),
	)
	return nil
}

func (v *staffAvailabilityValidator) GetWeek(ctx context.Context, tenantID, staffID string) ([]*model.StaffAvailability, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(staffID) == "" {
		return nil, apperrors.InvalidInput("tenant_id and staff_id are required")
	}
	windows, err := v.repo.FindByStaff(ctx, tenantID, staffID)
	if err != nil {
		return nil, apperrors.Persistence("Failed to load staff availability", err)
	}
	if windows == nil {
		windows = []*model.StaffAvailability{}
	}
	return windows, nil
}
