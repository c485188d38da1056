package service

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"agendly/internal/availability/repository"
	"agendly/internal/availability/validator"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	apperrors "agendly/pkg/errors"
	"agendly/pkg/logger"
	"agendly/pkg/model"
)

// 2025-03-10 is a Monday.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func mon(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type mockAvailabilityRepository struct {
	findErr error
}

func (m *mockAvailabilityRepository) FindByStaffAndDay(ctx context.Context, tenantID, staffID string, day time.Weekday) (*model.StaffAvailability, error) {
	return nil, m.findErr
}

func (m *mockAvailabilityRepository) FindByStaff(ctx context.Context, tenantID, staffID string) ([]*model.StaffAvailability, error) {
	return nil, m.findErr
}

func (m *mockAvailabilityRepository) Upsert(ctx context.Context, window *model.StaffAvailability) error {
	return m.findErr
}

func newTestConfig(timeZone string) *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		DefaultTimeZone: timeZone,
	}
}

func newTestValidator(t *testing.T, timeZone string, windows ...*model.StaffAvailability) StaffAvailabilityValidator {
	t.Helper()
	repo := repository.NewMemoryStaffAvailabilityRepository()
	for _, w := range windows {
		if err := repo.Upsert(context.Background(), w); err != nil {
			t.Fatalf("seed window: %v", err)
		}
	}
	cfg := newTestConfig(timeZone)
	return NewStaffAvailabilityValidator(repo, validator.NewWindowValidator(cfg.Log), clock.Fixed(monday), cfg)
}

func mondayWindow(staffID string) *model.StaffAvailability {
	return &model.StaffAvailability{
		TenantID:    "t1",
		StaffID:     staffID,
		DayOfWeek:   time.Monday,
		WorkStart:   "09:00",
		WorkEnd:     "17:00",
		BreakStart:  "12:00",
		BreakEnd:    "13:00",
		IsAvailable: true,
	}
}

func TestCheckAvailability(t *testing.T) {
	off := mondayWindow("off")
	off.IsAvailable = false
	lateShift := mondayWindow("late")
	lateShift.WorkStart, lateShift.WorkEnd, lateShift.BreakStart, lateShift.BreakEnd = "16:00", "24:00", "", ""

	v := newTestValidator(t, "UTC", mondayWindow("A"), off, lateShift)

	tests := []struct {
		name       string
		staffIDs   []string
		start, end time.Time
		wantReason string
	}{
		{"inside working hours", []string{"A"}, mon(10, 0), mon(11, 0), ""},
		{"exactly the working day edges", []string{"A"}, mon(9, 0), mon(12, 0), ""},
		{"ends when the break starts", []string{"A"}, mon(11, 0), mon(12, 0), ""},
		{"starts when the break ends", []string{"A"}, mon(13, 0), mon(14, 0), ""},
		{"overlaps the break", []string{"A"}, mon(11, 30), mon(12, 30), model.ReasonDuringBreak},
		{"inside the break", []string{"A"}, mon(12, 15), mon(12, 45), model.ReasonDuringBreak},
		{"starts before work", []string{"A"}, mon(8, 30), mon(9, 30), model.ReasonOutsideWorkingHours},
		{"ends after work", []string{"A"}, mon(16, 30), mon(17, 30), model.ReasonOutsideWorkingHours},
		{"no row for the weekday", []string{"A"}, mon(24+10, 0), mon(24+11, 0), model.ReasonNoSchedule},
		{"unknown staff", []string{"ghost"}, mon(10, 0), mon(11, 0), model.ReasonNoSchedule},
		{"day marked unavailable", []string{"off"}, mon(10, 0), mon(11, 0), model.ReasonNotWorking},
		{"runs until midnight", []string{"late"}, mon(23, 0), mon(24, 0), ""},
		{"spans midnight", []string{"late"}, mon(23, 0), mon(24, 30), model.ReasonSpansMidnight},
		{"empty staff ids are skipped", []string{""}, mon(10, 0), mon(11, 0), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts, err := v.CheckAvailability(context.Background(), "t1", tt.staffIDs, tt.start, tt.end)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantReason == "" {
				if len(conflicts) != 0 {
					t.Fatalf("expected available, got %+v", conflicts)
				}
				return
			}
			if len(conflicts) != 1 {
				t.Fatalf("expected one conflict, got %+v", conflicts)
			}
			c := conflicts[0]
			if c.Type != model.ConflictStaffUnavailable || c.Reason != tt.wantReason || c.ResourceID != tt.staffIDs[0] {
				t.Errorf("got %+v, want reason %s", c, tt.wantReason)
			}
		})
	}
}

func TestCheckAvailability_MultipleStaff(t *testing.T) {
	v := newTestValidator(t, "UTC", mondayWindow("A"))

	conflicts, err := v.CheckAvailability(context.Background(), "t1", []string{"A", "B", "A"}, mon(10, 0), mon(11, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].ResourceID != "B" {
		t.Errorf("expected only B to be unavailable, got %+v", conflicts)
	}
}

func TestCheckAvailability_UsesTenantTimeZone(t *testing.T) {
	// 07:30 UTC is 09:30 in Jerusalem during winter time
	v := newTestValidator(t, "Asia/Jerusalem", mondayWindow("A"))

	conflicts, err := v.CheckAvailability(context.Background(), "t1", []string{"A"}, mon(7, 30), mon(8, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("expected available in local time, got %+v", conflicts)
	}
}

func TestCheckAvailability_Errors(t *testing.T) {
	v := newTestValidator(t, "UTC")

	if _, err := v.CheckAvailability(context.Background(), "", []string{"A"}, mon(10, 0), mon(11, 0)); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input for empty tenant, got %v", err)
	}
	if _, err := v.CheckAvailability(context.Background(), "t1", []string{"A"}, mon(11, 0), mon(10, 0)); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error for inverted window, got %v", err)
	}

	storeErr := errors.New("timeout")
	cfg := newTestConfig("UTC")
	failing := NewStaffAvailabilityValidator(&mockAvailabilityRepository{findErr: storeErr}, validator.NewWindowValidator(cfg.Log), clock.Fixed(monday), cfg)
	_, err := failing.CheckAvailability(context.Background(), "t1", []string{"A"}, mon(10, 0), mon(11, 0))
	if !apperrors.HasCode(err, apperrors.CodePersistence) || !errors.Is(err, storeErr) {
		t.Errorf("expected persistence error wrapping the store error, got %v", err)
	}
}

func TestSaveWindow(t *testing.T) {
	v := newTestValidator(t, "UTC")
	ctx := context.Background()

	bad := mondayWindow("A")
	bad.BreakStart, bad.BreakEnd = "18:00", "19:00"
	if err := v.SaveWindow(ctx, bad); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	good := mondayWindow("A")
	if err := v.SaveWindow(ctx, good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !good.UpdatedAt.Equal(monday) {
		t.Errorf("expected UpdatedAt from clock, got %s", good.UpdatedAt)
	}

	week, err := v.GetWeek(ctx, "t1", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(week) != 1 || week[0].DayOfWeek != time.Monday {
		t.Errorf("expected the saved Monday window, got %+v", week)
	}
}
