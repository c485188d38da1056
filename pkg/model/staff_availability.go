package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerDay = 24 * 60
	// EndOfDay lets a working window close at midnight.
	EndOfDay = "24:00"
)

// StaffAvailability is the weekly working window of one staff member for
// one weekday. Times are "HH:MM" in the tenant's local time.
type StaffAvailability struct {
	TenantID    string       `json:"tenant_id" bson:"tenant_id" validate:"required,max=64"`
	StaffID     string       `json:"staff_id" bson:"staff_id" validate:"required,max=64"`
	DayOfWeek   time.Weekday `json:"day_of_week" bson:"day_of_week" validate:"min=0,max=6"`
	WorkStart   string       `json:"work_start" bson:"work_start" validate:"required,time_of_day"`
	WorkEnd     string       `json:"work_end" bson:"work_end" validate:"required,time_of_day"`
	BreakStart  string       `json:"break_start,omitempty" bson:"break_start,omitempty" validate:"omitempty,time_of_day"`
	BreakEnd    string       `json:"break_end,omitempty" bson:"break_end,omitempty" validate:"omitempty,time_of_day"`
	IsAvailable bool         `json:"is_available" bson:"is_available"`
	UpdatedAt   time.Time    `json:"updated_at" bson:"updated_at"`
}

// WorkingMinutes returns [start, end] as minutes of day.
func (a *StaffAvailability) WorkingMinutes() (int, int, error) {
	start, err := ParseTimeOfDay(a.WorkStart)
	if err != nil {
		return 0, 0, fmt.Errorf("work_start: %w", err)
	}
	end, err := ParseTimeOfDay(a.WorkEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("work_end: %w", err)
	}
	return start, end, nil
}

// BreakMinutes returns the break window, ok is false when none is set.
func (a *StaffAvailability) BreakMinutes() (start, end int, ok bool, err error) {
	if a.BreakStart == "" || a.BreakEnd == "" {
		return 0, 0, false, nil
	}
	start, err = ParseTimeOfDay(a.BreakStart)
	if err != nil {
		return 0, 0, false, fmt.Errorf("break_start: %w", err)
	}
	end, err = ParseTimeOfDay(a.BreakEnd)
	if err != nil {
		return 0, 0, false, fmt.Errorf("break_end: %w", err)
	}
	return start, end, true, nil
}

// ParseTimeOfDay converts "HH:MM" to minutes since midnight. "24:00" is
// accepted as the end of the day.
func ParseTimeOfDay(value string) (int, error) {
	if value == EndOfDay {
		return MinutesPerDay, nil
	}
	hh, mm, found := strings.Cut(value, ":")
	if !found || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", value)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hours*60 + minutes, nil
}

// FormatTimeOfDay is the inverse of ParseTimeOfDay.
func FormatTimeOfDay(minutes int) string {
	if minutes >= MinutesPerDay {
		return EndOfDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
