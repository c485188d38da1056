package repository

import (
	"context"
	"time"

	"agendly/pkg/model"
)

// StaffAvailabilityRepository holds at most one window per
// (tenant, staff, weekday).
type StaffAvailabilityRepository interface {
	FindByStaffAndDay(ctx context.Context, tenantID, staffID string, day time.Weekday) (*model.StaffAvailability, error)
	FindByStaff(ctx context.Context, tenantID, staffID string) ([]*model.StaffAvailability, error)
	Upsert(ctx context.Context, window *model.StaffAvailability) error
}
