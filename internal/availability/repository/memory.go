package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	availabilityerrors "agendly/internal/availability/errors"
	"agendly/pkg/model"
)

type MemoryStaffAvailabilityRepository struct {
	mu      sync.RWMutex
	windows map[string]*model.StaffAvailability
}

func NewMemoryStaffAvailabilityRepository() *MemoryStaffAvailabilityRepository {
	return &MemoryStaffAvailabilityRepository{
		windows: make(map[string]*model.StaffAvailability),
	}
}

func windowKey(tenantID, staffID string, day time.Weekday) string {
	return fmt.Sprintf("%s|%s|%d", tenantID, staffID, day)
}

func (r *MemoryStaffAvailabilityRepository) FindByStaffAndDay(_ context.Context, tenantID, staffID string, day time.Weekday) (*model.StaffAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	window, ok := r.windows[windowKey(tenantID, staffID, day)]
	if !ok {
		return nil, availabilityerrors.ErrNotFound
	}
	found := *window
	return &found, nil
}

func (r *MemoryStaffAvailabilityRepository) FindByStaff(_ context.Context, tenantID, staffID string) ([]*model.StaffAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var windows []*model.StaffAvailability
	for _, window := range r.windows {
		if window.TenantID == tenantID && window.StaffID == staffID {
			found := *window
			windows = append(windows, &found)
		}
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].DayOfWeek < windows[j].DayOfWeek })
	return windows, nil
}

func (r *MemoryStaffAvailabilityRepository) Upsert(_ context.Context, window *model.StaffAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *window
	r.windows[windowKey(window.TenantID, window.StaffID, window.DayOfWeek)] = &stored
	return nil
}
