package model

import (
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// ActiveStatuses are the statuses that occupy time on the calendar.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusConfirmed}

func (s ReservationStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Reservation struct {
	ID            string            `json:"id" bson:"_id"`
	TenantID      string            `json:"tenant_id" bson:"tenant_id"`
	StartAt       time.Time         `json:"start_at" bson:"start_at"`
	EndAt         time.Time         `json:"end_at" bson:"end_at"`
	Status        ReservationStatus `json:"status" bson:"status"`
	StaffID       string            `json:"staff_id,omitempty" bson:"staff_id,omitempty"`
	LocationID    string            `json:"location_id,omitempty" bson:"location_id,omitempty"`
	ServiceID     string            `json:"service_id,omitempty" bson:"service_id,omitempty"`
	CustomerName  string            `json:"customer_name,omitempty" bson:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty" bson:"customer_phone,omitempty"`
	Notes         string            `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" bson:"updated_at"`
}

// ResourceIDs lists the staff and location the reservation occupies.
func (r *Reservation) ResourceIDs() []string {
	return resourceIDs(r.StaffID, r.LocationID)
}

// LockResourceID is the resource the slot lock is scoped to: staff when
// assigned, otherwise location, otherwise the whole tenant.
func (r *Reservation) LockResourceID() string {
	return lockResource(r.StaffID, r.LocationID)
}

func (r *Reservation) Overlaps(startAt, endAt time.Time) bool {
	return Overlaps(r.StartAt, r.EndAt, startAt, endAt)
}

type CreateReservationRequest struct {
	StartAt       time.Time         `json:"start_at" validate:"required"`
	EndAt         time.Time         `json:"end_at" validate:"required,gtfield=StartAt"`
	Status        ReservationStatus `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed"`
	StaffID       string            `json:"staff_id,omitempty" validate:"omitempty,max=64"`
	LocationID    string            `json:"location_id,omitempty" validate:"omitempty,max=64"`
	ServiceID     string            `json:"service_id,omitempty" validate:"omitempty,max=64"`
	CustomerName  string            `json:"customer_name,omitempty" validate:"omitempty,max=100"`
	CustomerPhone string            `json:"customer_phone,omitempty" validate:"omitempty,max=32,phone"`
	Notes         string            `json:"notes,omitempty" validate:"omitempty,max=500"`
	SessionID     string            `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

func (r *CreateReservationRequest) ResourceIDs() []string {
	return resourceIDs(r.StaffID, r.LocationID)
}

func (r *CreateReservationRequest) LockResourceID() string {
	return lockResource(r.StaffID, r.LocationID)
}

type RescheduleRequest struct {
	StartAt   time.Time `json:"start_at" validate:"required"`
	EndAt     time.Time `json:"end_at" validate:"required,gtfield=StartAt"`
	SessionID string    `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

type AlternativesRequest struct {
	CreateReservationRequest
	SearchUntil time.Time `json:"search_until,omitempty"`
	Limit       int       `json:"limit,omitempty" validate:"omitempty,min=1,max=20"`
}

// TimeWindow is a half-open [StartAt, EndAt) interval.
type TimeWindow struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

func resourceIDs(staffID, locationID string) []string {
	ids := make([]string, 0, 2)
	if staffID != "" {
		ids = append(ids, staffID)
	}
	if locationID != "" {
		ids = append(ids, locationID)
	}
	return ids
}

func lockResource(staffID, locationID string) string {
	if staffID != "" {
		return staffID
	}
	return locationID
}
