package model

import "time"

type ReservationEventType string

const (
	EventReservationCreated     ReservationEventType = "reservation.created"
	EventReservationRescheduled ReservationEventType = "reservation.rescheduled"
	EventReservationCancelled   ReservationEventType = "reservation.cancelled"
)

type ReservationEvent struct {
	Type          ReservationEventType `json:"type"`
	ReservationID string               `json:"reservation_id"`
	TenantID      string               `json:"tenant_id"`
	Status        ReservationStatus    `json:"status"`
	StartAt       time.Time            `json:"start_at"`
	EndAt         time.Time            `json:"end_at"`
	StaffID       string               `json:"staff_id,omitempty"`
	LocationID    string               `json:"location_id,omitempty"`
	ServiceID     string               `json:"service_id,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func NewReservationEvent(eventType ReservationEventType, r *Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          eventType,
		ReservationID: r.ID,
		TenantID:      r.TenantID,
		Status:        r.Status,
		StartAt:       r.StartAt,
		EndAt:         r.EndAt,
		StaffID:       r.StaffID,
		LocationID:    r.LocationID,
		ServiceID:     r.ServiceID,
		OccurredAt:    at,
	}
}

const (
	AuditActionCreated     = "created"
	AuditActionRescheduled = "rescheduled"
	AuditActionCancelled   = "cancelled"
)

type AuditEntry struct {
	ID            string         `json:"id" bson:"_id"`
	TenantID      string         `json:"tenant_id" bson:"tenant_id"`
	ReservationID string         `json:"reservation_id" bson:"reservation_id"`
	Action        string         `json:"action" bson:"action"`
	Details       map[string]any `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}

type ReminderChannel string

const (
	ReminderChannelSMS      ReminderChannel = "sms"
	ReminderChannelWhatsApp ReminderChannel = "whatsapp"
)

const (
	ReminderStatusScheduled = "scheduled"
	ReminderStatusCancelled = "cancelled"
)

type Reminder struct {
	ID            string          `json:"id" bson:"_id"`
	TenantID      string          `json:"tenant_id" bson:"tenant_id"`
	ReservationID string          `json:"reservation_id" bson:"reservation_id"`
	Channel       ReminderChannel `json:"channel" bson:"channel"`
	Phone         string          `json:"phone" bson:"phone"`
	SendAt        time.Time       `json:"send_at" bson:"send_at"`
	Status        string          `json:"status" bson:"status"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
}

type LineItem struct {
	ID            string    `json:"id" bson:"_id"`
	TenantID      string    `json:"tenant_id" bson:"tenant_id"`
	ReservationID string    `json:"reservation_id" bson:"reservation_id"`
	ServiceID     string    `json:"service_id" bson:"service_id"`
	DurationMin   int       `json:"duration_min" bson:"duration_min"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

const (
	CounterReservationsCreated   = "reservations_created"
	CounterReservationsCancelled = "reservations_cancelled"
)
