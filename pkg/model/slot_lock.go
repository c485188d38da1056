package model

import "time"

// SlotLock is a short-lived advisory claim on a (tenant, window, resource)
// slot. At most one live lock exists per (TenantID, SlotKey).
type SlotLock struct {
	ID         string    `json:"id" bson:"_id"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	SlotKey    string    `json:"slot_key" bson:"slot_key"`
	ResourceID string    `json:"resource_id,omitempty" bson:"resource_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	StartAt    time.Time `json:"start_at" bson:"start_at"`
	EndAt      time.Time `json:"end_at" bson:"end_at"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

func (l *SlotLock) IsLive(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// OwnedBy reports whether sessionID may renew the lock. Anonymous holders
// cannot renew.
func (l *SlotLock) OwnedBy(sessionID string) bool {
	return sessionID != "" && l.SessionID == sessionID
}

type LockRequest struct {
	TenantID   string        `json:"-"`
	StartAt    time.Time     `json:"start_at" validate:"required"`
	EndAt      time.Time     `json:"end_at" validate:"required,gtfield=StartAt"`
	ResourceID string        `json:"resource_id,omitempty" validate:"omitempty,max=64"`
	SessionID  string        `json:"session_id,omitempty" validate:"omitempty,max=128"`
	TTL        time.Duration `json:"-"`
	TTLSeconds int           `json:"ttl_seconds,omitempty" validate:"omitempty,min=1"`
}
