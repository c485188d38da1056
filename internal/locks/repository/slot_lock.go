package repository

import (
	"context"
	"time"

	"agendly/pkg/model"
)

// SlotLockRepository stores advisory slot locks. Implementations enforce
// uniqueness of (tenant_id, slot_key): Create fails with ErrLockHeld when a
// row for the key exists, expired or not, so callers purge expired rows for
// the key first.
type SlotLockRepository interface {
	// FindLive returns the unexpired lock for the key or ErrNotFound.
	FindLive(ctx context.Context, tenantID, slotKey string, now time.Time) (*model.SlotLock, error)
	Create(ctx context.Context, lock *model.SlotLock) error
	// Extend moves the expiry of a lock owned by sessionID, ErrNotFound when
	// the lock is gone or owned by someone else.
	Extend(ctx context.Context, lockID, sessionID string, now, expiresAt time.Time) (*model.SlotLock, error)
	// Delete removes the lock only when it belongs to tenantID. Unknown ids
	// and locks of other tenants are a no-op.
	Delete(ctx context.Context, tenantID, lockID string) error
	DeleteExpiredForKey(ctx context.Context, tenantID, slotKey string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
