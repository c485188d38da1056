package repository

import (
	"context"
	"sync"
	"time"

	lockserrors "agendly/internal/locks/errors"
	"agendly/pkg/model"
)

// MemorySlotLockRepository mirrors the Mongo store, including the unique
// key that survives expiry until purged. Used by tests and local runs.
type MemorySlotLockRepository struct {
	mu    sync.Mutex
	byKey map[string]*model.SlotLock
	byID  map[string]*model.SlotLock
}

func NewMemorySlotLockRepository() *MemorySlotLockRepository {
	return &MemorySlotLockRepository{
		byKey: make(map[string]*model.SlotLock),
		byID:  make(map[string]*model.SlotLock),
	}
}

func memoryKey(tenantID, slotKey string) string {
	return tenantID + "|" + slotKey
}

func (r *MemorySlotLockRepository) FindLive(_ context.Context, tenantID, slotKey string, now time.Time) (*model.SlotLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.byKey[memoryKey(tenantID, slotKey)]
	if !ok || !lock.IsLive(now) {
		return nil, lockserrors.ErrNotFound
	}
	found := *lock
	return &found, nil
}

func (r *MemorySlotLockRepository) Create(_ context.Context, lock *model.SlotLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(lock.TenantID, lock.SlotKey)
	if _, exists := r.byKey[key]; exists {
		return lockserrors.ErrLockHeld
	}
	stored := *lock
	r.byKey[key] = &stored
	r.byID[lock.ID] = &stored
	return nil
}

func (r *MemorySlotLockRepository) Extend(_ context.Context, lockID, sessionID string, now, expiresAt time.Time) (*model.SlotLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.byID[lockID]
	if !ok || lock.SessionID != sessionID || !lock.IsLive(now) {
		return nil, lockserrors.ErrNotFound
	}
	lock.ExpiresAt = expiresAt
	extended := *lock
	return &extended, nil
}

func (r *MemorySlotLockRepository) Delete(_ context.Context, tenantID, lockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lock, ok := r.byID[lockID]; ok && lock.TenantID == tenantID {
		delete(r.byKey, memoryKey(lock.TenantID, lock.SlotKey))
		delete(r.byID, lockID)
	}
	return nil
}

func (r *MemorySlotLockRepository) DeleteExpiredForKey(_ context.Context, tenantID, slotKey string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(tenantID, slotKey)
	if lock, ok := r.byKey[key]; ok && !lock.IsLive(now) {
		delete(r.byKey, key)
		delete(r.byID, lock.ID)
	}
	return nil
}

func (r *MemorySlotLockRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, lock := range r.byID {
		if !lock.IsLive(now) {
			delete(r.byKey, memoryKey(lock.TenantID, lock.SlotKey))
			delete(r.byID, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many rows are stored, live or expired.
func (r *MemorySlotLockRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
