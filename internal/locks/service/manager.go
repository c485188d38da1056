package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	lockserrors "agendly/internal/locks/errors"
	"agendly/internal/locks/repository"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	apperrors "agendly/pkg/errors"
	"agendly/pkg/model"

	"github.com/google/uuid"
)

const slotLockedMessage = "This time slot is currently being booked by another request. Please try again."

type SlotLockManager interface {
	AcquireLock(ctx context.Context, req model.LockRequest) (string, error)
	ReleaseLock(ctx context.Context, tenantID, lockID string) error
	SweepExpired(ctx context.Context) (int64, error)
	WithLock(ctx context.Context, req model.LockRequest, fn func(ctx context.Context) error) error
}

type slotLockManager struct {
	repo       repository.SlotLockRepository
	clock      clock.Clock
	defaultTTL time.Duration
	maxTTL     time.Duration
	cfg        *config.Config
}

func NewSlotLockManager(repo repository.SlotLockRepository, clk clock.Clock, cfg *config.Config) SlotLockManager {
	defaultTTL := cfg.LockDefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = config.DefaultLockDefaultTTL
	}
	maxTTL := cfg.LockMaxTTL
	if maxTTL <= 0 {
		maxTTL = config.DefaultLockMaxTTL
	}
	return &slotLockManager{
		repo:       repo,
		clock:      clk,
		defaultTTL: defaultTTL,
		maxTTL:     max(maxTTL, defaultTTL),
		cfg:        cfg,
	}
}

// AcquireLock claims the slot described by req and returns the lock id.
// A live lock owned by the same session is renewed instead.
func (s *slotLockManager) AcquireLock(ctx context.Context, req model.LockRequest) (string, error) {
	if err := validateLockRequest(req); err != nil {
		return "", err
	}

	now := s.clock.Now()
	ttl := s.resolveTTL(req)
	key := SlotKey(req.TenantID, req.StartAt, req.EndAt, req.ResourceID)
	log := s.cfg.Log.ForTenant(req.TenantID)

	existing, err := s.repo.FindLive(ctx, req.TenantID, key, now)
	switch {
	case err == nil:
		if !existing.OwnedBy(req.SessionID) {
			log.Debug("Slot lock held by another session", "slot_key", key, "lock_id", existing.ID)
			return "", apperrors.SlotLocked(slotLockedMessage, lockserrors.ErrLockHeld)
		}
		renewed, err := s.repo.Extend(ctx, existing.ID, req.SessionID, now, now.Add(ttl))
		if err == nil {
			log.Debug("Slot lock renewed", "lock_id", renewed.ID, "expires_at", renewed.ExpiresAt)
			return renewed.ID, nil
		}
		if !errors.Is(err, lockserrors.ErrNotFound) {
			return "", apperrors.Persistence("Failed to renew slot lock", err)
		}
		// expired or released between the read and the renewal, claim it afresh
	case errors.Is(err, lockserrors.ErrNotFound):
	default:
		return "", apperrors.Persistence("Failed to read slot lock", err)
	}

	if err := s.repo.DeleteExpiredForKey(ctx, req.TenantID, key, now); err != nil {
		return "", apperrors.Persistence("Failed to purge expired slot lock", err)
	}

	lock := &model.SlotLock{
		ID:         uuid.NewString(),
		TenantID:   req.TenantID,
		SlotKey:    key,
		ResourceID: req.ResourceID,
		SessionID:  req.SessionID,
		StartAt:    req.StartAt.UTC(),
		EndAt:      req.EndAt.UTC(),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, lock); err != nil {
		if errors.Is(err, lockserrors.ErrLockHeld) {
			log.Debug("Lost slot lock race", "slot_key", key)
			return "", apperrors.SlotLocked(slotLockedMessage, err)
		}
		return "", apperrors.Persistence("Failed to acquire slot lock", err)
	}

	log.Debug("Slot lock acquired", "lock_id", lock.ID, "resource_id", req.ResourceID, "expires_at", lock.ExpiresAt)
	return lock.ID, nil
}

// ReleaseLock is idempotent: unknown or empty ids succeed, and so do ids
// held by another tenant, which stay locked.
func (s *slotLockManager) ReleaseLock(ctx context.Context, tenantID, lockID string) error {
	if lockID == "" {
		return nil
	}
	if strings.TrimSpace(tenantID) == "" {
		return apperrors.InvalidInput("tenant_id is required")
	}
	if err := s.repo.Delete(ctx, tenantID, lockID); err != nil {
		return apperrors.Persistence("Failed to release slot lock", err)
	}
	return nil
}

func (s *slotLockManager) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, apperrors.Persistence("Failed to sweep expired slot locks", err)
	}
	if removed > 0 {
		s.cfg.Log.Info("Swept expired slot locks", "count", removed)
	}
	return removed, nil
}

// WithLock runs fn while holding the slot lock. The lock is released on
// every exit path, including a cancelled ctx.
func (s *slotLockManager) WithLock(ctx context.Context, req model.LockRequest, fn func(ctx context.Context) error) error {
	lockID, err := s.AcquireLock(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if releaseErr := s.ReleaseLock(releaseCtx, req.TenantID, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	return fn(ctx)
}

func (s *slotLockManager) resolveTTL(req model.LockRequest) time.Duration {
	ttl := req.TTL
	if ttl <= 0 && req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl <= 0 {
		return s.defaultTTL
	}
	return min(ttl, s.maxTTL)
}

func validateLockRequest(req model.LockRequest) error {
	if strings.TrimSpace(req.TenantID) == "" {
		return apperrors.InvalidInput("tenant_id is required")
	}
	if req.StartAt.IsZero() || req.EndAt.IsZero() {
		return apperrors.Validation("Lock window is incomplete", map[string]any{
			"start_at": req.StartAt,
			"end_at":   req.EndAt,
		})
	}
	if !req.StartAt.Before(req.EndAt) {
		return apperrors.Wrap(lockserrors.ErrInvalidWindow, apperrors.CodeValidation,
			"Lock end must be after start", http.StatusUnprocessableEntity)
	}
	return nil
}
