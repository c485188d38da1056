package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	lockserrors "agendly/internal/locks/errors"
	"agendly/internal/locks/repository"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	apperrors "agendly/pkg/errors"
	"agendly/pkg/logger"
	"agendly/pkg/model"
)

var slotStart = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (SlotLockManager, *repository.MemorySlotLockRepository, *clock.Manual) {
	t.Helper()
	cfg := &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		LockDefaultTTL: 10 * time.Minute,
		LockMaxTTL:     30 * time.Minute,
	}
	repo := repository.NewMemorySlotLockRepository()
	clk := clock.NewManual(slotStart.Add(-24 * time.Hour))
	return NewSlotLockManager(repo, clk, cfg), repo, clk
}

func lockRequest(session string) model.LockRequest {
	return model.LockRequest{
		TenantID:   "tenant-1",
		StartAt:    slotStart,
		EndAt:      slotStart.Add(time.Hour),
		ResourceID: "staff-a",
		SessionID:  session,
	}
}

func TestAcquireLock_SecondSessionIsRejected(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	lockID, err := manager.AcquireLock(ctx, lockRequest("session-1"))
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if lockID == "" {
		t.Fatal("expected a lock id")
	}

	_, err = manager.AcquireLock(ctx, lockRequest("session-2"))
	if !apperrors.HasCode(err, apperrors.CodeSlotLocked) {
		t.Fatalf("expected SLOT_LOCKED, got %v", err)
	}
	if !errors.Is(err, lockserrors.ErrLockHeld) {
		t.Error("expected ErrLockHeld in the chain")
	}
}

func TestAcquireLock_AnonymousCallersCannotRenew(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.AcquireLock(ctx, lockRequest("")); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if _, err := manager.AcquireLock(ctx, lockRequest("")); !apperrors.HasCode(err, apperrors.CodeSlotLocked) {
		t.Fatalf("expected SLOT_LOCKED for a second anonymous caller, got %v", err)
	}
}

func TestAcquireLock_SameSessionRenews(t *testing.T) {
	manager, repo, clk := newTestManager(t)
	ctx := context.Background()

	firstID, err := manager.AcquireLock(ctx, lockRequest("session-1"))
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	clk.Advance(8 * time.Minute)
	secondID, err := manager.AcquireLock(ctx, lockRequest("session-1"))
	if err != nil {
		t.Fatalf("renewal failed: %v", err)
	}
	if secondID != firstID {
		t.Errorf("renewal should keep the lock id, got %s and %s", firstID, secondID)
	}

	// without the renewal the lock would have expired at +10m
	clk.Advance(5 * time.Minute)
	key := SlotKey("tenant-1", slotStart, slotStart.Add(time.Hour), "staff-a")
	lock, err := repo.FindLive(ctx, "tenant-1", key, clk.Now())
	if err != nil {
		t.Fatalf("expected renewed lock to be live: %v", err)
	}
	if want := slotStart.Add(-24 * time.Hour).Add(18 * time.Minute); !lock.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %s, want %s", lock.ExpiresAt, want)
	}
}

func TestAcquireLock_ExpiredLockCanBeClaimed(t *testing.T) {
	manager, repo, clk := newTestManager(t)
	ctx := context.Background()

	firstID, err := manager.AcquireLock(ctx, lockRequest("session-1"))
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	clk.Advance(11 * time.Minute)
	secondID, err := manager.AcquireLock(ctx, lockRequest("session-2"))
	if err != nil {
		t.Fatalf("expected expired lock to be reclaimable, got %v", err)
	}
	if secondID == firstID {
		t.Error("expected a new lock id")
	}
	if repo.Len() != 1 {
		t.Errorf("expected expired row to be purged, store has %d rows", repo.Len())
	}
}

func TestAcquireLock_DifferentResourcesDoNotCollide(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.AcquireLock(ctx, lockRequest("session-1")); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	other := lockRequest("session-2")
	other.ResourceID = "staff-b"
	if _, err := manager.AcquireLock(ctx, other); err != nil {
		t.Errorf("different resource should not be locked: %v", err)
	}

	otherTenant := lockRequest("session-3")
	otherTenant.TenantID = "tenant-2"
	if _, err := manager.AcquireLock(ctx, otherTenant); err != nil {
		t.Errorf("different tenant should not be locked: %v", err)
	}
}

func TestAcquireLock_TTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"default when unset", 0, 10 * time.Minute},
		{"explicit ttl", 2 * time.Minute, 2 * time.Minute},
		{"capped at max", 2 * time.Hour, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, repo, clk := newTestManager(t)
			req := lockRequest("session-1")
			req.TTL = tt.ttl

			if _, err := manager.AcquireLock(context.Background(), req); err != nil {
				t.Fatalf("acquire failed: %v", err)
			}
			key := SlotKey(req.TenantID, req.StartAt, req.EndAt, req.ResourceID)
			lock, err := repo.FindLive(context.Background(), req.TenantID, key, clk.Now())
			if err != nil {
				t.Fatalf("lock not found: %v", err)
			}
			if got := lock.ExpiresAt.Sub(clk.Now()); got != tt.want {
				t.Errorf("ttl = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAcquireLock_Validation(t *testing.T) {
	manager, _, _ := newTestManager(t)

	tests := []struct {
		name     string
		mutate   func(req *model.LockRequest)
		wantCode string
	}{
		{"missing tenant", func(req *model.LockRequest) { req.TenantID = " " }, apperrors.CodeInvalidInput},
		{"zero start", func(req *model.LockRequest) { req.StartAt = time.Time{} }, apperrors.CodeValidation},
		{"end before start", func(req *model.LockRequest) { req.EndAt = req.StartAt.Add(-time.Minute) }, apperrors.CodeValidation},
		{"empty window", func(req *model.LockRequest) { req.EndAt = req.StartAt }, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := lockRequest("session-1")
			tt.mutate(&req)
			_, err := manager.AcquireLock(context.Background(), req)
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestReleaseLock_IsIdempotent(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	lockID, err := manager.AcquireLock(ctx, lockRequest("session-1"))
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := manager.ReleaseLock(ctx, "tenant-1", lockID); err != nil {
			t.Fatalf("release %d failed: %v", i+1, err)
		}
	}
	if err := manager.ReleaseLock(ctx, "tenant-1", "never-issued"); err != nil {
		t.Errorf("unknown id should release cleanly: %v", err)
	}
	if err := manager.ReleaseLock(ctx, "tenant-1", ""); err != nil {
		t.Errorf("empty id should release cleanly: %v", err)
	}

	if _, err := manager.AcquireLock(ctx, lockRequest("session-2")); err != nil {
		t.Errorf("slot should be free after release: %v", err)
	}
}

func TestReleaseLock_OtherTenantCannotRelease(t *testing.T) {
	manager, repo, _ := newTestManager(t)
	ctx := context.Background()

	lockID, err := manager.AcquireLock(ctx, lockRequest("session-1"))
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if err := manager.ReleaseLock(ctx, "tenant-2", lockID); err != nil {
		t.Fatalf("release by another tenant should not fail: %v", err)
	}
	if repo.Len() != 1 {
		t.Fatal("lock must survive a release from another tenant")
	}
	_, err = manager.AcquireLock(ctx, lockRequest("session-2"))
	if !apperrors.HasCode(err, apperrors.CodeSlotLocked) {
		t.Errorf("expected slot still locked, got %v", err)
	}

	if err := manager.ReleaseLock(ctx, "", lockID); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT without tenant, got %v", err)
	}

	if err := manager.ReleaseLock(ctx, "tenant-1", lockID); err != nil {
		t.Fatalf("owner release failed: %v", err)
	}
	if repo.Len() != 0 {
		t.Errorf("expected lock removed, %d left", repo.Len())
	}
}

func TestSweepExpired(t *testing.T) {
	manager, repo, clk := newTestManager(t)
	ctx := context.Background()

	short := lockRequest("session-1")
	short.TTL = time.Minute
	long := lockRequest("session-2")
	long.ResourceID = "staff-b"

	for _, req := range []model.LockRequest{short, long} {
		if _, err := manager.AcquireLock(ctx, req); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
	}

	clk.Advance(2 * time.Minute)
	removed, err := manager.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 1 || repo.Len() != 1 {
		t.Errorf("expected 1 removed and 1 left, got removed=%d left=%d", removed, repo.Len())
	}
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	manager, repo, _ := newTestManager(t)
	boom := errors.New("boom")

	err := manager.WithLock(context.Background(), lockRequest("session-1"), func(ctx context.Context) error {
		if repo.Len() != 1 {
			t.Errorf("expected lock held inside fn, store has %d", repo.Len())
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}
	if repo.Len() != 0 {
		t.Errorf("expected lock released, store has %d rows", repo.Len())
	}
}

func TestWithLock_ReleasesOnCancelledContext(t *testing.T) {
	manager, repo, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := manager.WithLock(ctx, lockRequest("session-1"), func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if repo.Len() != 0 {
		t.Errorf("expected lock released after cancellation, store has %d rows", repo.Len())
	}
}

func TestAcquireLock_ConcurrentCallersGetOneLock(t *testing.T) {
	manager, _, _ := newTestManager(t)
	const callers = 32

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
		locked   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := lockRequest("")
			_, err := manager.AcquireLock(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				acquired++
			case apperrors.HasCode(err, apperrors.CodeSlotLocked):
				locked++
			default:
				t.Errorf("caller %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if acquired != 1 || locked != callers-1 {
		t.Errorf("expected exactly one holder, got acquired=%d locked=%d", acquired, locked)
	}
}
